/*
Package engine implements the session execution engine, the core of the
USSD flow system.

It orchestrates the graph resolver and the session store to create sessions,
process one user turn at a time, apply admin overrides, and enforce the
session lifecycle: at most one active dialog per channel, lazy expiry on
every access, and optimistic per-session concurrency so a telco retransmit
can never advance a dialog twice.
*/
package engine
