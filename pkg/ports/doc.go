/*
Package ports defines the driven ports (interfaces) for the USSD flow engine.

These interfaces decouple the core logic from external implementations,
allowing the engine to work with different flow sources and session storage
backends. The engine's atomicity guarantees (optimistic saves, the unique
active-session-per-channel constraint) are part of the SessionStore contract,
verified by RunSessionStoreContract.
*/
package ports
