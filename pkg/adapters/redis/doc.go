/*
Package redis implements the flow and session stores on Redis.

Sessions are stored as JSON alongside a revision counter; saves run as a Lua
script that compares the caller's revision before writing, which gives the
engine its optimistic-concurrency guarantee without locks. A SETNX-style
channel key enforces the one-active-session-per-channel constraint at create
time, and a ZSET scored by expiry deadline feeds the sweeper.
*/
package redis
