/*
Package resolver implements the pure graph-resolution logic of the engine.

Given a flow definition, a current node, raw user input, and the session's
variables, it selects the next node and computes variable updates. It has no
side effects and no knowledge of persistence; the engine layers lifecycle
and storage on top of it.
*/
package resolver
