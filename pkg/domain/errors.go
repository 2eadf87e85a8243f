package domain

import "errors"

// ErrFlowNotFound is returned when a flow ID (or pinned version) cannot be resolved.
var ErrFlowNotFound = errors.New("flow not found")

// ErrNodeNotFound is returned when a node ID does not exist in the flow.
var ErrNodeNotFound = errors.New("node not found")

// ErrSessionNotFound is returned when a session ID or channel lookup misses.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionNotActive is returned when an operation requires an active
// session, including the lazy-expiry case where the session just aged out.
var ErrSessionNotActive = errors.New("session not active")

// ErrConflictingActiveSession is returned when a session is created for a
// channel that already has an active dialog.
var ErrConflictingActiveSession = errors.New("active session already exists for channel")

// ErrInvalidSelection is returned when user input matches no menu option or
// fails an input node's validation. User-correctable: the session stays on
// the same node and the caller re-prompts.
var ErrInvalidSelection = errors.New("invalid selection")

// ErrFlowMisconfigured is returned when the flow definition itself is broken
// (missing edges, unknown kinds, dangling targets). Operator-fixable, never
// a user error; the session is left active.
var ErrFlowMisconfigured = errors.New("flow misconfigured")

// ErrConcurrentModification is returned when an optimistic save loses to a
// concurrent writer. Callers treat it as a retransmit: re-read and resend
// the last response rather than double-applying the input.
var ErrConcurrentModification = errors.New("concurrent session modification")

// ErrInvalidState is a programming error, e.g. asking for the next node of
// an end node.
var ErrInvalidState = errors.New("invalid state")
