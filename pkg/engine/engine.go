package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/katlego-io/ussdflow/internal/logging"
	"github.com/katlego-io/ussdflow/pkg/domain"
	"github.com/katlego-io/ussdflow/pkg/ports"
	"github.com/katlego-io/ussdflow/pkg/resolver"
)

// maxConditionalHops bounds pass-through routing so a conditional cycle in
// a broken flow cannot spin the engine.
const maxConditionalHops = 16

// RepromptPrefix is prepended to the re-rendered screen when input matches
// no menu option or fails validation. Gateways pass the text through as-is.
const RepromptPrefix = "Invalid choice.\n\n"

// Result is the outcome of a successful engine operation, carrying the
// screen text for the gateway to render.
type Result struct {
	Session *domain.Session
	Text    string
	Status  domain.Status

	// Reprompt is set when the input was rejected and the session stayed
	// on the same node awaiting a retry.
	Reprompt bool
}

// Engine executes USSD dialogs turn by turn. Each call runs to completion
// with no internal waiting; slow I/O belongs to the store collaborators.
type Engine struct {
	flows    ports.FlowStore
	sessions ports.SessionStore

	timeout time.Duration
	clock   func() time.Time
	newID   func() string
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
}

// New creates an Engine over the given flow and session stores.
func New(flows ports.FlowStore, sessions ports.SessionStore, opts ...Option) *Engine {
	e := &Engine{
		flows:    flows,
		sessions: sessions,
		timeout:  DefaultSessionTimeout,
		clock:    time.Now,
		newID:    uuid.NewString,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the engine's current time, honoring an injected clock.
func (e *Engine) Now() time.Time {
	return e.clock()
}

// CreateSession starts a new dialog on the latest version of the flow and
// returns the entry screen. Fails with domain.ErrConflictingActiveSession
// if the channel already has an active dialog, and domain.ErrFlowNotFound
// if the flow is missing or has no start node.
func (e *Engine) CreateSession(ctx context.Context, flowID, phoneNumber, shortCode string) (*Result, error) {
	flow, err := e.flows.Get(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("load flow %q: %w", flowID, err)
	}

	start, ok := flow.StartNode()
	if !ok {
		return nil, fmt.Errorf("flow %q has no start node: %w", flowID, domain.ErrFlowNotFound)
	}

	step, err := resolver.Next(flow, start, "", nil)
	if err != nil {
		return nil, err
	}
	entry, vars, err := e.settle(flow, step.TargetNodeID, nil)
	if err != nil {
		return nil, err
	}

	now := e.clock()

	// A holder that is logically expired but not yet swept must not block a
	// re-dial: apply the same lazy expiry as the read paths, which releases
	// the channel before the store checks it.
	if existing, err := e.sessions.GetByChannel(ctx, phoneNumber, shortCode); err == nil && existing.ExpiredAt(now) {
		e.expire(ctx, existing)
	}

	session := domain.NewSession(e.newID(), flow.ID, flow.Version, phoneNumber, shortCode, entry.ID, now, e.timeout)
	for k, v := range vars {
		session.Variables[k] = v
	}

	if err := e.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	e.emit(ctx, e.hooks.OnSessionStart, session, domain.EventSessionStarted)

	// A flow whose entry is already a sink completes on arrival; a session
	// must never rest active on an end node.
	if entry.Kind == domain.KindEnd {
		if err := e.close(ctx, session, domain.StatusCompleted, ""); err != nil {
			return nil, err
		}
	}

	return &Result{
		Session: session,
		Text:    resolver.Render(entry, session.Variables),
		Status:  session.Status,
	}, nil
}

// ProcessInput advances an active session by one user turn.
//
// Invalid selections do not fail: the session stays put and the result
// carries a re-prompt. Flow definition bugs surface as
// domain.ErrFlowMisconfigured with the session left active for the operator
// to fix. A lost optimistic save surfaces as
// domain.ErrConcurrentModification; callers treat it as a retransmit.
func (e *Engine) ProcessInput(ctx context.Context, sessionID, rawInput string) (*Result, error) {
	// Turn latency is measured on the wall clock, independent of an
	// injected test clock.
	started := time.Now()

	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	if session.ExpiredAt(now) {
		e.expire(ctx, session)
		return nil, fmt.Errorf("session %s expired: %w", sessionID, domain.ErrSessionNotActive)
	}
	if session.Status != domain.StatusActive {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, domain.ErrSessionNotActive)
	}

	flow, err := e.flows.GetVersion(ctx, session.FlowID, session.FlowVersion)
	if err != nil {
		return nil, fmt.Errorf("load flow %q v%d: %w", session.FlowID, session.FlowVersion, err)
	}

	node, err := resolver.ResolveNode(flow, session.CurrentNodeID)
	if err != nil {
		return nil, fmt.Errorf("session %s points at missing node: %w", sessionID, domain.ErrFlowMisconfigured)
	}

	// Defensive: an active session should never be resting on an end node,
	// but if one is found there, complete it instead of routing.
	if node.Kind == domain.KindEnd {
		if err := e.close(ctx, session, domain.StatusCompleted, ""); err != nil {
			return nil, err
		}
		return &Result{
			Session: session,
			Text:    resolver.Render(node, session.Variables),
			Status:  session.Status,
		}, nil
	}

	step, err := resolver.Next(flow, node, rawInput, session.Variables)
	if errors.Is(err, domain.ErrInvalidSelection) {
		e.emitStep(ctx, session, domain.EventInvalidSelection, time.Since(started))
		return &Result{
			Session:  session,
			Text:     RepromptPrefix + resolver.Render(node, session.Variables),
			Status:   session.Status,
			Reprompt: true,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	target, vars, err := e.settle(flow, step.TargetNodeID, mergeVars(session.Variables, step.Variables))
	if err != nil {
		return nil, err
	}

	session.Inputs = append(session.Inputs, domain.InputRecord{
		RawInput:  rawInput,
		NodeID:    node.ID,
		Step:      session.StepCount + 1,
		Timestamp: now,
	})
	session.Variables = vars
	session.CurrentNodeID = target.ID
	session.StepCount++
	session.LastActivityAt = now
	session.ExpiresAt = now.Add(e.timeout)
	if target.Kind == domain.KindEnd {
		session.Status = domain.StatusCompleted
		completed := now
		session.CompletedAt = &completed
	}

	if err := e.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	e.emitStep(ctx, session, domain.EventStepProcessed, time.Since(started))
	if session.Status == domain.StatusCompleted {
		e.emit(ctx, e.hooks.OnSessionEnd, session, domain.EventSessionCompleted)
	}

	return &Result{
		Session: session,
		Text:    resolver.Render(target, session.Variables),
		Status:  session.Status,
	}, nil
}

// NavigateToNode is an administrative override that repositions an active
// session without edge validation. It is not a user turn: nothing is
// appended to the input log, though activity is refreshed.
func (e *Engine) NavigateToNode(ctx context.Context, sessionID, nodeID string) (*domain.Session, error) {
	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	if session.ExpiredAt(now) {
		e.expire(ctx, session)
		return nil, fmt.Errorf("session %s expired: %w", sessionID, domain.ErrSessionNotActive)
	}
	if session.Status != domain.StatusActive {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, domain.ErrSessionNotActive)
	}

	flow, err := e.flows.GetVersion(ctx, session.FlowID, session.FlowVersion)
	if err != nil {
		return nil, fmt.Errorf("load flow %q v%d: %w", session.FlowID, session.FlowVersion, err)
	}
	if _, ok := flow.Node(nodeID); !ok {
		return nil, fmt.Errorf("node %q: %w", nodeID, domain.ErrNodeNotFound)
	}

	session.CurrentNodeID = nodeID
	session.LastActivityAt = now

	if err := e.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CompleteSession force-completes an active session. Idempotent: completing
// an already-terminal session is a no-op success.
func (e *Engine) CompleteSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.forceClose(ctx, sessionID, domain.StatusCompleted, "")
}

// TerminateSession force-terminates an active session with a free-text
// reason. Idempotent like CompleteSession.
func (e *Engine) TerminateSession(ctx context.Context, sessionID, reason string) (*domain.Session, error) {
	return e.forceClose(ctx, sessionID, domain.StatusTerminated, reason)
}

// GetActiveSession looks up the active session for a channel, applying the
// same lazy-expiry check as ProcessInput. A logically expired session is
// transitioned and reported as not found, never returned.
func (e *Engine) GetActiveSession(ctx context.Context, phoneNumber, shortCode string) (*domain.Session, error) {
	session, err := e.sessions.GetByChannel(ctx, phoneNumber, shortCode)
	if err != nil {
		return nil, err
	}
	if session.ExpiredAt(e.clock()) {
		e.expire(ctx, session)
		return nil, fmt.Errorf("channel session expired: %w", domain.ErrSessionNotFound)
	}
	return session, nil
}

func (e *Engine) forceClose(ctx context.Context, sessionID string, status domain.Status, reason string) (*domain.Session, error) {
	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		// Tolerate duplicate administrative requests.
		return session, nil
	}
	if err := e.close(ctx, session, status, reason); err != nil {
		return nil, err
	}
	return session, nil
}

// close transitions a session to a terminal status and persists it.
func (e *Engine) close(ctx context.Context, session *domain.Session, status domain.Status, reason string) error {
	now := e.clock()
	session.Status = status
	session.LastActivityAt = now
	session.TerminationReason = reason
	completed := now
	session.CompletedAt = &completed

	if err := e.sessions.Save(ctx, session); err != nil {
		return err
	}

	event := domain.EventSessionCompleted
	switch status {
	case domain.StatusExpired:
		event = domain.EventSessionExpired
	case domain.StatusTerminated:
		event = domain.EventSessionTerminated
	}
	e.emit(ctx, e.hooks.OnSessionEnd, session, event)
	return nil
}

// expire applies lazy expiry. Losing the save to a concurrent writer is
// fine: whoever won has already settled the session's fate.
func (e *Engine) expire(ctx context.Context, session *domain.Session) {
	if err := e.close(ctx, session, domain.StatusExpired, ""); err != nil {
		if !errors.Is(err, domain.ErrConcurrentModification) {
			e.logger.Warn("failed to persist lazy expiry",
				"session_id", session.SessionID,
				"err", err,
			)
		}
	}
}

// settle resolves pass-through conditional nodes until the session lands on
// a presentable screen. Conditionals never consume input and never rest.
func (e *Engine) settle(flow *domain.Flow, nodeID string, vars map[string]string) (domain.Node, map[string]string, error) {
	if vars == nil {
		vars = make(map[string]string)
	}
	node, err := resolver.ResolveNode(flow, nodeID)
	if err != nil {
		return domain.Node{}, nil, fmt.Errorf("edge target missing: %w", domain.ErrFlowMisconfigured)
	}

	for hops := 0; node.Kind == domain.KindConditional; hops++ {
		if hops >= maxConditionalHops {
			return domain.Node{}, nil, fmt.Errorf("conditional chain from %q exceeds %d hops: %w", nodeID, maxConditionalHops, domain.ErrFlowMisconfigured)
		}
		step, err := resolver.Next(flow, node, "", vars)
		if err != nil {
			return domain.Node{}, nil, err
		}
		node, err = resolver.ResolveNode(flow, step.TargetNodeID)
		if err != nil {
			return domain.Node{}, nil, fmt.Errorf("conditional target missing: %w", domain.ErrFlowMisconfigured)
		}
	}
	return node, vars, nil
}

func (e *Engine) emit(ctx context.Context, hook func(context.Context, *domain.SessionEvent), session *domain.Session, eventType domain.EventType) {
	if hook == nil {
		return
	}
	hook(ctx, newEvent(e.clock(), session, eventType))
}

// emitStep emits a turn event carrying the time the turn took.
func (e *Engine) emitStep(ctx context.Context, session *domain.Session, eventType domain.EventType, took time.Duration) {
	if e.hooks.OnStep == nil {
		return
	}
	event := newEvent(e.clock(), session, eventType)
	event.Duration = took
	e.hooks.OnStep(ctx, event)
}

func newEvent(now time.Time, session *domain.Session, eventType domain.EventType) *domain.SessionEvent {
	return &domain.SessionEvent{
		Timestamp:   now,
		Type:        eventType,
		SessionID:   session.SessionID,
		FlowID:      session.FlowID,
		PhoneNumber: session.PhoneNumber,
		ShortCode:   session.ShortCode,
		NodeID:      session.CurrentNodeID,
		Step:        session.StepCount,
	}
}

func mergeVars(base, updates map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(updates))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}
