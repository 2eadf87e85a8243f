package engine

import (
	"log/slog"
	"time"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

// DefaultSessionTimeout is the idle window before an active session expires.
// Telco gateways typically drop USSD dialogs well before this.
const DefaultSessionTimeout = 120 * time.Second

// Option configures the Engine.
type Option func(*Engine)

// WithSessionTimeout overrides the idle expiry window.
func WithSessionTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.timeout = timeout
	}
}

// WithClock injects a time source. Tests use this to drive expiry.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithLogger configures a structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks for session events.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}
