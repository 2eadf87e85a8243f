package ports

import (
	"context"
	"time"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

// FlowStore defines read access to authored flow definitions. The engine
// never writes flows; they are produced and edited by an external editor.
type FlowStore interface {
	// Get retrieves the latest published version of a flow.
	// Returns domain.ErrFlowNotFound if the flow does not exist.
	Get(ctx context.Context, flowID string) (*domain.Flow, error)

	// GetVersion retrieves one pinned version of a flow. In-flight sessions
	// use this so that concurrent edits are never observed mid-dialog.
	GetVersion(ctx context.Context, flowID string, version int) (*domain.Flow, error)
}

// FlowPublisher is implemented by flow stores that accept new versions.
// Publishing never mutates previously stored versions.
type FlowPublisher interface {
	Put(ctx context.Context, flow *domain.Flow) error
}

// SessionStore defines the persistence contract for sessions.
type SessionStore interface {
	// Get retrieves a session by ID.
	// Returns domain.ErrSessionNotFound if it does not exist.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// GetByChannel retrieves the active session for a (phone number, short
	// code) pair. Returns domain.ErrSessionNotFound if no active session
	// exists for the channel.
	GetByChannel(ctx context.Context, phoneNumber, shortCode string) (*domain.Session, error)

	// Create persists a new session and reserves its channel atomically.
	// Returns domain.ErrConflictingActiveSession if an active session
	// already holds the channel. This is a store-level constraint, not a
	// read-then-write check: concurrent creates for the same channel must
	// yield exactly one winner.
	Create(ctx context.Context, session *domain.Session) error

	// Save persists a mutated session. The write is conditional on
	// session.Revision matching the stored revision; on success the store
	// increments both. Returns domain.ErrConcurrentModification when a
	// concurrent writer got there first. Saving a terminal status releases
	// the channel reservation.
	Save(ctx context.Context, session *domain.Session) error

	// ListExpiring returns the IDs of active sessions whose expiry deadline
	// is at or before now. Used by the sweeper; the actual transition goes
	// through Save so the per-session atomicity rules apply.
	ListExpiring(ctx context.Context, now time.Time) ([]string, error)
}
