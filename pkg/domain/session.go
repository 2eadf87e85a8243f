package domain

import "time"

// Status defines the lifecycle state of a session.
type Status string

const (
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
	StatusTerminated Status = "terminated"
)

// IsTerminal reports whether the status is a sink state. Terminal sessions
// are retained for audit but never mutated again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusTerminated
}

// InputRecord is one entry in the session's append-only audit log.
type InputRecord struct {
	RawInput  string    `json:"raw_input"`
	NodeID    string    `json:"node_id"`
	Step      int       `json:"step"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents one handset dialog traversing a flow. It is owned and
// mutated exclusively by the engine; stores persist it verbatim.
type Session struct {
	SessionID   string `json:"session_id"`
	FlowID      string `json:"flow_id"`
	FlowVersion int    `json:"flow_version"`

	// PhoneNumber and ShortCode identify the dialog channel. At most one
	// active session may exist per channel at any time.
	PhoneNumber string `json:"phone_number"`
	ShortCode   string `json:"short_code"`

	Status        Status `json:"status"`
	CurrentNodeID string `json:"current_node_id"`

	// Variables accumulates values captured by input nodes.
	Variables map[string]string `json:"variables"`

	// Inputs is append-only; entries are never rewritten.
	Inputs []InputRecord `json:"inputs"`

	StepCount int `json:"step_count"`

	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	// TerminationReason holds the free-text reason for admin termination.
	TerminationReason string `json:"termination_reason,omitempty"`

	// Revision is the optimistic concurrency token. Stores compare it on
	// save and increment it on success; a mismatch means a concurrent
	// writer already advanced this session.
	Revision int64 `json:"revision"`
}

// NewSession creates an active session positioned at entryNodeID.
func NewSession(id, flowID string, flowVersion int, phoneNumber, shortCode, entryNodeID string, now time.Time, timeout time.Duration) *Session {
	return &Session{
		SessionID:      id,
		FlowID:         flowID,
		FlowVersion:    flowVersion,
		PhoneNumber:    phoneNumber,
		ShortCode:      shortCode,
		Status:         StatusActive,
		CurrentNodeID:  entryNodeID,
		Variables:      make(map[string]string),
		StartedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(timeout),
	}
}

// ExpiredAt reports whether the session has logically expired at the given
// instant. Only meaningful for active sessions.
func (s *Session) ExpiredAt(now time.Time) bool {
	return s.Status == StatusActive && now.After(s.ExpiresAt)
}

// Clone returns a deep copy so stores and callers cannot alias each other's
// mutable fields.
func (s *Session) Clone() *Session {
	c := *s
	c.Variables = make(map[string]string, len(s.Variables))
	for k, v := range s.Variables {
		c.Variables[k] = v
	}
	c.Inputs = make([]InputRecord, len(s.Inputs))
	copy(c.Inputs, s.Inputs)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
