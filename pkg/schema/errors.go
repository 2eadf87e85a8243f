package schema

import (
	"fmt"
	"strings"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

// Violation is a single problem found in a flow document.
type Violation struct {
	// Subject is the node or edge ID the problem is attached to, or ""
	// for document-level problems.
	Subject string
	Reason  string
}

func (v Violation) String() string {
	if v.Subject == "" {
		return v.Reason
	}
	return v.Subject + ": " + v.Reason
}

// ValidationError aggregates every violation found in one document so
// operators fix a flow in a single pass. It matches
// domain.ErrFlowMisconfigured under errors.Is.
type ValidationError struct {
	FlowID     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("flow %q misconfigured: %s", e.FlowID, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return domain.ErrFlowMisconfigured
}
