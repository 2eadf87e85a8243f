package schema

import (
	"fmt"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

// Validate checks the graph invariants the engine relies on. It returns a
// *ValidationError aggregating every violation, or nil.
func Validate(flow *domain.Flow) error {
	var violations []Violation
	add := func(subject, format string, args ...any) {
		violations = append(violations, Violation{Subject: subject, Reason: fmt.Sprintf(format, args...)})
	}

	if flow.ID == "" {
		add("", "flow id is required")
	}
	if flow.Version < 1 {
		add("", "flow version must be >= 1")
	}
	if len(flow.Nodes) == 0 {
		add("", "flow has no nodes")
	}

	startCount := 0
	for _, node := range flow.Nodes {
		if node.Kind == domain.KindStart {
			startCount++
		}
	}
	if startCount != 1 {
		add("", "flow must have exactly one start node, found %d", startCount)
	}

	// Edge endpoints must exist.
	for _, edge := range flow.Edges {
		if _, ok := flow.Nodes[edge.SourceNodeID]; !ok {
			add(edge.ID, "edge source %q does not exist", edge.SourceNodeID)
		}
		if _, ok := flow.Nodes[edge.TargetNodeID]; !ok {
			add(edge.ID, "edge target %q does not exist", edge.TargetNodeID)
		}
	}

	for id, node := range flow.Nodes {
		outgoing := flow.EdgesFrom(id)
		unconditional := 0
		for _, e := range outgoing {
			if e.OptionKey == "" {
				unconditional++
			}
		}

		switch node.Kind {
		case domain.KindStart:
			if len(outgoing) != 1 || unconditional != 1 {
				add(id, "start node must have exactly one unconditional edge")
			}

		case domain.KindMenu:
			if node.Menu == nil || len(node.Menu.Options) == 0 {
				add(id, "menu node has no options")
				continue
			}
			keys := make(map[string]bool, len(node.Menu.Options))
			for _, opt := range node.Menu.Options {
				if opt.Key == "" {
					add(id, "menu option has empty key")
					continue
				}
				if keys[opt.Key] {
					add(id, "menu option key %q duplicated", opt.Key)
				}
				keys[opt.Key] = true
			}
			wired := make(map[string]bool)
			for _, e := range outgoing {
				if e.OptionKey == "" {
					add(id, "menu node has an unconditional edge %q", e.ID)
					continue
				}
				if !keys[e.OptionKey] {
					add(id, "edge %q references unknown option key %q", e.ID, e.OptionKey)
				}
				if wired[e.OptionKey] {
					add(id, "option key %q wired by multiple edges", e.OptionKey)
				}
				wired[e.OptionKey] = true
			}
			for key := range keys {
				if !wired[key] {
					add(id, "option key %q has no edge", key)
				}
			}

		case domain.KindInput:
			if node.Input == nil || node.Input.VariableName == "" {
				add(id, "input node has no variable_name")
			}
			if unconditional != 1 {
				add(id, "input node must have exactly one unconditional edge, found %d", unconditional)
			}

		case domain.KindResponse:
			if node.Response == nil {
				add(id, "response node has no text")
			}
			if unconditional != 1 {
				add(id, "response node must have exactly one unconditional edge, found %d", unconditional)
			}

		case domain.KindConditional:
			if node.Conditional == nil {
				add(id, "conditional node has no payload")
				continue
			}
			if node.Conditional.VariableName == "" {
				add(id, "conditional node has no variable_name")
			}
			for _, rule := range node.Conditional.Rules {
				if _, ok := flow.Nodes[rule.TargetNodeID]; !ok {
					add(id, "rule target %q does not exist", rule.TargetNodeID)
				}
			}
			if node.Conditional.DefaultTargetNodeID == "" {
				add(id, "conditional node has no default target")
			} else if _, ok := flow.Nodes[node.Conditional.DefaultTargetNodeID]; !ok {
				add(id, "default target %q does not exist", node.Conditional.DefaultTargetNodeID)
			}

		case domain.KindEnd:
			if len(outgoing) != 0 {
				add(id, "end node must have no outgoing edges, found %d", len(outgoing))
			}

		default:
			add(id, "unsupported node kind %q", node.Kind)
		}
	}

	if len(violations) > 0 {
		return &ValidationError{FlowID: flow.ID, Violations: violations}
	}
	return nil
}
