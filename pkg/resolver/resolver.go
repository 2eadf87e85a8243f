package resolver

import (
	"fmt"
	"strings"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

// Step is the outcome of resolving one user turn against the graph.
type Step struct {
	// TargetNodeID is the node the session moves to.
	TargetNodeID string

	// Variables holds new or updated variable values captured during the
	// step (currently only set by input nodes). Nil when nothing changed.
	Variables map[string]string
}

// ResolveNode looks up a node by ID.
func ResolveNode(flow *domain.Flow, nodeID string) (domain.Node, error) {
	node, ok := flow.Node(nodeID)
	if !ok {
		return domain.Node{}, fmt.Errorf("node %q: %w", nodeID, domain.ErrNodeNotFound)
	}
	return node, nil
}

// Next selects the target node for one turn, per the current node's kind.
//
// Menu nodes require rawInput to match an option key; input nodes validate
// and capture rawInput; response nodes advance on any input; conditional
// nodes route on a stored variable and ignore rawInput. Calling Next on an
// end node is a programming error.
func Next(flow *domain.Flow, node domain.Node, rawInput string, variables map[string]string) (Step, error) {
	switch node.Kind {
	case domain.KindStart, domain.KindResponse:
		return followDefaultEdge(flow, node)

	case domain.KindMenu:
		return nextFromMenu(flow, node, rawInput)

	case domain.KindInput:
		return nextFromInput(flow, node, rawInput)

	case domain.KindConditional:
		return nextFromConditional(flow, node, variables)

	case domain.KindEnd:
		return Step{}, fmt.Errorf("next on end node %q: %w", node.ID, domain.ErrInvalidState)

	default:
		return Step{}, fmt.Errorf("node %q has unknown kind %q: %w", node.ID, node.Kind, domain.ErrFlowMisconfigured)
	}
}

// followDefaultEdge follows the single unconditional edge of a node.
func followDefaultEdge(flow *domain.Flow, node domain.Node) (Step, error) {
	var target string
	for _, e := range flow.EdgesFrom(node.ID) {
		if e.OptionKey != "" {
			continue
		}
		if target != "" {
			return Step{}, fmt.Errorf("node %q has multiple unconditional edges: %w", node.ID, domain.ErrFlowMisconfigured)
		}
		target = e.TargetNodeID
	}
	if target == "" {
		return Step{}, fmt.Errorf("node %q has no unconditional edge: %w", node.ID, domain.ErrFlowMisconfigured)
	}
	return Step{TargetNodeID: target}, nil
}

func nextFromMenu(flow *domain.Flow, node domain.Node, rawInput string) (Step, error) {
	if node.Menu == nil {
		return Step{}, fmt.Errorf("menu node %q has no payload: %w", node.ID, domain.ErrFlowMisconfigured)
	}

	input := strings.TrimSpace(rawInput)
	var matched string
	for _, opt := range node.Menu.Options {
		if input == opt.Key {
			matched = opt.Key
			break
		}
	}
	if matched == "" {
		return Step{}, fmt.Errorf("input %q matches no option on node %q: %w", input, node.ID, domain.ErrInvalidSelection)
	}

	for _, e := range flow.EdgesFrom(node.ID) {
		if e.OptionKey == matched {
			return Step{TargetNodeID: e.TargetNodeID}, nil
		}
	}
	// An option without a wired edge is a definition bug, not a user error.
	return Step{}, fmt.Errorf("option %q on node %q has no edge: %w", matched, node.ID, domain.ErrFlowMisconfigured)
}

func nextFromInput(flow *domain.Flow, node domain.Node, rawInput string) (Step, error) {
	if node.Input == nil || node.Input.VariableName == "" {
		return Step{}, fmt.Errorf("input node %q has no variable name: %w", node.ID, domain.ErrFlowMisconfigured)
	}

	if err := validateInput(node.Input.Validation, rawInput); err != nil {
		return Step{}, fmt.Errorf("node %q: %w", node.ID, err)
	}

	step, err := followDefaultEdge(flow, node)
	if err != nil {
		return Step{}, err
	}
	step.Variables = map[string]string{node.Input.VariableName: rawInput}
	return step, nil
}

func nextFromConditional(flow *domain.Flow, node domain.Node, variables map[string]string) (Step, error) {
	if node.Conditional == nil {
		return Step{}, fmt.Errorf("conditional node %q has no payload: %w", node.ID, domain.ErrFlowMisconfigured)
	}

	value := variables[node.Conditional.VariableName]
	for _, rule := range node.Conditional.Rules {
		if value == rule.MatchValue {
			return Step{TargetNodeID: rule.TargetNodeID}, nil
		}
	}
	if node.Conditional.DefaultTargetNodeID == "" {
		return Step{}, fmt.Errorf("conditional node %q matched nothing and has no default: %w", node.ID, domain.ErrFlowMisconfigured)
	}
	return Step{TargetNodeID: node.Conditional.DefaultTargetNodeID}, nil
}

// validateInput applies an input node's validation rule. A nil rule means
// the input must be non-empty after trimming.
func validateInput(rule *domain.ValidationRule, rawInput string) error {
	trimmed := strings.TrimSpace(rawInput)
	if rule == nil {
		if trimmed == "" {
			return fmt.Errorf("empty input: %w", domain.ErrInvalidSelection)
		}
		return nil
	}

	switch rule.Kind {
	case "", "nonempty":
		if trimmed == "" {
			return fmt.Errorf("empty input: %w", domain.ErrInvalidSelection)
		}
	case "numeric":
		if trimmed == "" {
			return fmt.Errorf("empty input: %w", domain.ErrInvalidSelection)
		}
		for _, r := range trimmed {
			if r < '0' || r > '9' {
				return fmt.Errorf("non-numeric input: %w", domain.ErrInvalidSelection)
			}
		}
	case "length":
		if rule.MinLength > 0 && len(trimmed) < rule.MinLength {
			return fmt.Errorf("input shorter than %d: %w", rule.MinLength, domain.ErrInvalidSelection)
		}
		if rule.MaxLength > 0 && len(trimmed) > rule.MaxLength {
			return fmt.Errorf("input longer than %d: %w", rule.MaxLength, domain.ErrInvalidSelection)
		}
	default:
		return fmt.Errorf("unknown validation kind %q: %w", rule.Kind, domain.ErrFlowMisconfigured)
	}
	return nil
}
