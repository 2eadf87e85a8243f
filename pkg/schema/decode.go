package schema

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/katlego-io/ussdflow/pkg/domain"
)

// Document mirrors the wire shape of an authored flow. Nodes are a list
// (editor output order is meaningful for humans, not for the engine) and
// payload fields sit under the kind name.
type Document struct {
	ID      string         `mapstructure:"id"`
	Version int            `mapstructure:"version"`
	Nodes   []nodeDocument `mapstructure:"nodes"`
	Edges   []edgeDocument `mapstructure:"edges"`
}

type nodeDocument struct {
	ID          string               `mapstructure:"id"`
	Kind        string               `mapstructure:"kind"`
	Menu        *menuDocument        `mapstructure:"menu"`
	Input       *inputDocument       `mapstructure:"input"`
	Response    *responseDocument    `mapstructure:"response"`
	Conditional *conditionalDocument `mapstructure:"conditional"`
	End         *endDocument         `mapstructure:"end"`
}

type menuDocument struct {
	Title   string `mapstructure:"title"`
	Options []struct {
		Key  string `mapstructure:"key"`
		Text string `mapstructure:"text"`
	} `mapstructure:"options"`
}

type inputDocument struct {
	Prompt       string `mapstructure:"prompt"`
	VariableName string `mapstructure:"variable_name"`
	Validation   *struct {
		Kind      string `mapstructure:"kind"`
		MinLength int    `mapstructure:"min_length"`
		MaxLength int    `mapstructure:"max_length"`
	} `mapstructure:"validation"`
}

type responseDocument struct {
	Text string `mapstructure:"text"`
}

type conditionalDocument struct {
	VariableName string `mapstructure:"variable_name"`
	Rules        []struct {
		MatchValue   string `mapstructure:"match_value"`
		TargetNodeID string `mapstructure:"target_node_id"`
	} `mapstructure:"rules"`
	DefaultTargetNodeID string `mapstructure:"default_target_node_id"`
}

type endDocument struct {
	Text string `mapstructure:"text"`
}

type edgeDocument struct {
	ID           string `mapstructure:"id"`
	SourceNodeID string `mapstructure:"source_node_id"`
	TargetNodeID string `mapstructure:"target_node_id"`
	OptionKey    string `mapstructure:"option_key"`
}

// ParseJSON decodes and validates a JSON flow document.
func ParseJSON(data []byte) (*domain.Flow, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid flow JSON: %w", err)
	}
	return Decode(raw)
}

// ParseYAML decodes and validates a YAML flow document.
func ParseYAML(data []byte) (*domain.Flow, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid flow YAML: %w", err)
	}
	return Decode(raw)
}

// Decode maps a loosely-typed document onto a typed flow and validates it.
func Decode(raw map[string]any) (*domain.Flow, error) {
	var doc Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true, // editor JSON mixes numbers and numeric strings
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("flow document does not match schema: %w", err)
	}

	flow := &domain.Flow{
		ID:      doc.ID,
		Version: doc.Version,
		Nodes:   make(map[string]domain.Node, len(doc.Nodes)),
		Edges:   make([]domain.Edge, 0, len(doc.Edges)),
	}

	for _, nd := range doc.Nodes {
		node, err := nd.toDomain()
		if err != nil {
			return nil, err
		}
		if _, dup := flow.Nodes[node.ID]; dup {
			return nil, &ValidationError{FlowID: doc.ID, Violations: []Violation{
				{Subject: node.ID, Reason: "duplicate node id"},
			}}
		}
		flow.Nodes[node.ID] = node
	}

	for _, ed := range doc.Edges {
		flow.Edges = append(flow.Edges, domain.Edge{
			ID:           ed.ID,
			SourceNodeID: ed.SourceNodeID,
			TargetNodeID: ed.TargetNodeID,
			OptionKey:    ed.OptionKey,
		})
	}

	if err := Validate(flow); err != nil {
		return nil, err
	}
	return flow, nil
}

func (nd nodeDocument) toDomain() (domain.Node, error) {
	node := domain.Node{ID: nd.ID, Kind: nd.Kind}

	switch nd.Kind {
	case domain.KindStart:
		// No payload.
	case domain.KindMenu:
		if nd.Menu != nil {
			payload := &domain.MenuPayload{Title: nd.Menu.Title}
			for _, opt := range nd.Menu.Options {
				payload.Options = append(payload.Options, domain.MenuOption{Key: opt.Key, Text: opt.Text})
			}
			node.Menu = payload
		}
	case domain.KindInput:
		if nd.Input != nil {
			payload := &domain.InputPayload{
				Prompt:       nd.Input.Prompt,
				VariableName: nd.Input.VariableName,
			}
			if nd.Input.Validation != nil {
				payload.Validation = &domain.ValidationRule{
					Kind:      nd.Input.Validation.Kind,
					MinLength: nd.Input.Validation.MinLength,
					MaxLength: nd.Input.Validation.MaxLength,
				}
			}
			node.Input = payload
		}
	case domain.KindResponse:
		if nd.Response != nil {
			node.Response = &domain.ResponsePayload{Text: nd.Response.Text}
		}
	case domain.KindConditional:
		if nd.Conditional != nil {
			payload := &domain.ConditionalPayload{
				VariableName:        nd.Conditional.VariableName,
				DefaultTargetNodeID: nd.Conditional.DefaultTargetNodeID,
			}
			for _, r := range nd.Conditional.Rules {
				payload.Rules = append(payload.Rules, domain.ConditionalRule{
					MatchValue:   r.MatchValue,
					TargetNodeID: r.TargetNodeID,
				})
			}
			node.Conditional = payload
		}
	case domain.KindEnd:
		if nd.End != nil {
			node.End = &domain.EndPayload{Text: nd.End.Text}
		}
	default:
		// The kind set is closed. Editor data occasionally carries ad-hoc
		// kinds ("api" and friends); rejecting them here keeps the engine
		// from ever meeting a node it cannot execute.
		return domain.Node{}, fmt.Errorf("node %q has unsupported kind %q: %w", nd.ID, nd.Kind, domain.ErrFlowMisconfigured)
	}

	return node, nil
}
