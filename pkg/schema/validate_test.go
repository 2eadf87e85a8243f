package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katlego-io/ussdflow/pkg/domain"
	"github.com/katlego-io/ussdflow/pkg/schema"
)

func validFlow() *domain.Flow {
	return &domain.Flow{
		ID:      "f",
		Version: 1,
		Nodes: map[string]domain.Node{
			"start": {ID: "start", Kind: domain.KindStart},
			"main": {ID: "main", Kind: domain.KindMenu, Menu: &domain.MenuPayload{
				Title: "Menu",
				Options: []domain.MenuOption{
					{Key: "1", Text: "Go"},
				},
			}},
			"bye": {ID: "bye", Kind: domain.KindEnd},
		},
		Edges: []domain.Edge{
			{ID: "e1", SourceNodeID: "start", TargetNodeID: "main"},
			{ID: "e2", SourceNodeID: "main", TargetNodeID: "bye", OptionKey: "1"},
		},
	}
}

func reasons(t *testing.T, err error) []string {
	t.Helper()
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	out := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		out = append(out, v.Reason)
	}
	return out
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, schema.Validate(validFlow()))
}

func TestValidate_MissingIdentity(t *testing.T) {
	flow := validFlow()
	flow.ID = ""
	flow.Version = 0

	err := schema.Validate(flow)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFlowMisconfigured)
	got := reasons(t, err)
	assert.Contains(t, got, "flow id is required")
	assert.Contains(t, got, "flow version must be >= 1")
}

func TestValidate_StartNodeCardinality(t *testing.T) {
	flow := validFlow()
	delete(flow.Nodes, "start")
	flow.Edges = flow.Edges[1:]

	err := schema.Validate(flow)
	require.Error(t, err)
	assert.Contains(t, reasons(t, err), "flow must have exactly one start node, found 0")

	flow = validFlow()
	flow.Nodes["start2"] = domain.Node{ID: "start2", Kind: domain.KindStart}
	flow.Edges = append(flow.Edges, domain.Edge{ID: "e3", SourceNodeID: "start2", TargetNodeID: "main"})
	err = schema.Validate(flow)
	require.Error(t, err)
	assert.Contains(t, reasons(t, err), "flow must have exactly one start node, found 2")
}

func TestValidate_DanglingEdge(t *testing.T) {
	flow := validFlow()
	flow.Edges = append(flow.Edges, domain.Edge{ID: "bad", SourceNodeID: "main", TargetNodeID: "ghost", OptionKey: "1"})

	err := schema.Validate(flow)
	require.Error(t, err)
	assert.Contains(t, reasons(t, err), `edge target "ghost" does not exist`)
}

func TestValidate_MenuRules(t *testing.T) {
	t.Run("no options", func(t *testing.T) {
		flow := validFlow()
		node := flow.Nodes["main"]
		node.Menu = &domain.MenuPayload{Title: "Empty"}
		flow.Nodes["main"] = node

		err := schema.Validate(flow)
		require.Error(t, err)
		assert.Contains(t, reasons(t, err), "menu node has no options")
	})

	t.Run("unwired option", func(t *testing.T) {
		flow := validFlow()
		node := flow.Nodes["main"]
		node.Menu.Options = append(node.Menu.Options, domain.MenuOption{Key: "2", Text: "Dead"})
		flow.Nodes["main"] = node

		err := schema.Validate(flow)
		require.Error(t, err)
		assert.Contains(t, reasons(t, err), `option key "2" has no edge`)
	})

	t.Run("duplicate key", func(t *testing.T) {
		flow := validFlow()
		node := flow.Nodes["main"]
		node.Menu.Options = append(node.Menu.Options, domain.MenuOption{Key: "1", Text: "Again"})
		flow.Nodes["main"] = node

		err := schema.Validate(flow)
		require.Error(t, err)
		assert.Contains(t, reasons(t, err), `menu option key "1" duplicated`)
	})

	t.Run("unconditional edge", func(t *testing.T) {
		flow := validFlow()
		flow.Edges = append(flow.Edges, domain.Edge{ID: "e9", SourceNodeID: "main", TargetNodeID: "bye"})

		err := schema.Validate(flow)
		require.Error(t, err)
		assert.Contains(t, reasons(t, err), `menu node has an unconditional edge "e9"`)
	})
}

func TestValidate_InputRules(t *testing.T) {
	flow := validFlow()
	flow.Nodes["ask"] = domain.Node{ID: "ask", Kind: domain.KindInput, Input: &domain.InputPayload{Prompt: "?"}}
	flow.Edges = append(flow.Edges, domain.Edge{ID: "e3", SourceNodeID: "ask", TargetNodeID: "bye"})

	err := schema.Validate(flow)
	require.Error(t, err)
	assert.Contains(t, reasons(t, err), "input node has no variable_name")
}

func TestValidate_ConditionalRules(t *testing.T) {
	flow := validFlow()
	flow.Nodes["route"] = domain.Node{ID: "route", Kind: domain.KindConditional, Conditional: &domain.ConditionalPayload{
		VariableName: "tier",
		Rules:        []domain.ConditionalRule{{MatchValue: "gold", TargetNodeID: "ghost"}},
	}}

	err := schema.Validate(flow)
	require.Error(t, err)
	got := reasons(t, err)
	assert.Contains(t, got, `rule target "ghost" does not exist`)
	assert.Contains(t, got, "conditional node has no default target")
}

func TestValidate_EndHasNoOutgoingEdges(t *testing.T) {
	flow := validFlow()
	flow.Edges = append(flow.Edges, domain.Edge{ID: "e9", SourceNodeID: "bye", TargetNodeID: "main"})

	err := schema.Validate(flow)
	require.Error(t, err)
	assert.Contains(t, reasons(t, err), "end node must have no outgoing edges, found 1")
}
