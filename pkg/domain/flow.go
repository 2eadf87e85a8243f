package domain

// NodeKind constants define the control flow behavior of a node.
const (
	// KindStart marks the single entry point of a flow. It carries no
	// content; its one outgoing edge points at the first real screen.
	KindStart = "start"
	// KindMenu displays an ordered list of options and halts for input.
	KindMenu = "menu"
	// KindInput displays a prompt, halts, and stores the raw reply under a
	// named variable.
	KindInput = "input"
	// KindResponse displays an interpolated message. Any input advances it.
	KindResponse = "response"
	// KindConditional routes on a stored variable without consuming input.
	KindConditional = "conditional"
	// KindEnd is a sink state. Sessions arriving here complete.
	KindEnd = "end"
)

// MenuOption is one selectable entry on a menu screen.
type MenuOption struct {
	Key  string `json:"key" yaml:"key"`
	Text string `json:"text" yaml:"text"`
}

// ValidationRule constrains what an input node accepts.
// Kind is "numeric" or "length"; an empty rule means non-empty input.
type ValidationRule struct {
	Kind      string `json:"kind" yaml:"kind"`
	MinLength int    `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty" yaml:"max_length,omitempty"`
}

// ConditionalRule maps one stored value to a target node.
type ConditionalRule struct {
	MatchValue   string `json:"match_value" yaml:"match_value"`
	TargetNodeID string `json:"target_node_id" yaml:"target_node_id"`
}

// MenuPayload configures a menu node.
type MenuPayload struct {
	Title   string       `json:"title" yaml:"title"`
	Options []MenuOption `json:"options" yaml:"options"`
}

// InputPayload configures an input node.
type InputPayload struct {
	Prompt       string          `json:"prompt" yaml:"prompt"`
	VariableName string          `json:"variable_name" yaml:"variable_name"`
	Validation   *ValidationRule `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// ResponsePayload configures a response node. Text is a template with
// {variable} placeholders.
type ResponsePayload struct {
	Text string `json:"text" yaml:"text"`
}

// ConditionalPayload configures a conditional node. Rules are evaluated in
// declared order; the first exact match on the named variable wins.
type ConditionalPayload struct {
	VariableName        string            `json:"variable_name" yaml:"variable_name"`
	Rules               []ConditionalRule `json:"rules" yaml:"rules"`
	DefaultTargetNodeID string            `json:"default_target_node_id" yaml:"default_target_node_id"`
}

// EndPayload configures an end node. Text is an optional farewell template.
type EndPayload struct {
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Node represents one point in the flow graph. Kind selects which payload
// pointer is populated; the others are nil. The kind set is closed: stored
// documents with an unrecognized kind are rejected at load time.
type Node struct {
	ID   string `json:"id" yaml:"id"`
	Kind string `json:"kind" yaml:"kind"`

	Menu        *MenuPayload        `json:"menu,omitempty" yaml:"menu,omitempty"`
	Input       *InputPayload       `json:"input,omitempty" yaml:"input,omitempty"`
	Response    *ResponsePayload    `json:"response,omitempty" yaml:"response,omitempty"`
	Conditional *ConditionalPayload `json:"conditional,omitempty" yaml:"conditional,omitempty"`
	End         *EndPayload         `json:"end,omitempty" yaml:"end,omitempty"`
}

// Edge defines a traversal rule between two nodes. OptionKey binds the edge
// to a menu option; an edge without OptionKey is the unconditional "next"
// edge for input/response nodes (at most one per source node).
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	SourceNodeID string `json:"source_node_id" yaml:"source_node_id"`
	TargetNodeID string `json:"target_node_id" yaml:"target_node_id"`
	OptionKey    string `json:"option_key,omitempty" yaml:"option_key,omitempty"`
}

// Flow is an authored dialog graph. Instances are immutable once a session
// references them: edits publish a new Version, and in-flight sessions stay
// pinned to the version they started on.
type Flow struct {
	ID      string          `json:"id" yaml:"id"`
	Version int             `json:"version" yaml:"version"`
	Nodes   map[string]Node `json:"nodes" yaml:"nodes"`
	Edges   []Edge          `json:"edges" yaml:"edges"`
}

// Node returns the node with the given ID, if present.
func (f *Flow) Node(id string) (Node, bool) {
	n, ok := f.Nodes[id]
	return n, ok
}

// StartNode returns the flow's start node, if present.
func (f *Flow) StartNode() (Node, bool) {
	for _, n := range f.Nodes {
		if n.Kind == KindStart {
			return n, true
		}
	}
	return Node{}, false
}

// EdgesFrom returns all edges leaving the given node, in declared order.
func (f *Flow) EdgesFrom(nodeID string) []Edge {
	var out []Edge
	for _, e := range f.Edges {
		if e.SourceNodeID == nodeID {
			out = append(out, e)
		}
	}
	return out
}
