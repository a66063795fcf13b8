// Package workflow defines the DAG model shared by the runner, the stores,
// and the importer: workflows made of typed nodes joined by directed edges,
// plus structural validation and topological ordering.
package workflow

import (
	"encoding/json"
	"time"
)

type (
	// NodeType classifies a node's role in the graph.
	NodeType string

	// Position is a node's visual position on the canvas. It marshals as the
	// two-element array [x, y] and unmarshals from either that array or an
	// {x, y} object.
	Position struct {
		X int
		Y int
	}

	// Condition is one routing rule attached to a condition node. Output is
	// the index of the outgoing edge taken when the rule matches.
	Condition struct {
		Type   string `json:"type"`
		Left   any    `json:"left"`
		Right  any    `json:"right"`
		Output int    `json:"output"`
	}

	// Node is a single vertex of the workflow DAG.
	Node struct {
		ID           string         `json:"id"`
		Name         string         `json:"name"`
		Type         NodeType       `json:"type"`
		SkillID      string         `json:"skill_id,omitempty"`
		Parameters   map[string]any `json:"parameters,omitempty"`
		Position     Position       `json:"position"`
		Connections  []string       `json:"connections,omitempty"`
		Conditions   []Condition    `json:"conditions,omitempty"`
		Config       map[string]any `json:"config,omitempty"`
		OriginalType string         `json:"original_n8n_type,omitempty"`
	}

	// Edge is a directed connection between two nodes. OutputIndex records
	// which logical output of the source the edge is attached to; readiness
	// computation treats all outputs alike.
	Edge struct {
		ID          string `json:"id"`
		Source      string `json:"source"`
		Target      string `json:"target"`
		OutputIndex int    `json:"output_index"`
	}

	// Workflow is a complete DAG definition.
	Workflow struct {
		ID          string         `json:"id"`
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Nodes       []*Node        `json:"nodes"`
		Edges       []Edge         `json:"edges"`
		Triggers    []string       `json:"triggers"`
		Settings    map[string]any `json:"settings,omitempty"`
		CreatedAt   time.Time      `json:"created_at,omitzero"`
		UpdatedAt   time.Time      `json:"updated_at,omitzero"`
	}
)

// Node types.
const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeSkill     NodeType = "skill"
	NodeTypeCondition NodeType = "condition"
	NodeTypeMerge     NodeType = "merge"
	NodeTypeOutput    NodeType = "output"
)

// MarshalJSON encodes the position as [x, y].
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// UnmarshalJSON decodes [x, y] arrays and {x, y} objects. Coordinates may be
// fractional in foreign documents and are truncated to integers.
func (p *Position) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err == nil {
		if len(arr) > 0 {
			p.X = int(arr[0])
		}
		if len(arr) > 1 {
			p.Y = int(arr[1])
		}
		return nil
	}
	var obj struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	p.X = int(obj.X)
	p.Y = int(obj.Y)
	return nil
}

// Node returns the node with the given ID, or nil.
func (w *Workflow) Node(id string) *Node {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Clone returns a deep copy of the workflow. Stores use it so callers can
// mutate returned documents freely.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	c := *w
	c.Nodes = make([]*Node, len(w.Nodes))
	for i, n := range w.Nodes {
		nc := *n
		nc.Parameters = deepCopyMap(n.Parameters)
		nc.Config = deepCopyMap(n.Config)
		nc.Connections = append([]string(nil), n.Connections...)
		nc.Conditions = append([]Condition(nil), n.Conditions...)
		c.Nodes[i] = &nc
	}
	c.Edges = append([]Edge(nil), w.Edges...)
	c.Triggers = append([]string(nil), w.Triggers...)
	c.Settings = deepCopyMap(w.Settings)
	return &c
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = deepCopyValue(v)
	}
	return c
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = deepCopyValue(e)
		}
		return c
	default:
		return v
	}
}
