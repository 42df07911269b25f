// Package tree defines the persisted decision-tree structure (nodes,
// edges, conditions) and its storage layer. The structure is authored
// by an external editor and treated as data; compiling and evaluating
// it is the engine package's job.
package tree

import "time"

// NodeType identifies the behavior of a node.
type NodeType string

const (
	NodeInput    NodeType = "input"    // reads a record field and branches on it
	NodeLookup   NodeType = "lookup"   // resolves a value through a pre-fetched lookup table
	NodeEquation NodeType = "equation" // computes a score from a formula and branches on it
	NodeOutput   NodeType = "output"   // terminal decision
)

// Operator is a branch-condition comparison operator.
type Operator string

const (
	OpEquals             Operator = "eq"
	OpNotEquals          Operator = "neq"
	OpGreaterThan        Operator = "gt"
	OpGreaterThanOrEqual Operator = "gte"
	OpLessThan           Operator = "lt"
	OpLessThanOrEqual    Operator = "lte"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "not_contains"
	OpRegex              Operator = "regex"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "not_in"
	OpIsNull             Operator = "is_null"
	OpIsNotNull          Operator = "is_not_null"
)

// Logic joins the criteria of a compound condition.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Criterion is one comparison inside a compound condition. When Field
// is nil the criterion applies to the node's own subject value, which
// lets a compound condition mix the subject with other record fields.
type Criterion struct {
	Field    *string  `json:"field,omitempty"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// Condition guards one outgoing branch of a node. Exactly one mode is
// populated: simple (Operator + Value) or compound (Logic + Criteria).
// Condition order defines precedence; the first match wins.
type Condition struct {
	Label    string      `json:"label"`
	Operator *Operator   `json:"operator,omitempty"`
	Value    any         `json:"value,omitempty"`
	Logic    Logic       `json:"logic,omitempty"`
	Criteria []Criterion `json:"criteria,omitempty"`
}

// IsCompound reports whether the condition uses the compound mode.
func (c *Condition) IsCompound() bool {
	return c.Logic != "" && len(c.Criteria) > 0
}

// Node is one vertex of the decision tree. Config is type-specific:
//
//	input:    {"field": "cvss_score", "default_branch": 2}
//	lookup:   {"lookup_table": "assets", "lookup_key": "asset_id", "lookup_field": "criticality"}
//	equation: {"formula": "...", "variables": [...], "value_maps": {...}}
//	output:   {"decision": "Act", "color": "#ff0000"}
//
// A node with config "input_count" > 1 exposes that many independent
// input slots, each with its own set of outgoing branches.
type Node struct {
	ID         string         `json:"id"`
	Type       NodeType       `json:"type"`
	Label      string         `json:"label"`
	Config     map[string]any `json:"config,omitempty"`
	Conditions []Condition    `json:"conditions,omitempty"`
}

// Edge connects two nodes. SourceHandle addresses the outgoing branch
// ("handle-{cond}" or "handle-{slot}-{cond}" for multi-input sources);
// TargetHandle addresses the input slot of the target ("input-{n}").
type Edge struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	SourceHandle *string `json:"source_handle,omitempty"`
	TargetHandle *string `json:"target_handle,omitempty"`
	Label        *string `json:"label,omitempty"`
}

// Structure is the complete persisted tree: nodes, edges and an opaque
// metadata map (editor viewport and the like) passed through unchanged.
type Structure struct {
	Nodes    []Node         `json:"nodes"`
	Edges    []Edge         `json:"edges"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Tree is a stored decision tree with its identity and timestamps.
type Tree struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Structure   Structure `json:"structure"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
