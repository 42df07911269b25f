package engine

import (
	"fmt"

	"github.com/cfortin/triage/formula"
	"github.com/cfortin/triage/tree"
)

// compiledNode wraps a node spec with values derived once at build time.
type compiledNode struct {
	spec       tree.Node
	inputCount int
}

func newCompiledNode(spec tree.Node) (*compiledNode, error) {
	switch spec.Type {
	case tree.NodeInput, tree.NodeLookup, tree.NodeEquation, tree.NodeOutput:
	default:
		return nil, fmt.Errorf("node %s: unknown node type %q", spec.ID, spec.Type)
	}

	n := &compiledNode{spec: spec, inputCount: 1}
	if count, ok := configInt(spec.Config, "input_count"); ok && count > 1 {
		n.inputCount = count
	}
	return n, nil
}

// evaluate runs one node against the record. It returns the value the
// node resolved and the index of the matched condition, or -1 when the
// node has no branching. Output nodes resolve to their decision label
// so the terminal audit-trail step carries it.
func (n *compiledNode) evaluate(ctx *evalContext) (any, int, error) {
	switch n.spec.Type {
	case tree.NodeInput:
		return n.evaluateInput(ctx)
	case tree.NodeLookup:
		return n.evaluateLookup(ctx)
	case tree.NodeEquation:
		return n.evaluateEquation(ctx)
	case tree.NodeOutput:
		label, _ := n.decision()
		return label, -1, nil
	default:
		return nil, -1, nodeErrorf(n.spec.ID, "unknown node type %q", n.spec.Type)
	}
}

func (n *compiledNode) evaluateInput(ctx *evalContext) (any, int, error) {
	field, ok := configString(n.spec.Config, "field")
	if !ok {
		return nil, -1, nodeErrorf(n.spec.ID, "input node has no field configured")
	}

	value := ctx.record.Resolve(field)

	idx, err := n.matchCondition(value, ctx)
	if err != nil {
		return value, -1, err
	}
	if idx >= 0 {
		return value, idx, nil
	}

	if fallback, ok := n.defaultBranch(); ok {
		return value, fallback, nil
	}
	return value, -1, nodeErrorf(n.spec.ID, "no condition matched field %q (value %v)", field, value)
}

func (n *compiledNode) evaluateLookup(ctx *evalContext) (any, int, error) {
	table, ok := configString(n.spec.Config, "lookup_table")
	if !ok {
		return nil, -1, nodeErrorf(n.spec.ID, "lookup node has no lookup_table configured")
	}
	keyField, ok := configString(n.spec.Config, "lookup_key")
	if !ok {
		return nil, -1, nodeErrorf(n.spec.ID, "lookup node has no lookup_key configured")
	}
	valueField, ok := configString(n.spec.Config, "lookup_field")
	if !ok {
		return nil, -1, nodeErrorf(n.spec.ID, "lookup node has no lookup_field configured")
	}

	// Lookup keys come from the record itself, not the CVSS virtual
	// fields: a decoded metric is never a join key.
	key := ctx.record.Field(keyField)
	rows := ctx.lookups[table]

	var value any
	found := false
	if key != nil && rows != nil {
		if row, ok := rows[stringify(key)]; ok {
			value = row[valueField]
			found = true
		}
	}

	if !found {
		if fallback, ok := n.defaultBranch(); ok {
			return nil, fallback, nil
		}
		if key == nil {
			return nil, -1, nodeErrorf(n.spec.ID, "lookup key field %q is empty", keyField)
		}
		return nil, -1, nodeErrorf(n.spec.ID, "no row in table %q for key %v", table, key)
	}

	idx, err := n.matchCondition(value, ctx)
	if err != nil {
		return value, -1, err
	}
	if idx >= 0 {
		return value, idx, nil
	}
	return value, -1, nodeErrorf(n.spec.ID, "no condition matched lookup value %v", value)
}

func (n *compiledNode) evaluateEquation(ctx *evalContext) (any, int, error) {
	expr, ok := configString(n.spec.Config, "formula")
	if !ok {
		return nil, -1, nodeErrorf(n.spec.ID, "equation node has no formula configured")
	}

	names := configStrings(n.spec.Config, "variables")
	if len(names) == 0 {
		names = formula.ExtractVariables(expr)
	}

	variables := make(map[string]any, len(names))
	for _, name := range names {
		variables[name] = n.mapVariable(name, ctx.record.Resolve(name))
	}

	value, err := formula.Evaluate(expr, variables)
	if err != nil {
		return nil, -1, nodeErrorf(n.spec.ID, "formula failed: %v", err)
	}

	idx, matchErr := n.matchCondition(value, ctx)
	if matchErr != nil {
		return value, -1, matchErr
	}
	if idx >= 0 {
		return value, idx, nil
	}

	if fallback, ok := n.defaultBranch(); ok {
		return value, fallback, nil
	}
	return value, -1, nodeErrorf(n.spec.ID, "no condition matched computed value %v", value)
}

// mapVariable applies the node's value_maps entry for a variable, which
// translates categorical values (severity labels, CVSS metric codes)
// into numbers before the formula sees them. Only nil and string values
// are mapped; numbers pass through untouched.
func (n *compiledNode) mapVariable(name string, value any) any {
	raw, ok := n.spec.Config["value_maps"].(map[string]any)
	if !ok {
		return value
	}
	vm, ok := raw[name].(map[string]any)
	if !ok {
		return value
	}

	_, isString := value.(string)
	if value != nil && !isString {
		return value
	}

	if entries, ok := vm["entries"].([]any); ok && value != nil {
		text := stringify(value)
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if asString(entry["text"]) == text {
				return entry["value"]
			}
		}
	}

	if def, ok := vm["default_value"]; ok {
		return def
	}
	// A mapped variable with no matching entry resolves to 0, never to
	// the raw text, so the formula stays numeric.
	return 0.0
}

// matchCondition returns the index of the first matching condition, or
// -1 when none match. Condition errors are fatal for the record.
func (n *compiledNode) matchCondition(value any, ctx *evalContext) (int, error) {
	for i := range n.spec.Conditions {
		ok, err := evaluateCondition(value, &n.spec.Conditions[i], ctx)
		if err != nil {
			return -1, nodeErrorf(n.spec.ID, "condition %d: %v", i, err)
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

// defaultBranch returns the configured fallback condition index, if any.
// An out-of-range index is treated as unset.
func (n *compiledNode) defaultBranch() (int, bool) {
	idx, ok := configInt(n.spec.Config, "default_branch")
	if !ok || idx < 0 || idx >= len(n.spec.Conditions) {
		return 0, false
	}
	return idx, true
}

// decision returns an output node's decision label and color.
func (n *compiledNode) decision() (string, string) {
	label, ok := configString(n.spec.Config, "decision")
	if !ok {
		label = "Unknown"
	}
	color, _ := configString(n.spec.Config, "color")
	return label, color
}

// fieldEvaluated names the record field this node reads, for the audit
// trail.
func (n *compiledNode) fieldEvaluated() string {
	switch n.spec.Type {
	case tree.NodeInput:
		field, _ := configString(n.spec.Config, "field")
		return field
	case tree.NodeLookup:
		field, _ := configString(n.spec.Config, "lookup_field")
		return field
	default:
		return ""
	}
}

func configString(config map[string]any, key string) (string, bool) {
	raw, ok := config[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// configInt reads an integer config value, accepting the float64 that
// JSON decoding produces.
func configInt(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func configStrings(config map[string]any, key string) []string {
	raw, ok := config[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
