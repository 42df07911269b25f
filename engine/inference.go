package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cfortin/triage/tree"
)

// maxTraversalSteps bounds one traversal so a cyclic structure cannot
// loop forever at evaluation time.
const maxTraversalSteps = 100

// compiledEdge is an edge with its routing handles parsed into typed
// fields. condIndex and inputSlot are -1 when the handle does not
// address them.
type compiledEdge struct {
	target     string
	condIndex  int
	inputSlot  int
	targetSlot int
	label      *string
}

// parseSourceHandle decodes "handle-{cond}" and "handle-{slot}-{cond}".
func parseSourceHandle(handle string) (slot, cond int) {
	slot, cond = -1, -1
	rest, ok := strings.CutPrefix(handle, "handle-")
	if !ok {
		return
	}
	parts := strings.Split(rest, "-")
	switch len(parts) {
	case 1:
		if n, err := strconv.Atoi(parts[0]); err == nil {
			cond = n
		}
	case 2:
		s, errS := strconv.Atoi(parts[0])
		c, errC := strconv.Atoi(parts[1])
		if errS == nil && errC == nil {
			slot, cond = s, c
		}
	}
	return
}

// parseTargetHandle decodes "input-{n}".
func parseTargetHandle(handle string) int {
	rest, ok := strings.CutPrefix(handle, "input-")
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return -1
	}
	return n
}

func newCompiledEdge(e tree.Edge) compiledEdge {
	ce := compiledEdge{
		target:     e.Target,
		condIndex:  -1,
		inputSlot:  -1,
		targetSlot: -1,
		label:      e.Label,
	}
	if e.SourceHandle != nil {
		ce.inputSlot, ce.condIndex = parseSourceHandle(*e.SourceHandle)
	}
	if e.TargetHandle != nil {
		ce.targetSlot = parseTargetHandle(*e.TargetHandle)
	}
	return ce
}

// InferenceEngine is a decision-tree structure compiled for evaluation.
// Compile once, evaluate many: the engine is immutable and safe for
// concurrent use from any number of goroutines.
type InferenceEngine struct {
	nodes  map[string]*compiledNode
	edges  map[string][]compiledEdge
	rootID string
}

// NewInferenceEngine compiles a structure. It rejects unknown node
// types and duplicate node IDs but performs no deep validation; use
// ValidateStructure for authoring-time checks.
func NewInferenceEngine(structure *tree.Structure) (*InferenceEngine, error) {
	e := &InferenceEngine{
		nodes: make(map[string]*compiledNode, len(structure.Nodes)),
		edges: make(map[string][]compiledEdge, len(structure.Nodes)),
	}

	for _, spec := range structure.Nodes {
		if _, exists := e.nodes[spec.ID]; exists {
			return nil, fmt.Errorf("duplicate node id %q", spec.ID)
		}
		node, err := newCompiledNode(spec)
		if err != nil {
			return nil, err
		}
		e.nodes[spec.ID] = node
	}

	hasIncoming := make(map[string]bool, len(structure.Nodes))
	for _, edge := range structure.Edges {
		e.edges[edge.Source] = append(e.edges[edge.Source], newCompiledEdge(edge))
		hasIncoming[edge.Target] = true
	}

	e.rootID = findRoot(structure.Nodes, hasIncoming)
	return e, nil
}

// findRoot picks the traversal entry point: the unique node with no
// incoming edge, or failing that the first input node in declaration
// order.
func findRoot(nodes []tree.Node, hasIncoming map[string]bool) string {
	var root string
	count := 0
	for _, n := range nodes {
		if !hasIncoming[n.ID] {
			root = n.ID
			count++
		}
	}
	if count == 1 {
		return root
	}
	for _, n := range nodes {
		if n.Type == tree.NodeInput {
			return n.ID
		}
	}
	return ""
}

// RootID returns the node evaluation starts from, empty if the
// structure has no identifiable root.
func (e *InferenceEngine) RootID() string { return e.rootID }

// Evaluate classifies one record. It never returns an error: failures
// produce a result with the Error decision and a populated Error field,
// so batch callers keep per-record isolation for free. The audit path
// is collected only when includePath is set.
func (e *InferenceEngine) Evaluate(record *VulnerabilityInput, lookups Lookups, includePath bool) EvaluationResult {
	result := EvaluationResult{RecordID: recordID(record)}

	if e.rootID == "" {
		return errorResult(result, "tree has no root node")
	}

	ctx := &evalContext{record: record, lookups: lookups}
	currentID := e.rootID
	currentSlot := -1

	for steps := 0; ; steps++ {
		if steps >= maxTraversalSteps {
			return errorResult(result, "iteration limit reached, tree may contain a cycle")
		}

		node, ok := e.nodes[currentID]
		if !ok {
			return errorResult(result, fmt.Sprintf("edge points to unknown node %q", currentID))
		}

		value, condIdx, err := node.evaluate(ctx)
		if err != nil {
			return errorResult(result, err.Error())
		}

		if includePath {
			step := Step{
				NodeID:         node.spec.ID,
				NodeLabel:      node.spec.Label,
				NodeType:       string(node.spec.Type),
				FieldEvaluated: node.fieldEvaluated(),
				ValueFound:     value,
			}
			if condIdx >= 0 && condIdx < len(node.spec.Conditions) {
				step.ConditionMatched = node.spec.Conditions[condIdx].Label
			}
			result.Path = append(result.Path, step)
		}

		if node.spec.Type == tree.NodeOutput {
			result.Decision, result.DecisionColor = node.decision()
			return result
		}

		next, err := e.nextEdge(node, currentSlot, condIdx)
		if err != nil {
			return errorResult(result, err.Error())
		}
		currentID = next.target
		currentSlot = next.targetSlot
	}
}

// nextEdge resolves the outgoing edge for a matched condition. A node
// with a single outgoing edge follows it unconditionally. Otherwise the
// slot-qualified handle is tried first when the node is multi-input and
// the traversal entered through a known slot, then the plain handle
// (tolerates graphs authored before multi-input routing existed), then
// label matching, then the first unlabeled edge.
func (e *InferenceEngine) nextEdge(node *compiledNode, slot, condIdx int) (compiledEdge, error) {
	edges := e.edges[node.spec.ID]
	if len(edges) == 0 {
		return compiledEdge{}, nodeErrorf(node.spec.ID, "no outgoing edges")
	}
	if len(edges) == 1 {
		return edges[0], nil
	}

	if node.inputCount > 1 && slot >= 0 {
		for _, edge := range edges {
			if edge.inputSlot == slot && edge.condIndex == condIdx {
				return edge, nil
			}
		}
	}
	for _, edge := range edges {
		if edge.inputSlot < 0 && edge.condIndex == condIdx {
			return edge, nil
		}
	}

	if condIdx >= 0 && condIdx < len(node.spec.Conditions) {
		label := node.spec.Conditions[condIdx].Label
		for _, edge := range edges {
			if edge.label != nil && *edge.label == label {
				return edge, nil
			}
		}
	}

	for _, edge := range edges {
		if edge.label == nil && edge.condIndex < 0 {
			return edge, nil
		}
	}

	return compiledEdge{}, nodeErrorf(node.spec.ID, "no edge for matched condition %d", condIdx)
}

// RequiredFields returns the record fields the tree reads directly:
// input node fields and lookup join keys. Equation variables are not
// included because they may resolve to CVSS virtual fields.
func (e *InferenceEngine) RequiredFields() map[string]bool {
	fields := make(map[string]bool)
	for _, node := range e.nodes {
		if field, ok := configString(node.spec.Config, "field"); ok {
			fields[field] = true
		}
		if field, ok := configString(node.spec.Config, "lookup_key"); ok {
			fields[field] = true
		}
	}
	return fields
}

// LookupTables returns the names of every lookup table the tree
// references, so callers know what reference data to pre-fetch.
func (e *InferenceEngine) LookupTables() map[string]bool {
	tables := make(map[string]bool)
	for _, node := range e.nodes {
		if table, ok := configString(node.spec.Config, "lookup_table"); ok {
			tables[table] = true
		}
	}
	return tables
}

// recordID prefers the record's own ID and falls back to the CVE id.
func recordID(record *VulnerabilityInput) string {
	if record.ID != "" {
		return record.ID
	}
	return record.CVEID
}

func errorResult(result EvaluationResult, msg string) EvaluationResult {
	result.Decision = DecisionError
	result.Error = msg
	return result
}
