package engine

import (
	"fmt"

	"github.com/cfortin/triage/formula"
	"github.com/cfortin/triage/tree"
)

// ValidateStructure checks a structure for authoring mistakes and
// returns human-readable warnings. It is advisory: a structure that
// produces warnings still compiles and evaluates, with the traversal
// iteration cap as the runtime safety net.
func ValidateStructure(structure *tree.Structure) []string {
	var warnings []string

	if len(structure.Nodes) == 0 {
		return []string{"tree has no nodes"}
	}

	nodes := make(map[string]tree.Node, len(structure.Nodes))
	for _, n := range structure.Nodes {
		if _, dup := nodes[n.ID]; dup {
			warnings = append(warnings, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		nodes[n.ID] = n
	}

	hasIncoming := make(map[string]bool)
	adjacency := make(map[string][]string)
	for _, e := range structure.Edges {
		source, sourceOK := nodes[e.Source]
		if !sourceOK {
			warnings = append(warnings, fmt.Sprintf("edge %s references unknown source node %q", e.ID, e.Source))
		}
		if _, ok := nodes[e.Target]; !ok {
			warnings = append(warnings, fmt.Sprintf("edge %s references unknown target node %q", e.ID, e.Target))
		}
		hasIncoming[e.Target] = true
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)

		if sourceOK {
			if source.Type == tree.NodeOutput {
				warnings = append(warnings, fmt.Sprintf("edge %s leaves output node %q", e.ID, e.Source))
			}
			warnings = append(warnings, validateHandles(e, source)...)
		}
	}

	roots := 0
	outputs := 0
	for _, n := range structure.Nodes {
		if !hasIncoming[n.ID] {
			roots++
		}
		if n.Type == tree.NodeOutput {
			outputs++
		}

		if n.Type == tree.NodeEquation {
			if f, ok := configString(n.Config, "formula"); ok {
				if _, err := formula.Validate(f, nil); err != nil {
					warnings = append(warnings, fmt.Sprintf("node %s: invalid formula: %v", n.ID, err))
				}
			} else {
				warnings = append(warnings, fmt.Sprintf("node %s: equation node has no formula", n.ID))
			}
		}
	}

	if roots == 0 {
		warnings = append(warnings, "tree has no root node (every node has an incoming edge)")
	}
	if roots > 1 {
		warnings = append(warnings, fmt.Sprintf("tree has %d candidate root nodes", roots))
	}
	if outputs == 0 {
		warnings = append(warnings, "tree has no output node")
	}

	warnings = append(warnings, detectCycles(structure.Nodes, adjacency)...)

	return warnings
}

// validateHandles checks an edge's parsed handles against its source
// node's declared conditions and input slots.
func validateHandles(e tree.Edge, source tree.Node) []string {
	var warnings []string

	inputCount := 1
	if count, ok := configInt(source.Config, "input_count"); ok && count > 1 {
		inputCount = count
	}

	if e.SourceHandle != nil {
		slot, cond := parseSourceHandle(*e.SourceHandle)
		if cond >= 0 && cond >= len(source.Conditions) && source.Type != tree.NodeOutput {
			warnings = append(warnings, fmt.Sprintf(
				"edge %s: source handle condition index %d out of range for node %q (%d conditions)",
				e.ID, cond, source.ID, len(source.Conditions)))
		}
		if slot >= 0 && slot >= inputCount {
			warnings = append(warnings, fmt.Sprintf(
				"edge %s: source handle input slot %d out of range for node %q (input_count %d)",
				e.ID, slot, source.ID, inputCount))
		}
		if slot < 0 && cond >= 0 && inputCount > 1 {
			warnings = append(warnings, fmt.Sprintf(
				"edge %s: node %q is multi-input but source handle %q carries no input slot",
				e.ID, source.ID, *e.SourceHandle))
		}
	}

	return warnings
}

// detectCycles walks the graph with DFS three-coloring and reports each
// back edge it finds.
func detectCycles(nodes []tree.Node, adjacency map[string][]string) []string {
	const (
		white = iota // unvisited
		gray         // on the current DFS stack
		black        // fully explored
	)

	color := make(map[string]int, len(nodes))
	var warnings []string

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		for _, next := range adjacency[id] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				warnings = append(warnings, fmt.Sprintf("cycle detected through edge %s -> %s", id, next))
			}
		}
		color[id] = black
	}

	for _, n := range nodes {
		if color[n.ID] == white {
			visit(n.ID)
		}
	}

	return warnings
}
