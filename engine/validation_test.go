package engine

import (
	"strings"
	"testing"

	"github.com/cfortin/triage/tree"
)

func warningsContain(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestValidateStructureClean(t *testing.T) {
	warnings := ValidateStructure(severityTriageStructure())
	if len(warnings) != 0 {
		t.Errorf("clean structure should validate without warnings, got %v", warnings)
	}
}

func TestValidateStructureEmpty(t *testing.T) {
	warnings := ValidateStructure(&tree.Structure{})
	if !warningsContain(warnings, "no nodes") {
		t.Errorf("empty structure should warn about missing nodes, got %v", warnings)
	}
}

func TestValidateStructureDanglingEdges(t *testing.T) {
	structure := severityTriageStructure()
	structure.Edges = append(structure.Edges,
		tree.Edge{ID: "e-bad", Source: "ghost", Target: "n-act"},
		tree.Edge{ID: "e-bad2", Source: "n-score", Target: "nowhere"},
	)

	warnings := ValidateStructure(structure)
	if !warningsContain(warnings, `unknown source node "ghost"`) {
		t.Errorf("missing dangling source warning: %v", warnings)
	}
	if !warningsContain(warnings, `unknown target node "nowhere"`) {
		t.Errorf("missing dangling target warning: %v", warnings)
	}
}

func TestValidateStructureEdgeOutOfOutput(t *testing.T) {
	structure := severityTriageStructure()
	structure.Edges = append(structure.Edges,
		tree.Edge{ID: "e-bad", Source: "n-act", Target: "n-track"})

	warnings := ValidateStructure(structure)
	if !warningsContain(warnings, "leaves output node") {
		t.Errorf("missing output-edge warning: %v", warnings)
	}
}

func TestValidateStructureHandleIndexes(t *testing.T) {
	structure := severityTriageStructure()
	structure.Edges[0].SourceHandle = strPtr("handle-9")

	warnings := ValidateStructure(structure)
	if !warningsContain(warnings, "condition index 9 out of range") {
		t.Errorf("missing handle index warning: %v", warnings)
	}
}

func TestValidateStructureMultiInputHandles(t *testing.T) {
	structure := &tree.Structure{
		Nodes: []tree.Node{
			{
				ID:     "n-sev",
				Type:   tree.NodeInput,
				Config: map[string]any{"field": "cvss_score", "input_count": 2.0},
				Conditions: []tree.Condition{
					{Label: "high", Operator: opPtr(tree.OpGreaterThanOrEqual), Value: 7.0},
					{Label: "low", Operator: opPtr(tree.OpLessThan), Value: 7.0},
				},
			},
			{ID: "n-act", Type: tree.NodeOutput, Config: map[string]any{"decision": "Act"}},
			{ID: "n-track", Type: tree.NodeOutput, Config: map[string]any{"decision": "Track"}},
		},
		Edges: []tree.Edge{
			{ID: "e1", Source: "n-sev", Target: "n-act", SourceHandle: strPtr("handle-5-0")},
			{ID: "e2", Source: "n-sev", Target: "n-track", SourceHandle: strPtr("handle-1")},
		},
	}

	warnings := ValidateStructure(structure)
	if !warningsContain(warnings, "input slot 5 out of range") {
		t.Errorf("missing slot range warning: %v", warnings)
	}
	// A multi-input node addressed through a plain single-input handle
	// still evaluates, but is flagged for the author.
	if !warningsContain(warnings, "carries no input slot") {
		t.Errorf("missing plain-handle warning: %v", warnings)
	}
}

func TestValidateStructureMissingRootAndOutput(t *testing.T) {
	structure := &tree.Structure{
		Nodes: []tree.Node{
			{ID: "n-a", Type: tree.NodeInput, Config: map[string]any{"field": "kev"},
				Conditions: []tree.Condition{{Label: "x", Operator: opPtr(tree.OpIsNotNull)}}},
			{ID: "n-b", Type: tree.NodeInput, Config: map[string]any{"field": "kev"},
				Conditions: []tree.Condition{{Label: "x", Operator: opPtr(tree.OpIsNotNull)}}},
		},
		Edges: []tree.Edge{
			{ID: "e1", Source: "n-a", Target: "n-b"},
			{ID: "e2", Source: "n-b", Target: "n-a"},
		},
	}

	warnings := ValidateStructure(structure)
	if !warningsContain(warnings, "no root node") {
		t.Errorf("missing root warning: %v", warnings)
	}
	if !warningsContain(warnings, "no output node") {
		t.Errorf("missing output warning: %v", warnings)
	}
	if !warningsContain(warnings, "cycle detected") {
		t.Errorf("missing cycle warning: %v", warnings)
	}
}

func TestValidateStructureBadFormula(t *testing.T) {
	structure := &tree.Structure{
		Nodes: []tree.Node{
			{ID: "n-eq", Type: tree.NodeEquation, Config: map[string]any{"formula": "cvss_score +"}},
			{ID: "n-out", Type: tree.NodeOutput, Config: map[string]any{"decision": "Act"}},
		},
		Edges: []tree.Edge{{ID: "e1", Source: "n-eq", Target: "n-out"}},
	}

	warnings := ValidateStructure(structure)
	if !warningsContain(warnings, "invalid formula") {
		t.Errorf("missing formula warning: %v", warnings)
	}
}

// Warnings never block: a structure the validator complains about still
// compiles and evaluates, with the iteration cap as the safety net.
func TestValidateStructureAdvisoryOnly(t *testing.T) {
	structure := severityTriageStructure()
	structure.Edges[0].SourceHandle = strPtr("handle-9")

	if warnings := ValidateStructure(structure); len(warnings) == 0 {
		t.Fatal("expected warnings")
	}

	if _, err := NewInferenceEngine(structure); err != nil {
		t.Errorf("structure with warnings should still compile: %v", err)
	}
}
