package manager

import (
	"sync"
	"testing"

	"github.com/cfortin/triage/tree"
)

func triageTree(id string) *tree.Tree {
	gte := tree.OpGreaterThanOrEqual
	lt := tree.OpLessThan
	return &tree.Tree{
		ID:   id,
		Name: "severity triage",
		Structure: tree.Structure{
			Nodes: []tree.Node{
				{
					ID:     "n-score",
					Type:   tree.NodeInput,
					Config: map[string]any{"field": "cvss_score"},
					Conditions: []tree.Condition{
						{Label: "critical", Operator: &gte, Value: 9.0},
						{Label: "other", Operator: &lt, Value: 9.0},
					},
				},
				{ID: "n-act", Type: tree.NodeOutput, Config: map[string]any{"decision": "Act"}},
				{ID: "n-track", Type: tree.NodeOutput, Config: map[string]any{"decision": "Track"}},
			},
			Edges: []tree.Edge{
				{ID: "e1", Source: "n-score", Target: "n-act", Label: strPtr("critical")},
				{ID: "e2", Source: "n-score", Target: "n-track", Label: strPtr("other")},
			},
		},
	}
}

func strPtr(s string) *string { return &s }

func TestLoadAll(t *testing.T) {
	store := tree.NewInMemoryStore()
	store.Add(triageTree("t1"))
	store.Add(triageTree("t2"))

	m := New(store)
	if err := m.LoadAll(); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	if got := len(m.List()); got != 2 {
		t.Errorf("List() returned %d engines, want 2", got)
	}
}

func TestLoadAllSkipsBrokenTrees(t *testing.T) {
	store := tree.NewInMemoryStore()
	store.Add(triageTree("good"))

	broken := triageTree("broken")
	broken.Structure.Nodes[0].Type = "mystery"
	store.Add(broken)

	m := New(store)
	if err := m.LoadAll(); err == nil {
		t.Error("LoadAll() should report the broken tree")
	}

	// The good tree still compiled.
	if _, err := m.Get("good"); err != nil {
		t.Errorf("good tree should be available: %v", err)
	}
	if got := len(m.List()); got != 1 {
		t.Errorf("List() returned %d engines, want 1", got)
	}
}

func TestGetCompilesOnDemand(t *testing.T) {
	store := tree.NewInMemoryStore()
	store.Add(triageTree("lazy"))

	m := New(store)

	ct, err := m.Get("lazy")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if ct.Engine == nil || ct.Tree.ID != "lazy" {
		t.Errorf("Get() returned incomplete compiled tree: %+v", ct)
	}

	if _, err := m.Get("missing"); err == nil {
		t.Error("Get() on unknown tree should fail")
	}
}

func TestUpdateSwapsEngine(t *testing.T) {
	store := tree.NewInMemoryStore()
	store.Add(triageTree("t1"))

	m := New(store)
	if err := m.LoadAll(); err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}

	before, _ := m.Get("t1")

	updated := triageTree("t1")
	updated.Name = "updated"
	if err := m.Update(updated); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	after, _ := m.Get("t1")
	if after == before {
		t.Error("Update() should swap in a fresh compiled tree")
	}
	if after.Tree.Name != "updated" {
		t.Errorf("Tree.Name = %q, want updated", after.Tree.Name)
	}
}

func TestRemove(t *testing.T) {
	store := tree.NewInMemoryStore()
	store.Add(triageTree("t1"))

	m := New(store)
	m.LoadAll()
	m.Remove("t1")

	// Get falls back to the store and recompiles.
	if _, err := m.Get("t1"); err != nil {
		t.Errorf("Get() after Remove() should recompile from store: %v", err)
	}
}

func TestConcurrentGetAndUpdate(t *testing.T) {
	store := tree.NewInMemoryStore()
	store.Add(triageTree("t1"))

	m := New(store)
	m.LoadAll()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Get("t1")
		}()
		go func() {
			defer wg.Done()
			m.Update(triageTree("t1"))
		}()
	}
	wg.Wait()
}
