package tree

import (
	"sync"
	"testing"
	"time"
)

func sampleTree(id string) *Tree {
	op := OpGreaterThanOrEqual
	return &Tree{
		ID:   id,
		Name: "SSVC default",
		Structure: Structure{
			Nodes: []Node{
				{
					ID:     "n-score",
					Type:   NodeInput,
					Config: map[string]any{"field": "cvss_score"},
					Conditions: []Condition{
						{Label: "critical", Operator: &op, Value: 9.0},
					},
				},
				{ID: "n-act", Type: NodeOutput, Config: map[string]any{"decision": "Act"}},
			},
			Edges: []Edge{
				{ID: "e1", Source: "n-score", Target: "n-act"},
			},
		},
	}
}

func TestStoreInterfaceExists(t *testing.T) {
	var _ Store = (*InMemoryStore)(nil)
	var _ Store = (*PostgresStore)(nil)
}

func TestInMemoryStoreAddAndGet(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.Add(sampleTree("t1")); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	retrieved, err := store.Get("t1")
	if err != nil {
		t.Fatalf("Get() failed after Add(): %v", err)
	}
	if retrieved.Name != "SSVC default" {
		t.Errorf("Retrieved tree Name = %s, want SSVC default", retrieved.Name)
	}
	if retrieved.CreatedAt.IsZero() || retrieved.UpdatedAt.IsZero() {
		t.Error("Add() should set timestamps")
	}
	if len(retrieved.Structure.Nodes) != 2 {
		t.Errorf("Structure should round-trip, got %d nodes", len(retrieved.Structure.Nodes))
	}
}

func TestInMemoryStoreAddDuplicate(t *testing.T) {
	store := NewInMemoryStore()

	if err := store.Add(sampleTree("dup")); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if err := store.Add(sampleTree("dup")); err == nil {
		t.Error("Add() with duplicate ID should fail")
	}
}

func TestInMemoryStoreGetMissing(t *testing.T) {
	store := NewInMemoryStore()
	if _, err := store.Get("nope"); err == nil {
		t.Error("Get() on missing tree should fail")
	}
}

func TestInMemoryStoreList(t *testing.T) {
	store := NewInMemoryStore()
	store.Add(sampleTree("t1"))
	store.Add(sampleTree("t2"))

	trees, err := store.List()
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(trees) != 2 {
		t.Errorf("List() returned %d trees, want 2", len(trees))
	}
}

func TestInMemoryStoreUpdate(t *testing.T) {
	store := NewInMemoryStore()
	store.Add(sampleTree("t1"))

	original, _ := store.Get("t1")
	createdAt := original.CreatedAt

	time.Sleep(time.Millisecond)

	updated := sampleTree("t1")
	updated.Name = "renamed"
	if err := store.Update(updated); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	retrieved, _ := store.Get("t1")
	if retrieved.Name != "renamed" {
		t.Errorf("Name = %s, want renamed", retrieved.Name)
	}
	if !retrieved.CreatedAt.Equal(createdAt) {
		t.Error("Update() should preserve CreatedAt")
	}
	if !retrieved.UpdatedAt.After(createdAt) {
		t.Error("Update() should bump UpdatedAt")
	}
}

func TestInMemoryStoreUpdateMissing(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Update(sampleTree("nope")); err == nil {
		t.Error("Update() on missing tree should fail")
	}
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryStore()
	store.Add(sampleTree("t1"))

	if err := store.Delete("t1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get("t1"); err == nil {
		t.Error("Get() after Delete() should fail")
	}
	if err := store.Delete("t1"); err == nil {
		t.Error("Delete() on missing tree should fail")
	}
}

func TestInMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewInMemoryStore()
	store.Add(sampleTree("shared"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Get("shared")
		}()
		go func() {
			defer wg.Done()
			store.List()
		}()
	}
	wg.Wait()
}

func TestInMemoryCache(t *testing.T) {
	cache := NewInMemoryCache(DefaultCacheConfig())

	if cache.IsValid() {
		t.Error("new cache should be invalid")
	}
	if cache.Get() != nil {
		t.Error("Get() on empty cache should return nil")
	}

	cache.Set([]*Tree{sampleTree("t1")})
	if !cache.IsValid() {
		t.Error("cache should be valid after Set()")
	}
	if got := cache.Get(); len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("Get() = %v, want the cached tree", got)
	}

	cache.Invalidate()
	if cache.IsValid() || cache.Get() != nil {
		t.Error("cache should be empty after Invalidate()")
	}
}

func TestInMemoryCacheTTL(t *testing.T) {
	cache := NewInMemoryCache(CacheConfig{TTL: 10 * time.Millisecond})
	cache.Set([]*Tree{sampleTree("t1")})

	if cache.Get() == nil {
		t.Error("cache should serve within the TTL")
	}

	time.Sleep(20 * time.Millisecond)
	if cache.Get() != nil {
		t.Error("cache should expire after the TTL")
	}
}
