// Package manager keeps one compiled inference engine per stored tree,
// so request handlers never pay compilation cost on the hot path.
package manager

import (
	"fmt"
	"sync"

	"github.com/cfortin/triage/engine"
	"github.com/cfortin/triage/tree"
)

// CompiledTree pairs a stored tree with its compiled engine.
type CompiledTree struct {
	Tree   *tree.Tree
	Engine *engine.InferenceEngine
}

// Manager compiles trees from a Store and caches the engines. Engines
// are immutable; updates compile a fresh engine and atomically swap it
// in, so in-flight evaluations keep running against the old one.
type Manager struct {
	store   tree.Store
	engines map[string]*CompiledTree
	mu      sync.RWMutex
}

// New creates a manager backed by the given store. Call LoadAll before
// serving traffic.
func New(store tree.Store) *Manager {
	return &Manager{
		store:   store,
		engines: make(map[string]*CompiledTree),
	}
}

// LoadAll compiles every stored tree. Trees that fail to compile are
// skipped and reported together so one bad tree cannot take the whole
// service down.
func (m *Manager) LoadAll() error {
	trees, err := m.store.List()
	if err != nil {
		return fmt.Errorf("failed to list trees: %w", err)
	}

	compiled := make(map[string]*CompiledTree, len(trees))
	var failures []string
	for _, t := range trees {
		eng, err := engine.NewInferenceEngine(&t.Structure)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", t.ID, err))
			continue
		}
		compiled[t.ID] = &CompiledTree{Tree: t, Engine: eng}
	}

	m.mu.Lock()
	m.engines = compiled
	m.mu.Unlock()

	if len(failures) > 0 {
		return fmt.Errorf("failed to compile %d of %d trees: %v", len(failures), len(trees), failures)
	}
	return nil
}

// Get returns the compiled engine for a tree, compiling on demand when
// the tree exists in the store but is not cached yet.
func (m *Manager) Get(treeID string) (*CompiledTree, error) {
	m.mu.RLock()
	ct, ok := m.engines[treeID]
	m.mu.RUnlock()
	if ok {
		return ct, nil
	}

	t, err := m.store.Get(treeID)
	if err != nil {
		return nil, err
	}
	return m.set(t)
}

// Update recompiles the engine for an updated tree and swaps it in.
func (m *Manager) Update(t *tree.Tree) error {
	_, err := m.set(t)
	return err
}

// Remove drops a tree's engine from the cache.
func (m *Manager) Remove(treeID string) {
	m.mu.Lock()
	delete(m.engines, treeID)
	m.mu.Unlock()
}

// List returns the IDs of every cached engine.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.engines))
	for id := range m.engines {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) set(t *tree.Tree) (*CompiledTree, error) {
	eng, err := engine.NewInferenceEngine(&t.Structure)
	if err != nil {
		return nil, fmt.Errorf("failed to compile tree %s: %w", t.ID, err)
	}

	ct := &CompiledTree{Tree: t, Engine: eng}
	m.mu.Lock()
	m.engines[t.ID] = ct
	m.mu.Unlock()
	return ct, nil
}
