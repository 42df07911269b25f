package tree

import (
	"fmt"
	"sync"
	"time"
)

// Store manages tree persistence and retrieval.
type Store interface {
	// Add a new tree
	Add(tree *Tree) error

	// Get a tree by ID
	Get(id string) (*Tree, error)

	// List all trees
	List() ([]*Tree, error)

	// Update an existing tree
	Update(tree *Tree) error

	// Delete a tree
	Delete(id string) error
}

// InMemoryStore implements Store using an in-memory map.
// Thread-safe with RWMutex.
type InMemoryStore struct {
	trees map[string]*Tree
	mu    sync.RWMutex
}

// NewInMemoryStore creates a new in-memory tree store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		trees: make(map[string]*Tree),
	}
}

// Add adds a new tree to the store, enforcing unique IDs and setting
// the timestamps.
func (s *InMemoryStore) Add(tree *Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trees[tree.ID]; exists {
		return fmt.Errorf("tree with ID %s already exists", tree.ID)
	}

	now := time.Now()
	tree.CreatedAt = now
	tree.UpdatedAt = now
	s.trees[tree.ID] = tree
	return nil
}

// Get retrieves a tree by ID.
func (s *InMemoryStore) Get(id string) (*Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, exists := s.trees[id]
	if !exists {
		return nil, fmt.Errorf("tree with ID %s not found", id)
	}
	return tree, nil
}

// List returns all stored trees.
func (s *InMemoryStore) List() ([]*Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trees := make([]*Tree, 0, len(s.trees))
	for _, tree := range s.trees {
		trees = append(trees, tree)
	}
	return trees, nil
}

// Update updates an existing tree, preserving CreatedAt.
func (s *InMemoryStore) Update(tree *Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.trees[tree.ID]
	if !exists {
		return fmt.Errorf("tree with ID %s not found", tree.ID)
	}

	tree.CreatedAt = existing.CreatedAt
	tree.UpdatedAt = time.Now()
	s.trees[tree.ID] = tree
	return nil
}

// Delete removes a tree from the store.
func (s *InMemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trees[id]; !exists {
		return fmt.Errorf("tree with ID %s not found", id)
	}

	delete(s.trees, id)
	return nil
}
