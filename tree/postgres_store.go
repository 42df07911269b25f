package tree

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL. The structure is
// stored as a JSONB column so the editor's payload round-trips intact.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tree store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Add inserts a new tree into the database.
func (s *PostgresStore) Add(tree *Tree) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM trees WHERE id = $1)
	`, tree.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check tree existence: %w", err)
	}
	if exists {
		return fmt.Errorf("tree with ID %s already exists", tree.ID)
	}

	structureJSON, err := json.Marshal(tree.Structure)
	if err != nil {
		return fmt.Errorf("failed to marshal structure: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO trees (id, name, description, structure, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, tree.ID, tree.Name, tree.Description, structureJSON, tree.IsDefault,
		tree.CreatedAt, tree.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert tree: %w", err)
	}

	return nil
}

// Get retrieves a tree by ID.
func (s *PostgresStore) Get(id string) (*Tree, error) {
	var tree Tree
	var structureJSON []byte
	err := s.db.QueryRow(`
		SELECT id, name, description, structure, is_default, created_at, updated_at
		FROM trees
		WHERE id = $1
	`, id).Scan(
		&tree.ID,
		&tree.Name,
		&tree.Description,
		&structureJSON,
		&tree.IsDefault,
		&tree.CreatedAt,
		&tree.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tree %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}

	if err := json.Unmarshal(structureJSON, &tree.Structure); err != nil {
		return nil, fmt.Errorf("invalid structure for tree %s: %w", id, err)
	}

	return &tree, nil
}

// List returns all trees ordered by creation time.
func (s *PostgresStore) List() ([]*Tree, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, structure, is_default, created_at, updated_at
		FROM trees
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trees: %w", err)
	}
	defer rows.Close()

	var trees []*Tree
	for rows.Next() {
		var tree Tree
		var structureJSON []byte
		if err := rows.Scan(&tree.ID, &tree.Name, &tree.Description, &structureJSON,
			&tree.IsDefault, &tree.CreatedAt, &tree.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tree: %w", err)
		}
		if err := json.Unmarshal(structureJSON, &tree.Structure); err != nil {
			return nil, fmt.Errorf("invalid structure for tree %s: %w", tree.ID, err)
		}
		trees = append(trees, &tree)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trees: %w", err)
	}

	return trees, nil
}

// Update modifies an existing tree.
func (s *PostgresStore) Update(tree *Tree) error {
	structureJSON, err := json.Marshal(tree.Structure)
	if err != nil {
		return fmt.Errorf("failed to marshal structure: %w", err)
	}

	tree.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE trees
		SET name = $1, description = $2, structure = $3, is_default = $4, updated_at = $5
		WHERE id = $6
	`, tree.Name, tree.Description, structureJSON, tree.IsDefault, tree.UpdatedAt, tree.ID)

	if err != nil {
		return fmt.Errorf("failed to update tree: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tree %s not found", tree.ID)
	}

	return nil
}

// Delete removes a tree from the database.
func (s *PostgresStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM trees
		WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to delete tree: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tree %s not found", id)
	}

	return nil
}
