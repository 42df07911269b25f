package main

import (
	"github.com/cfortin/triage/engine"
	"github.com/cfortin/triage/tree"
)

// EvaluateRequest is the body of POST /api/v1/evaluate.
type EvaluateRequest struct {
	TreeID      string                    `json:"tree_id"`
	Record      engine.VulnerabilityInput `json:"record"`
	Lookups     engine.Lookups            `json:"lookups,omitempty"`
	IncludePath bool                      `json:"include_path"`
}

// BatchEvaluateRequest is the body of POST /api/v1/evaluate/batch.
type BatchEvaluateRequest struct {
	TreeID      string                      `json:"tree_id"`
	Records     []engine.VulnerabilityInput `json:"records"`
	Lookups     engine.Lookups              `json:"lookups,omitempty"`
	IncludePath bool                        `json:"include_path"`
	ChunkSize   int                         `json:"chunk_size,omitempty"`
}

// TreeRequest is the body of tree create and update calls.
type TreeRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Structure   tree.Structure `json:"structure"`
	IsDefault   bool           `json:"is_default"`
}

// ValidateResponse is the body returned by tree validation.
type ValidateResponse struct {
	Valid    bool     `json:"valid"`
	Warnings []string `json:"warnings"`
}

// FieldsResponse lists what a tree needs from its callers: the record
// fields it reads and the lookup tables to pre-fetch.
type FieldsResponse struct {
	RequiredFields []string `json:"required_fields"`
	LookupTables   []string `json:"lookup_tables"`
}
