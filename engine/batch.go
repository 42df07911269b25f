package engine

import (
	"context"

	"github.com/cfortin/triage/tree"
)

// DefaultChunkSize is how many records a batch run evaluates per chunk.
const DefaultChunkSize = 5000

// BatchProcessor evaluates large record sets against one compiled
// engine, chunk by chunk, with per-record error isolation.
type BatchProcessor struct {
	engine    *InferenceEngine
	chunkSize int
}

// NewBatchProcessor compiles the structure and returns a processor. A
// chunkSize of zero or less falls back to DefaultChunkSize.
func NewBatchProcessor(structure *tree.Structure, chunkSize int) (*BatchProcessor, error) {
	eng, err := NewInferenceEngine(structure)
	if err != nil {
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &BatchProcessor{engine: eng, chunkSize: chunkSize}, nil
}

// Engine returns the compiled engine backing this processor.
func (p *BatchProcessor) Engine() *InferenceEngine { return p.engine }

// Process evaluates every record and aggregates the outcomes. A failed
// record contributes an Error result and never aborts the run; only
// context cancellation does, checked between chunks.
func (p *BatchProcessor) Process(ctx context.Context, records []VulnerabilityInput, lookups Lookups, includePath bool) (*BatchResponse, error) {
	resp := &BatchResponse{
		Results:         make([]EvaluationResult, 0, len(records)),
		DecisionSummary: make(map[string]int),
	}

	for start := 0; start < len(records); start += p.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.chunkSize
		if end > len(records) {
			end = len(records)
		}

		for i := start; i < end; i++ {
			result := p.engine.Evaluate(&records[i], lookups, includePath)
			resp.Results = append(resp.Results, result)
			resp.Total++
			if result.Error != "" {
				resp.ErrorCount++
				continue
			}
			resp.SuccessCount++
			resp.DecisionSummary[result.Decision]++
		}
	}

	return resp, nil
}
