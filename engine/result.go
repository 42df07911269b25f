package engine

// DecisionError is the sentinel decision carried by every result whose
// evaluation failed.
const DecisionError = "Error"

// Step is one entry of the audit trail: the node visited, the value it
// resolved and the condition that matched.
type Step struct {
	NodeID           string `json:"node_id"`
	NodeLabel        string `json:"node_label"`
	NodeType         string `json:"node_type"`
	FieldEvaluated   string `json:"field_evaluated,omitempty"`
	ValueFound       any    `json:"value_found,omitempty"`
	ConditionMatched string `json:"condition_matched,omitempty"`
}

// EvaluationResult is the outcome of classifying one record.
type EvaluationResult struct {
	RecordID      string `json:"record_id,omitempty"`
	Decision      string `json:"decision"`
	DecisionColor string `json:"decision_color,omitempty"`
	Path          []Step `json:"path"`
	Error         string `json:"error,omitempty"`
}

// BatchResponse aggregates the results of a batch run. Total is always
// SuccessCount + ErrorCount, and DecisionSummary counts only successful
// decisions.
type BatchResponse struct {
	Total           int                `json:"total"`
	SuccessCount    int                `json:"success_count"`
	ErrorCount      int                `json:"error_count"`
	Results         []EvaluationResult `json:"results"`
	DecisionSummary map[string]int     `json:"decision_summary"`
}
