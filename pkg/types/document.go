package types

import "fmt"

// CandidateDocument is a passage stored in a vector index
type CandidateDocument struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// MetadataString returns a metadata value rendered as a string, or "" when absent
func (d CandidateDocument) MetadataString(key string) string {
	v, ok := d.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// RankedResult represents a single retrieval hit
type RankedResult struct {
	Candidate CandidateDocument `json:"candidate"`
	Distance  float64           `json:"distance"` // raw index distance, 0 after rerank
	Score     float64           `json:"score"`    // higher is better
	Rank      int               `json:"rank"`     // 1-based
}

// Validate checks if the ranked result is well formed
func (r *RankedResult) Validate() error {
	if r.Candidate.ID == "" {
		return fmt.Errorf("%w: candidate id is required", ErrInvalidInput)
	}
	if r.Rank < 1 {
		return fmt.Errorf("%w: rank must be >= 1", ErrInvalidInput)
	}
	return nil
}

// RAGContext is an assembled, size-bounded context blob
type RAGContext struct {
	Text        string `json:"text"`
	SourceCount int    `json:"source_count"`
	Truncated   bool   `json:"truncated"`
}

// FuzzyMatch is a "did you mean" candidate
type FuzzyMatch struct {
	Candidate string  `json:"candidate"`
	Score     float64 `json:"score"`
}

// APIDoc is the resolved documentation for an extension@Symbol identifier
type APIDoc struct {
	ID        string     `json:"id"`
	Extension string     `json:"extension"`
	Symbol    string     `json:"symbol,omitempty"`
	Kind      SymbolKind `json:"kind,omitempty"`
	Signature string     `json:"signature,omitempty"`
	Doc       string     `json:"doc,omitempty"`
	Members   []string   `json:"members,omitempty"`
}
