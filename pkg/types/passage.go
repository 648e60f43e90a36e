package types

import (
	"crypto/sha256"
	"errors"
)

// Passage is a chunk of a corpus document produced at index build time
type Passage struct {
	DocumentID  string
	Index       int // position within the source document
	Text        string
	TokenCount  int
	ContentHash [32]byte
	Metadata    map[string]any
}

// ComputeTokenCount estimates the number of tokens in the passage
// Uses a simple heuristic: characters / 4
func (p *Passage) ComputeTokenCount() int {
	p.TokenCount = len(p.Text) / 4
	return p.TokenCount
}

// ComputeContentHash computes the SHA-256 hash of the passage text
func (p *Passage) ComputeContentHash() {
	p.ContentHash = sha256.Sum256([]byte(p.Text))
}

// Validate checks if the passage is usable
func (p *Passage) Validate() error {
	if p.Text == "" {
		return errors.New("passage text cannot be empty")
	}
	if p.DocumentID == "" {
		return errors.New("passage document id is required")
	}
	if p.Index < 0 {
		return errors.New("passage index must be non-negative")
	}
	return nil
}
