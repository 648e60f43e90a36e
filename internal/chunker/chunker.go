package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dshills/docrag-mcp/pkg/types"
)

const (
	// MaxTokensPerChunk is the default maximum token count per passage
	MaxTokensPerChunk = 512

	// TokensPerChar is the heuristic for estimating tokens (chars/4)
	TokensPerChar = 4
)

// Chunker splits documents into passages
type Chunker struct {
	maxTokens int
}

// New creates a Chunker. maxTokens <= 0 uses MaxTokensPerChunk.
func New(maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = MaxTokensPerChunk
	}
	return &Chunker{maxTokens: maxTokens}
}

// Split returns the passages of doc in order. Empty documents yield none.
func (c *Chunker) Split(doc types.CandidateDocument) []types.Passage {
	text := strings.TrimSpace(strings.ReplaceAll(doc.Text, "\r\n", "\n"))
	if text == "" {
		return nil
	}

	pieces := c.pack(text)
	passages := make([]types.Passage, len(pieces))
	for i, piece := range pieces {
		p := types.Passage{
			DocumentID: doc.ID,
			Index:      i,
			Text:       piece,
			Metadata:   doc.Metadata,
		}
		p.ComputeTokenCount()
		p.ComputeContentHash()
		passages[i] = p
	}
	return passages
}

// Documents converts passages back to indexable documents. Every document
// carries the passage's token_count and hex content_hash; split documents
// also carry parent_id and chunk. Source metadata maps are never mutated.
func Documents(passages []types.Passage) []types.CandidateDocument {
	docs := make([]types.CandidateDocument, len(passages))
	single := make(map[string]int)
	for _, p := range passages {
		single[p.DocumentID]++
	}

	for i, p := range passages {
		meta := make(map[string]any, len(p.Metadata)+4)
		for k, v := range p.Metadata {
			meta[k] = v
		}
		meta["token_count"] = p.TokenCount
		meta["content_hash"] = hex.EncodeToString(p.ContentHash[:])

		doc := types.CandidateDocument{ID: p.DocumentID, Text: p.Text, Metadata: meta}
		if single[p.DocumentID] > 1 {
			doc.ID = fmt.Sprintf("%s#%d", p.DocumentID, p.Index)
			meta["parent_id"] = p.DocumentID
			meta["chunk"] = p.Index
		}
		docs[i] = doc
	}
	return docs
}

// pack groups paragraphs into pieces no larger than the limit
func (c *Chunker) pack(text string) []string {
	var pieces []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
	}

	for _, para := range c.units(text) {
		if current.Len() > 0 && EstimateTokenCount(current.String()+"\n\n"+para) > c.maxTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return pieces
}

// units returns paragraphs, pre-split when a paragraph alone exceeds the limit
func (c *Chunker) units(text string) []string {
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if EstimateTokenCount(para) <= c.maxTokens {
			out = append(out, para)
			continue
		}
		out = append(out, c.splitLines(para)...)
	}
	return out
}

func (c *Chunker) splitLines(para string) []string {
	var out []string
	var current strings.Builder
	for _, line := range strings.Split(para, "\n") {
		if EstimateTokenCount(line) > c.maxTokens {
			if current.Len() > 0 {
				out = append(out, current.String())
				current.Reset()
			}
			out = append(out, c.window(line)...)
			continue
		}
		if current.Len() > 0 && EstimateTokenCount(current.String()+"\n"+line) > c.maxTokens {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}

// window cuts s into rune-aligned pieces of at most maxTokens*TokensPerChar bytes
func (c *Chunker) window(s string) []string {
	limit := c.maxTokens * TokensPerChar
	var out []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
		if sp := strings.LastIndexByte(s[:cut], ' '); sp > limit/2 {
			cut = sp
		}
		out = append(out, strings.TrimSpace(s[:cut]))
		s = strings.TrimSpace(s[cut:])
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// ComputeChunkHash computes SHA-256 hash of passage text
func ComputeChunkHash(content string) [32]byte {
	return sha256.Sum256([]byte(content))
}

// EstimateTokenCount estimates tokens using chars/4 heuristic
func EstimateTokenCount(text string) int {
	return len(text) / TokensPerChar
}
