// Package ragcontext assembles ranked passages into one budget-bounded
// context string.
//
// Each passage becomes a block
//
//	### [<n>] <title> (<source>)
//	<body>
//
// where title is metadata["title"] (falling back to the id) and the source
// suffix is omitted when metadata["source"] is empty. Blocks are joined by the
// separator, "\n" by default. The cost of a block is measured in the
// configured unit and includes the separator before it; words are counted
// with strings.Fields, bytes with len. Blocks are added in rank order until
// the next one would exceed the budget. A block is never split.
package ragcontext

import (
	"fmt"
	"strings"

	"github.com/dshills/docrag-mcp/pkg/types"
)

// Unit selects how budget cost is measured
type Unit string

const (
	UnitWords Unit = "words"
	UnitBytes Unit = "bytes"

	defaultSeparator = "\n"
)

// Options configures an Assembler
type Options struct {
	Unit      Unit   // default words
	Separator string // default "\n"
}

// Assembler builds RAG contexts. It holds no mutable state.
type Assembler struct {
	unit Unit
	sep  string
}

// New creates an Assembler
func New(opts Options) *Assembler {
	unit := opts.Unit
	if unit != UnitBytes {
		unit = UnitWords
	}
	sep := opts.Separator
	if sep == "" {
		sep = defaultSeparator
	}
	return &Assembler{unit: unit, sep: sep}
}

// Unit returns the cost unit
func (a *Assembler) Unit() Unit {
	return a.unit
}

// Cost measures s in the assembler's unit
func (a *Assembler) Cost(s string) int {
	if a.unit == UnitBytes {
		return len(s)
	}
	return len(strings.Fields(s))
}

// Assemble formats results in order until the budget is reached. It is
// deterministic: the same input always yields byte-identical output.
func (a *Assembler) Assemble(results []types.RankedResult, maxBudget int) types.RAGContext {
	if len(results) == 0 {
		return types.RAGContext{}
	}

	var b strings.Builder
	used := 0
	count := 0
	for _, r := range results {
		block := FormatBlock(count+1, r)
		cost := a.Cost(block)
		if count > 0 {
			cost += a.Cost(a.sep)
		}
		if used+cost > maxBudget {
			break
		}

		if count > 0 {
			b.WriteString(a.sep)
		}
		b.WriteString(block)
		used += cost
		count++
	}

	return types.RAGContext{
		Text:        b.String(),
		SourceCount: count,
		Truncated:   count < len(results),
	}
}

// FormatBlock renders one passage as a numbered block
func FormatBlock(n int, r types.RankedResult) string {
	title := r.Candidate.MetadataString("title")
	if title == "" {
		title = r.Candidate.ID
	}

	header := fmt.Sprintf("### [%d] %s", n, title)
	if source := r.Candidate.MetadataString("source"); source != "" {
		header += " (" + source + ")"
	}

	body := strings.TrimRight(r.Candidate.Text, "\n")
	return header + "\n" + body + "\n"
}
