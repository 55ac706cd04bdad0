// Package chunker partitions a parsed diff into model-context-safe chunks.
//
// Invariant: concatenating all chunks' hunks in order reconstructs the parsed
// diff exactly once. Hunks from the same file stay contiguous when they fit a
// single chunk; a hunk larger than the whole budget is split at line
// boundaries into labeled continuation parts.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmartin/prguard/internal/diff"
	"github.com/bmartin/prguard/internal/domain"
)

// ErrBudgetTooSmall indicates the configured budget cannot hold even a
// minimum viable hunk fragment (header plus one line). This is a
// configuration error and aborts the run rather than looping.
var ErrBudgetTooSmall = errors.New("chunk budget smaller than minimum viable hunk fragment")

// TokenCounter measures serialized size. Production wiring uses
// llm.EstimateTokens; tests substitute simpler counters.
type TokenCounter func(text string) int

// Chunker assembles review units under a token budget.
type Chunker struct {
	budget int
	count  TokenCounter
}

// New constructs a Chunker. The budget is the maximum serialized size of one
// chunk in tokens as measured by count.
func New(budget int, count TokenCounter) (*Chunker, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("chunk budget must be positive, got %d", budget)
	}
	if count == nil {
		return nil, errors.New("token counter is required")
	}
	return &Chunker{budget: budget, count: count}, nil
}

// Split partitions the files' hunks into ordered chunks. Every hunk appears
// in exactly one chunk (or, when oversized, as an ordered run of continuation
// parts whose bodies concatenate back to the original hunk).
func (c *Chunker) Split(files []domain.FileDiff) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	var pending []domain.DiffHunk
	pendingSize := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		chunks = append(chunks, domain.Chunk{Hunks: pending})
		pending = nil
		pendingSize = 0
	}

	for _, file := range files {
		for _, hunk := range file.Hunks {
			size := c.hunkSize(hunk)

			if size > c.budget {
				// The hunk alone exceeds the budget: close the current
				// chunk and emit continuation parts.
				flush()
				parts, err := c.splitHunk(hunk)
				if err != nil {
					return nil, err
				}
				chunks = append(chunks, parts...)
				continue
			}

			if pendingSize+size > c.budget {
				flush()
			}
			pending = append(pending, hunk)
			pendingSize += size
		}
	}
	flush()

	for i := range chunks {
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}
	return chunks, nil
}

// hunkSize measures a hunk as it will appear in the prompt: file framing,
// header, and body.
func (c *Chunker) hunkSize(h domain.DiffHunk) int {
	return c.count(Serialize(h))
}

// Serialize renders a hunk the way the prompt builder frames it, so budget
// accounting and prompting agree on size.
func Serialize(h domain.DiffHunk) string {
	return "File: " + h.File + "\n" + diff.Header(h) + "\n" + h.Body + "\n"
}

// splitHunk splits an oversized hunk at line boundaries into continuation
// parts, each its own chunk. Part headers carry recomputed old/new start
// lines so findings on any part can reference true file lines.
func (c *Chunker) splitHunk(h domain.DiffHunk) ([]domain.Chunk, error) {
	lines := strings.Split(h.Body, "\n")

	var fragments []domain.DiffHunk
	oldStart, newStart := h.OldStart, h.NewStart
	start := 0

	for start < len(lines) {
		end := start
		var fragment string
		for end < len(lines) {
			candidate := strings.Join(lines[start:end+1], "\n")
			probe := h
			probe.Body = candidate
			if c.hunkSize(probe) > c.budget {
				break
			}
			fragment = candidate
			end++
		}
		if end == start {
			// Not even one line fits under the budget.
			return nil, fmt.Errorf("%w: hunk %s:%d, budget %d", ErrBudgetTooSmall, h.File, h.NewStart, c.budget)
		}

		frag := domain.DiffHunk{
			File:     h.File,
			OldStart: oldStart,
			OldLines: diff.OldSideLines(fragment),
			NewStart: newStart,
			NewLines: diff.NewSideLines(fragment),
			Body:     fragment,
		}
		fragments = append(fragments, frag)

		oldStart += frag.OldLines
		newStart += frag.NewLines
		start = end
	}

	chunks := make([]domain.Chunk, 0, len(fragments))
	for i, frag := range fragments {
		chunks = append(chunks, domain.Chunk{
			Hunks:     []domain.DiffHunk{frag},
			PartIndex: i + 1,
			PartTotal: len(fragments),
		})
	}
	return chunks, nil
}
