package chunker_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmartin/prguard/internal/chunker"
	"github.com/bmartin/prguard/internal/domain"
)

// charCount makes budget math trivial: one token per byte.
func charCount(s string) int { return len(s) }

func hunk(file string, newStart int, body string) domain.DiffHunk {
	return domain.DiffHunk{
		File:     file,
		OldStart: newStart,
		OldLines: len(strings.Split(body, "\n")),
		NewStart: newStart,
		NewLines: len(strings.Split(body, "\n")),
		Body:     body,
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := chunker.New(0, charCount)
	require.Error(t, err)

	_, err = chunker.New(100, nil)
	require.Error(t, err)
}

func TestSplit_TwoSmallFilesShareOneChunk(t *testing.T) {
	c, err := chunker.New(4096, charCount)
	require.NoError(t, err)

	files := []domain.FileDiff{
		{Path: "a.go", Hunks: []domain.DiffHunk{hunk("a.go", 1, "+one\n+two")}},
		{Path: "b.go", Hunks: []domain.DiffHunk{hunk("b.go", 5, "+three")}},
	}

	chunks, err := c.Split(files)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0].Hunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].Total)
	assert.False(t, chunks[0].IsContinuation())
	assert.Equal(t, []string{"a.go", "b.go"}, chunks[0].Files())
}

func TestSplit_Reconstruction(t *testing.T) {
	files := []domain.FileDiff{
		{Path: "a.go", Hunks: []domain.DiffHunk{
			hunk("a.go", 1, "+line one\n+line two\n+line three"),
			hunk("a.go", 40, " context\n-gone\n+here"),
		}},
		{Path: "b.go", Hunks: []domain.DiffHunk{
			hunk("b.go", 7, "+alpha\n+beta\n+gamma\n+delta"),
		}},
	}

	// Exercise several budgets, including ones that force hunk splitting.
	for _, budget := range []int{50, 60, 90, 200, 10000} {
		c, err := chunker.New(budget, charCount)
		require.NoError(t, err)

		chunks, err := c.Split(files)
		require.NoError(t, err, "budget %d", budget)

		var got []string
		var current string
		var currentFile string
		flush := func() {
			if current != "" {
				got = append(got, current)
				current = ""
			}
		}
		lastPart := 0
		for _, ch := range chunks {
			for _, h := range ch.Hunks {
				if ch.IsContinuation() && ch.PartIndex > 1 && h.File == currentFile && lastPart == ch.PartIndex-1 {
					current += "\n" + h.Body
				} else {
					flush()
					current = h.Body
					currentFile = h.File
				}
			}
			lastPart = ch.PartIndex
		}
		flush()

		var want []string
		for _, f := range files {
			for _, h := range f.Hunks {
				want = append(want, h.Body)
			}
		}
		assert.Equal(t, want, got, "budget %d must reconstruct every hunk exactly once", budget)
	}
}

func TestSplit_OversizedHunkBecomesContinuationParts(t *testing.T) {
	body := "+line aaaaaaaaaa\n+line bbbbbbbbbb\n+line cccccccccc\n+line dddddddddd"
	h := domain.DiffHunk{File: "big.go", OldStart: 100, OldLines: 0, NewStart: 100, NewLines: 4, Body: body}

	// Budget fits roughly two body lines plus framing per part.
	c, err := chunker.New(70, charCount)
	require.NoError(t, err)

	chunks, err := c.Split([]domain.FileDiff{{Path: "big.go", Hunks: []domain.DiffHunk{h}}})
	require.NoError(t, err)
	require.True(t, len(chunks) >= 2, "expected the hunk to split, got %d chunk(s)", len(chunks))

	total := chunks[0].PartTotal
	newStart := 100
	var rebuilt []string
	for i, ch := range chunks {
		require.Len(t, ch.Hunks, 1)
		part := ch.Hunks[0]

		assert.True(t, ch.IsContinuation())
		assert.Equal(t, i+1, ch.PartIndex)
		assert.Equal(t, total, ch.PartTotal)
		assert.Equal(t, newStart, part.NewStart, "part %d start line", ch.PartIndex)

		newStart += part.NewLines
		rebuilt = append(rebuilt, part.Body)
	}
	assert.Equal(t, body, strings.Join(rebuilt, "\n"))
	assert.Equal(t, 104, newStart, "parts must cover all 4 new-side lines")
}

func TestSplit_BudgetTooSmallFailsFast(t *testing.T) {
	c, err := chunker.New(10, charCount)
	require.NoError(t, err)

	h := hunk("a.go", 1, "+this single line is longer than ten characters")
	_, err = c.Split([]domain.FileDiff{{Path: "a.go", Hunks: []domain.DiffHunk{h}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, chunker.ErrBudgetTooSmall))
}

func TestSplit_EmptyDiff(t *testing.T) {
	c, err := chunker.New(100, charCount)
	require.NoError(t, err)

	chunks, err := c.Split(nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
