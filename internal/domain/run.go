package domain

import "fmt"

// RunStatus is the terminal state of one orchestration pass.
type RunStatus string

const (
	// RunStatusCompleted indicates every chunk was reviewed and posted.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusPartial indicates some chunks or comments failed non-fatally.
	RunStatusPartial RunStatus = "partial"
	// RunStatusTimedOut indicates the run hit its wall-clock deadline but
	// already-extracted findings were still posted.
	RunStatusTimedOut RunStatus = "timed-out-partial"
	// RunStatusFailed indicates a fatal error aborted the run.
	RunStatusFailed RunStatus = "failed"
)

// RunSummary reports the outcome of a review run. It is always produced,
// even when the run finds nothing, so the pull request never goes silent.
type RunSummary struct {
	Status               RunStatus
	ChunksTotal          int
	ChunksFailed         int
	FindingsTotal        int
	FindingsPosted       int
	FindingsDeduplicated int
	PostFailures         int
	Errors               []string
}

// Succeeded reports whether the run should exit zero. Partial reviews count
// as success: a partial review is more useful than none.
func (s RunSummary) Succeeded() bool {
	return s.Status != RunStatusFailed
}

// Headline renders the one-line outcome used in logs and the summary comment.
func (s RunSummary) Headline() string {
	switch {
	case s.Status == RunStatusFailed:
		return "review failed"
	case s.FindingsPosted == 0 && s.ChunksFailed == 0 && s.PostFailures == 0:
		return "review completed with no issues"
	case s.ChunksFailed > 0:
		return fmt.Sprintf("review completed with %d finding(s); %d chunk(s) could not be analyzed",
			s.FindingsPosted, s.ChunksFailed)
	default:
		return fmt.Sprintf("review completed with %d finding(s)", s.FindingsPosted)
	}
}

// PostedCommentRecord maps a finding fingerprint to the comment that carries
// it. On GitHub this is re-derived from existing comments each run; local
// runs persist it in the sqlite store.
type PostedCommentRecord struct {
	Fingerprint Fingerprint
	CommentID   int64
}
