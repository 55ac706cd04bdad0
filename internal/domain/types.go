package domain

const (
	FileStatusAdded    = "added"
	FileStatusModified = "modified"
	FileStatusDeleted  = "deleted"
	FileStatusRenamed  = "renamed"
)

// PullRequestContext holds everything fetched about the pull request under
// review. It is populated once at the start of a run and never mutated.
type PullRequestContext struct {
	Owner        string
	Repo         string
	Number       int
	BaseSHA      string
	HeadSHA      string
	ChangedFiles []string
	RawDiff      string
}

// Repository returns the owner/name coordinate, or empty for local runs.
func (c PullRequestContext) Repository() string {
	if c.Owner == "" || c.Repo == "" {
		return ""
	}
	return c.Owner + "/" + c.Repo
}

// FileDiff captures the change for a single file.
type FileDiff struct {
	Path   string
	Status string
	Hunks  []DiffHunk
}

// DiffHunk is one @@ hunk of a unified diff. Body holds the hunk lines
// without the header line; the header fields are kept separately so chunk
// splitting can synthesize correct sub-headers.
type DiffHunk struct {
	File     string
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Body     string
}

// Chunk is a context-budget-bounded slice of the diff submitted to the model
// in one completion call. Index/Total frame the chunk within the run.
//
// A hunk too large for the budget is split at line boundaries into
// continuation parts: PartIndex/PartTotal label the sequence (both zero for
// ordinary chunks) so the prompt can say "part k of n" and the parser can
// remap relative line numbers back onto the original hunk.
type Chunk struct {
	Index     int
	Total     int
	Hunks     []DiffHunk
	PartIndex int
	PartTotal int
}

// IsContinuation reports whether the chunk is one part of a split hunk.
func (c Chunk) IsContinuation() bool {
	return c.PartTotal > 1
}

// Files returns the distinct file paths covered by the chunk, in hunk order.
func (c Chunk) Files() []string {
	var files []string
	seen := make(map[string]bool, len(c.Hunks))
	for _, h := range c.Hunks {
		if !seen[h.File] {
			seen[h.File] = true
			files = append(files, h.File)
		}
	}
	return files
}
