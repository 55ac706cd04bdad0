package diff

import (
	"strconv"
	"strings"

	"github.com/bmartin/prguard/internal/domain"
)

// Parse parses a multi-file unified diff (git diff / GitHub .diff format)
// into per-file hunks. An empty diff yields an empty slice.
func Parse(raw string) ([]domain.FileDiff, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var (
		files       []domain.FileDiff
		current     *domain.FileDiff
		currentHunk *domain.DiffHunk
		body        strings.Builder
	)

	flushHunk := func() {
		if currentHunk == nil {
			return
		}
		currentHunk.Body = body.String()
		current.Hunks = append(current.Hunks, *currentHunk)
		currentHunk = nil
		body.Reset()
	}
	flushFile := func() {
		flushHunk()
		if current != nil {
			files = append(files, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flushFile()
			current = &domain.FileDiff{
				Path:   pathFromGitHeader(line),
				Status: domain.FileStatusModified,
			}

		case current == nil:
			// Preamble before the first file header.
			continue

		case strings.HasPrefix(line, "@@"):
			flushHunk()
			h := parseHunkHeader(line)
			h.File = current.Path
			currentHunk = &h

		case currentHunk != nil:
			// Inside a hunk every line is body (+, -, space, or a
			// "\ No newline" marker). Matching file metadata here
			// would corrupt body lines that share a prefix, such as
			// a deleted SQL comment rendering as "--- ...".
			if body.Len() > 0 {
				body.WriteByte('\n')
			}
			body.WriteString(line)

		case strings.HasPrefix(line, "new file"):
			current.Status = domain.FileStatusAdded
		case strings.HasPrefix(line, "deleted file"):
			current.Status = domain.FileStatusDeleted
		case strings.HasPrefix(line, "rename to "):
			current.Status = domain.FileStatusRenamed
			current.Path = strings.TrimPrefix(line, "rename to ")

		case strings.HasPrefix(line, "+++ "):
			// The new-side path is authoritative except for deletions.
			if p := stripPathPrefix(strings.TrimPrefix(line, "+++ ")); p != "" {
				current.Path = p
			}
		}
	}
	flushFile()

	return files, nil
}

// pathFromGitHeader extracts the b-side path from a "diff --git a/x b/y" line.
func pathFromGitHeader(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return ""
	}
	return stripPathPrefix(fields[len(fields)-1])
}

// stripPathPrefix removes the a/ or b/ prefix and handles /dev/null.
func stripPathPrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "/dev/null" {
		return ""
	}
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		return p[2:]
	}
	return p
}

// parseHunkHeader parses "@@ -10,7 +10,8 @@ optional context".
// Malformed ranges yield zero values rather than an error.
func parseHunkHeader(line string) domain.DiffHunk {
	h := domain.DiffHunk{}

	parts := strings.Split(line, "@@")
	if len(parts) < 2 {
		return h
	}

	for _, part := range strings.Fields(strings.TrimSpace(parts[1])) {
		switch {
		case strings.HasPrefix(part, "-"):
			h.OldStart, h.OldLines = parseRange(strings.TrimPrefix(part, "-"))
		case strings.HasPrefix(part, "+"):
			h.NewStart, h.NewLines = parseRange(strings.TrimPrefix(part, "+"))
		}
	}
	return h
}

// parseRange parses "start,count" or "start" (count defaults to 1).
func parseRange(s string) (start, count int) {
	if idx := strings.Index(s, ","); idx >= 0 {
		start, _ = strconv.Atoi(s[:idx])
		count, _ = strconv.Atoi(s[idx+1:])
	} else {
		start, _ = strconv.Atoi(s)
		count = 1
	}
	return
}

// NewSideLines counts the lines of a hunk body that exist on the new side
// (context and additions). Used when splitting a hunk to compute the
// new-revision start line of each part.
func NewSideLines(body string) int {
	if body == "" {
		return 0
	}
	count := 0
	for _, line := range strings.Split(body, "\n") {
		if len(line) == 0 || line[0] != '-' {
			if strings.HasPrefix(line, "\\ ") {
				continue
			}
			count++
		}
	}
	return count
}

// OldSideLines counts the lines of a hunk body that exist on the old side
// (context and deletions).
func OldSideLines(body string) int {
	if body == "" {
		return 0
	}
	count := 0
	for _, line := range strings.Split(body, "\n") {
		if len(line) == 0 || line[0] != '+' {
			if strings.HasPrefix(line, "\\ ") {
				continue
			}
			count++
		}
	}
	return count
}

// Header renders the canonical @@ header for a hunk.
func Header(h domain.DiffHunk) string {
	return "@@ -" + strconv.Itoa(h.OldStart) + "," + strconv.Itoa(h.OldLines) +
		" +" + strconv.Itoa(h.NewStart) + "," + strconv.Itoa(h.NewLines) + " @@"
}
