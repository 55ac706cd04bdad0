package github

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bmartin/prguard/internal/domain"
)

// fingerprintMarker embeds a finding's fingerprint in a comment body as an
// HTML comment, invisible on GitHub but recoverable on later runs. This is
// how posted-comment records survive without a side database.
const fingerprintMarker = "prguard:fingerprint:"

// summaryMarker tags the run summary comment so later runs can tell whether
// one already exists instead of appending another.
const summaryMarker = "prguard:summary"

var (
	fingerprintRe = regexp.MustCompile(`<!--\s*` + fingerprintMarker + `([0-9a-f]{32})\s*-->`)
	summaryRe     = regexp.MustCompile(`<!--\s*` + summaryMarker + `\s*-->`)
)

// FormatFindingComment renders a finding as a Markdown comment body with an
// embedded fingerprint marker.
func FormatFindingComment(f domain.Finding) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "**%s** | **%s**\n\n", strings.ToUpper(string(f.Severity)), f.Category)
	sb.WriteString(f.Message)
	sb.WriteString("\n")
	if f.Suggestion != "" {
		sb.WriteString("\n**Suggestion:** ")
		sb.WriteString(f.Suggestion)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\n<!-- %s%s -->", fingerprintMarker, f.Fingerprint())

	return sb.String()
}

// FormatSummaryComment renders the always-posted run summary, folding any
// line-less findings into the same comment with their markers so they
// deduplicate on re-runs too.
func FormatSummaryComment(summary domain.RunSummary, summaryFindings []domain.Finding) string {
	var sb strings.Builder

	sb.WriteString("## Automated review\n\n")
	sb.WriteString(summary.Headline())
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "- chunks reviewed: %d (%d failed)\n", summary.ChunksTotal, summary.ChunksFailed)
	fmt.Fprintf(&sb, "- findings posted: %d\n", summary.FindingsPosted)
	fmt.Fprintf(&sb, "- duplicates suppressed: %d\n", summary.FindingsDeduplicated)
	if summary.PostFailures > 0 {
		fmt.Fprintf(&sb, "- comments that failed to post: %d\n", summary.PostFailures)
	}

	if len(summaryFindings) > 0 {
		sb.WriteString("\n### File-level findings\n")
		for _, f := range summaryFindings {
			fmt.Fprintf(&sb, "\n- **%s** | **%s**", strings.ToUpper(string(f.Severity)), f.Category)
			if f.File != "" {
				fmt.Fprintf(&sb, " | `%s`", f.File)
			}
			fmt.Fprintf(&sb, ": %s", f.Message)
			fmt.Fprintf(&sb, " <!-- %s%s -->", fingerprintMarker, f.Fingerprint())
		}
		sb.WriteString("\n")
	}

	if len(summary.Errors) > 0 {
		sb.WriteString("\n<details><summary>Diagnostics</summary>\n\n")
		for _, e := range summary.Errors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
		sb.WriteString("\n</details>\n")
	}

	fmt.Fprintf(&sb, "\n<!-- %s -->", summaryMarker)

	return sb.String()
}

// HasSummaryComment reports whether any of the comments is a run summary
// posted by an earlier run.
func HasSummaryComment(comments []Comment) bool {
	for _, c := range comments {
		if summaryRe.MatchString(c.Body) {
			return true
		}
	}
	return false
}

// ExtractFingerprints recovers every fingerprint marker from a comment body.
// Summary comments can carry several.
func ExtractFingerprints(body string) []domain.Fingerprint {
	matches := fingerprintRe.FindAllStringSubmatch(body, -1)
	fps := make([]domain.Fingerprint, 0, len(matches))
	for _, m := range matches {
		fps = append(fps, domain.Fingerprint(m[1]))
	}
	return fps
}

// RecordsFromComments re-derives the posted-comment records for a pull
// request by scanning existing comments for fingerprint markers.
func RecordsFromComments(comments []Comment) []domain.PostedCommentRecord {
	var records []domain.PostedCommentRecord
	for _, c := range comments {
		for _, fp := range ExtractFingerprints(c.Body) {
			records = append(records, domain.PostedCommentRecord{
				Fingerprint: fp,
				CommentID:   c.ID,
			})
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Fingerprint < records[j].Fingerprint })
	return records
}
