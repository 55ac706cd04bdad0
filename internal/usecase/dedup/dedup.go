// Package dedup partitions findings against previously posted comments so
// re-runs on the same pull request never repeat themselves.
package dedup

import "github.com/bmartin/prguard/internal/domain"

// Result categorizes findings relative to the posted-comment records.
type Result struct {
	// New are findings with no matching posted fingerprint.
	New []domain.Finding
	// AlreadyPosted are findings whose fingerprint matches an existing
	// comment. The existing comment is left untouched, not updated, to
	// avoid comment churn across re-runs.
	AlreadyPosted []domain.Finding
}

// Partition splits findings into new vs already-posted by fingerprint.
// Pure function: neither input is mutated. Duplicate fingerprints within the
// same run collapse to a single new finding, so one run never posts the same
// comment twice either.
func Partition(findings []domain.Finding, posted []domain.PostedCommentRecord) Result {
	seen := make(map[domain.Fingerprint]bool, len(posted))
	for _, rec := range posted {
		seen[rec.Fingerprint] = true
	}

	var result Result
	for _, f := range findings {
		fp := f.Fingerprint()
		if seen[fp] {
			result.AlreadyPosted = append(result.AlreadyPosted, f)
			continue
		}
		seen[fp] = true
		result.New = append(result.New, f)
	}
	return result
}
