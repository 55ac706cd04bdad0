package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmartin/prguard/internal/domain"
)

func TestFormatFindingCommentCarriesFingerprint(t *testing.T) {
	f := domain.Finding{
		File:       "internal/auth/token.go",
		Line:       42,
		Severity:   domain.SeverityHigh,
		Category:   domain.CategorySecurity,
		Message:    "JWT signature is not verified before claims are read",
		Suggestion: "call token.Verify before accessing claims",
	}

	body := FormatFindingComment(f)

	assert.Contains(t, body, "**HIGH**")
	assert.Contains(t, body, string(domain.CategorySecurity))
	assert.Contains(t, body, f.Message)
	assert.Contains(t, body, f.Suggestion)

	fps := ExtractFingerprints(body)
	require.Len(t, fps, 1)
	assert.Equal(t, f.Fingerprint(), fps[0])
}

func TestFormatFindingCommentOmitsEmptySuggestion(t *testing.T) {
	body := FormatFindingComment(domain.Finding{
		File:     "a.go",
		Line:     1,
		Severity: domain.SeverityLow,
		Category: domain.CategoryQuality,
		Message:  "unused variable",
	})
	assert.NotContains(t, body, "Suggestion")
}

func TestFormatSummaryCommentAlwaysPosts(t *testing.T) {
	body := FormatSummaryComment(domain.RunSummary{
		Status:      domain.RunStatusCompleted,
		ChunksTotal: 3,
	}, nil)
	assert.Contains(t, body, "review completed with no issues")
	assert.Contains(t, body, "chunks reviewed: 3")
}

func TestFormatSummaryCommentEmbedsFileLevelFindings(t *testing.T) {
	findings := []domain.Finding{
		{File: "Dockerfile", Severity: domain.SeverityMedium, Category: domain.CategorySecurity, Message: "image runs as root"},
		{Severity: domain.SeverityInfo, Category: domain.CategoryQuality, Message: "consider enabling linters"},
	}
	body := FormatSummaryComment(domain.RunSummary{
		Status:        domain.RunStatusPartial,
		ChunksTotal:   4,
		ChunksFailed:  1,
		FindingsTotal: 2,
	}, findings)

	fps := ExtractFingerprints(body)
	require.Len(t, fps, 2)
	assert.Contains(t, fps, findings[0].Fingerprint())
	assert.Contains(t, fps, findings[1].Fingerprint())
	assert.Contains(t, body, "`Dockerfile`")
}

func TestHasSummaryComment(t *testing.T) {
	summary := FormatSummaryComment(domain.RunSummary{Status: domain.RunStatusCompleted}, nil)
	inline := FormatFindingComment(domain.Finding{
		File: "a.go", Line: 1, Severity: domain.SeverityLow,
		Category: domain.CategoryQuality, Message: "m",
	})

	assert.True(t, HasSummaryComment([]Comment{{ID: 1, Body: "hi"}, {ID: 2, Body: summary}}))
	assert.False(t, HasSummaryComment([]Comment{{ID: 1, Body: inline}, {ID: 2, Body: "hi"}}))
	assert.False(t, HasSummaryComment(nil))
}

func TestRecordsFromComments(t *testing.T) {
	inline := FormatFindingComment(domain.Finding{
		File: "a.go", Line: 5, Severity: domain.SeverityHigh,
		Category: domain.CategorySecurity, Message: "shell injection",
	})
	comments := []Comment{
		{ID: 10, Body: inline},
		{ID: 11, Body: "just a human comment"},
		{ID: 12, Body: FormatSummaryComment(domain.RunSummary{Status: domain.RunStatusCompleted}, []domain.Finding{
			{File: "b.go", Severity: domain.SeverityLow, Category: domain.CategoryQuality, Message: "long function"},
		})},
	}

	records := RecordsFromComments(comments)
	require.Len(t, records, 2)

	ids := map[domain.Fingerprint]int64{}
	for _, r := range records {
		ids[r.Fingerprint] = r.CommentID
	}
	assert.Contains(t, ids, domain.NewFingerprint("a.go", 5, domain.CategorySecurity, "shell injection"))
	assert.Contains(t, ids, domain.NewFingerprint("b.go", 0, domain.CategoryQuality, "long function"))
}

func TestExtractFingerprintsIgnoresMalformedMarkers(t *testing.T) {
	assert.Empty(t, ExtractFingerprints("<!-- prguard:fingerprint:zzz -->"))
	assert.Empty(t, ExtractFingerprints("prguard:fingerprint:0123456789abcdef0123456789abcdef"))
}
