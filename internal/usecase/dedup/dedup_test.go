package dedup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmartin/prguard/internal/usecase/dedup"
	"github.com/bmartin/prguard/internal/domain"
)

func finding(file string, line int, message string) domain.Finding {
	return domain.Finding{
		File:     file,
		Line:     line,
		Severity: domain.SeverityMedium,
		Category: domain.CategoryQuality,
		Message:  message,
	}
}

func TestPartition_AllNewWhenNothingPosted(t *testing.T) {
	findings := []domain.Finding{finding("a.go", 1, "one"), finding("b.go", 2, "two")}

	result := dedup.Partition(findings, nil)
	assert.Len(t, result.New, 2)
	assert.Empty(t, result.AlreadyPosted)
}

func TestPartition_MatchingFingerprintAlreadyPosted(t *testing.T) {
	f := finding("a.go", 1, "unchecked error")
	posted := []domain.PostedCommentRecord{{Fingerprint: f.Fingerprint(), CommentID: 99}}

	result := dedup.Partition([]domain.Finding{f, finding("b.go", 2, "fresh")}, posted)

	require.Len(t, result.AlreadyPosted, 1)
	assert.Equal(t, "unchecked error", result.AlreadyPosted[0].Message)
	require.Len(t, result.New, 1)
	assert.Equal(t, "fresh", result.New[0].Message)
}

func TestPartition_CollisionWithDifferentSeverityStillPosted(t *testing.T) {
	// Same identity fields, different severity: fingerprints collide by
	// design and the finding counts as already posted.
	f := finding("a.go", 1, "weak hash algorithm")
	prior := f
	prior.Severity = domain.SeverityCritical

	result := dedup.Partition([]domain.Finding{f},
		[]domain.PostedCommentRecord{{Fingerprint: prior.Fingerprint()}})

	assert.Empty(t, result.New)
	assert.Len(t, result.AlreadyPosted, 1)
}

func TestPartition_CollapsesDuplicatesWithinRun(t *testing.T) {
	f := finding("a.go", 1, "same thing twice")

	result := dedup.Partition([]domain.Finding{f, f}, nil)
	assert.Len(t, result.New, 1)
	assert.Len(t, result.AlreadyPosted, 1)
}

func TestPartition_DoesNotMutateInputs(t *testing.T) {
	findings := []domain.Finding{finding("a.go", 1, "one")}
	posted := []domain.PostedCommentRecord{{Fingerprint: "abc"}}

	dedup.Partition(findings, posted)

	assert.Equal(t, "one", findings[0].Message)
	assert.Equal(t, domain.Fingerprint("abc"), posted[0].Fingerprint)
}
