package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmartin/prguard/internal/adapter/store/sqlite"
	"github.com/bmartin/prguard/internal/domain"
)

func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err, "failed to create test store")

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func TestStore_RecordRun_ListRuns(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := sqlite.Run{
		Repository: "acme/widgets",
		BaseSHA:    "abc123",
		HeadSHA:    "def456",
		Timestamp:  time.Now().Truncate(time.Second),
		Summary: domain.RunSummary{
			Status:               domain.RunStatusPartial,
			ChunksTotal:          4,
			ChunksFailed:         1,
			FindingsTotal:        3,
			FindingsPosted:       2,
			FindingsDeduplicated: 1,
		},
	}
	require.NoError(t, s.RecordRun(ctx, run))

	runs, err := s.ListRuns(ctx, "acme/widgets", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, run.Repository, got.Repository)
	assert.Equal(t, run.BaseSHA, got.BaseSHA)
	assert.Equal(t, run.HeadSHA, got.HeadSHA)
	assert.Equal(t, domain.RunStatusPartial, got.Summary.Status)
	assert.Equal(t, 4, got.Summary.ChunksTotal)
	assert.Equal(t, 1, got.Summary.ChunksFailed)
	assert.True(t, run.Timestamp.Equal(got.Timestamp))
}

func TestStore_ListRuns_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordRun(ctx, sqlite.Run{
			Repository: "acme/widgets",
			BaseSHA:    "abc",
			HeadSHA:    "def",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
			Summary:    domain.RunSummary{Status: domain.RunStatusCompleted},
		}))
	}

	runs, err := s.ListRuns(ctx, "acme/widgets", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].Timestamp.After(runs[1].Timestamp))
}

func TestStore_PostedRecords_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	fp := domain.NewFingerprint("a.go", 10, domain.CategorySecurity, "hardcoded credential")
	records := []domain.PostedCommentRecord{
		{Fingerprint: fp, CommentID: 7},
		{Fingerprint: domain.NewFingerprint("b.go", 2, domain.CategoryQuality, "dead code"), CommentID: 8},
	}
	require.NoError(t, s.SavePostedRecords(ctx, "acme/widgets", records))

	got, err := s.ListPostedRecords(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Len(t, got, 2)

	fps := map[domain.Fingerprint]bool{}
	for _, r := range got {
		fps[r.Fingerprint] = true
	}
	assert.True(t, fps[fp])
}

func TestStore_PostedRecords_DuplicateSaveIsNoop(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	records := []domain.PostedCommentRecord{
		{Fingerprint: domain.NewFingerprint("a.go", 1, domain.CategoryQuality, "msg"), CommentID: 1},
	}
	require.NoError(t, s.SavePostedRecords(ctx, "acme/widgets", records))
	require.NoError(t, s.SavePostedRecords(ctx, "acme/widgets", records))

	got, err := s.ListPostedRecords(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_PostedRecords_ScopedByRepository(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePostedRecords(ctx, "acme/widgets", []domain.PostedCommentRecord{
		{Fingerprint: domain.NewFingerprint("a.go", 1, domain.CategoryQuality, "msg")},
	}))

	got, err := s.ListPostedRecords(ctx, "other/repo")
	require.NoError(t, err)
	assert.Empty(t, got)
}
