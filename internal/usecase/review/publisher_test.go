package review_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmartin/prguard/internal/adapter/store/sqlite"
	"github.com/bmartin/prguard/internal/domain"
	"github.com/bmartin/prguard/internal/usecase/review"
)

func localFindings() []domain.Finding {
	return []domain.Finding{
		{File: "b.go", Line: 2, Severity: domain.SeverityLow, Category: domain.CategoryQuality, Message: "long function"},
		{File: "a.go", Line: 9, Severity: domain.SeverityHigh, Category: domain.CategorySecurity, Message: "sql built by concatenation", Suggestion: "use placeholders"},
	}
}

func TestLocalPublisherRendersSortedFindings(t *testing.T) {
	var out bytes.Buffer
	pub := review.NewLocalPublisher(&out, nil)

	result, err := pub.Publish(context.Background(), prContext(), localFindings(), domain.RunSummary{
		Status:        domain.RunStatusCompleted,
		FindingsTotal: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Posted)
	assert.Len(t, result.Records, 2)

	text := out.String()
	assert.Contains(t, text, "a.go:9")
	assert.Contains(t, text, "b.go:2")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("a.go:9")), bytes.Index(out.Bytes(), []byte("b.go:2")))
	assert.Contains(t, text, "use placeholders")
}

func TestLocalPublisherRecordsWithoutStore(t *testing.T) {
	pub := review.NewLocalPublisher(&bytes.Buffer{}, nil)
	records, err := pub.Records(context.Background(), prContext())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLocalPublisherRecordsFromStore(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pr := prContext()
	pub := review.NewLocalPublisher(&bytes.Buffer{}, store)

	result, err := pub.Publish(context.Background(), pr, localFindings(), domain.RunSummary{Status: domain.RunStatusCompleted})
	require.NoError(t, err)

	adapter := review.NewStoreAdapter(store)
	require.NoError(t, adapter.SaveRecords(context.Background(), pr, result.Records))

	records, err := pub.Records(context.Background(), pr)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestStoreAdapterRecordsRun(t *testing.T) {
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pr := prContext()
	adapter := review.NewStoreAdapter(store)
	require.NoError(t, adapter.RecordRun(context.Background(), pr, domain.RunSummary{
		Status:      domain.RunStatusCompleted,
		ChunksTotal: 2,
	}))

	runs, err := store.ListRuns(context.Background(), pr.Repository(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunStatusCompleted, runs[0].Summary.Status)
}
