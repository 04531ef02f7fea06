package keywords

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/cache"
	"github.com/ternarybob/sectorscope/internal/storage/badger"
)

type staticReports struct {
	records []models.ReportRecord
}

func (s *staticReports) Converted(ctx context.Context, limit int) ([]models.ReportRecord, error) {
	if limit > 0 && limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}

type countingExtractor struct {
	calls int
	texts []string
	err   error
}

func (e *countingExtractor) ExtractKeywords(ctx context.Context, texts []string) ([]models.Keyword, error) {
	e.calls++
	e.texts = texts
	if e.err != nil {
		return nil, e.err
	}
	return []models.Keyword{{Label: "Housing", Impact: models.ImpactNeutral}}, nil
}

func setup(t *testing.T, records []models.ReportRecord) (*Service, *countingExtractor) {
	t.Helper()
	return setupWithTexts(t, records, records)
}

// setupWithTexts serves records but stores derived text only for withText
func setupWithTexts(t *testing.T, records, withText []models.ReportRecord) (*Service, *countingExtractor) {
	t.Helper()
	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	ctx := context.Background()
	for _, r := range withText {
		require.NoError(t, manager.DerivedTextStorage().SaveDerivedText(ctx, &models.DerivedText{
			Ref:       r.DerivedTextRef,
			ReportID:  r.ID,
			Content:   "content of " + r.ID,
			CreatedAt: time.Now(),
		}))
	}

	extractor := &countingExtractor{}
	svc := NewService(
		&staticReports{records: records},
		manager.DerivedTextStorage(),
		extractor,
		cache.NewService(manager.KeywordCacheStorage(), logger),
		logger,
	)
	return svc, extractor
}

func converted() []models.ReportRecord {
	return []models.ReportRecord{
		{ID: "a", Title: "Banks", Date: "2025-02-01", DerivedTextRef: "dt_a"},
		{ID: "b", Title: "Miners", Date: "2025-01-01", DerivedTextRef: "dt_b"},
	}
}

func TestSummary_MissThenHit(t *testing.T) {
	svc, extractor := setup(t, converted())
	ctx := context.Background()

	first, err := svc.Summary(ctx, 0)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, extractor.calls)
	require.Len(t, extractor.texts, 2)
	assert.Contains(t, extractor.texts[0], "content of a")
	assert.Len(t, first.Files, 2)

	second, err := svc.Summary(ctx, 0)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, extractor.calls)
	assert.Equal(t, first.Keywords, second.Keywords)

	subset, err := svc.Summary(ctx, 1)
	require.NoError(t, err)
	assert.True(t, subset.Cached)
	assert.Equal(t, 1, extractor.calls)
}

func TestSummary_NoReports(t *testing.T) {
	svc, _ := setup(t, nil)

	_, err := svc.Summary(context.Background(), 5)
	assert.ErrorIs(t, err, ErrNoReports)
}

func TestSummary_ExtractionFailureNotCached(t *testing.T) {
	svc, extractor := setup(t, converted())
	extractor.err = errors.New("generation failed")

	_, err := svc.Summary(context.Background(), 0)
	require.Error(t, err)

	extractor.err = nil
	summary, err := svc.Summary(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, summary.Cached)
	assert.Equal(t, 2, extractor.calls)
}

func TestSummary_MissingTextNotMarkedCovered(t *testing.T) {
	records := converted()
	svc, extractor := setupWithTexts(t, records, records[:1])
	ctx := context.Background()

	first, err := svc.Summary(ctx, 0)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	require.Len(t, extractor.texts, 1)
	assert.Contains(t, extractor.texts[0], "content of a")

	// "b" was never extracted, so asking for {a,b} again must regenerate
	second, err := svc.Summary(ctx, 0)
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.Equal(t, 2, extractor.calls)

	// "a" alone is covered
	onlyA, err := svc.Summary(ctx, 1)
	require.NoError(t, err)
	assert.True(t, onlyA.Cached)
	assert.Equal(t, 2, extractor.calls)
}

var _ interfaces.KeywordExtractor = (*countingExtractor)(nil)
