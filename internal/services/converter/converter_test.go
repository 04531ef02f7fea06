package converter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
)

type fakeFetcher struct {
	pages    int
	fetchErr error

	mu     sync.Mutex
	slices [][2]int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*interfaces.FetchedDocument, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &interfaces.FetchedDocument{Data: []byte("whole"), PageCount: f.pages, MIMEType: "application/pdf"}, nil
}

func (f *fakeFetcher) Slice(ctx context.Context, data []byte, start, end int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slices = append(f.slices, [2]int{start, end})
	return []byte(fmt.Sprintf("pages %d-%d", start, end)), nil
}

type fakeSummarizer struct {
	failChunk int

	mu       sync.Mutex
	chunks   []interfaces.ChunkContext
	merges   [][]string
	mergeOut string
}

func (s *fakeSummarizer) SummarizeChunk(ctx context.Context, chunk interfaces.ChunkContext, document *interfaces.Attachment) (string, error) {
	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	s.mu.Unlock()
	if s.failChunk >= 0 && chunk.Index == s.failChunk {
		return "", errors.New("generation failed")
	}
	return fmt.Sprintf("summary %d-%d", chunk.StartPage, chunk.EndPage), nil
}

func (s *fakeSummarizer) MergeSummaries(ctx context.Context, partials []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merges = append(s.merges, append([]string(nil), partials...))
	if s.mergeOut != "" {
		return s.mergeOut, nil
	}
	return "merged", nil
}

type fakeTexts struct {
	saved    map[string]*models.DerivedText
	existing *models.DerivedText
}

func (t *fakeTexts) SaveDerivedText(ctx context.Context, text *models.DerivedText) error {
	if t.existing != nil {
		return interfaces.ErrDerivedTextExists
	}
	if t.saved == nil {
		t.saved = make(map[string]*models.DerivedText)
	}
	t.saved[text.Ref] = text
	return nil
}

func (t *fakeTexts) GetDerivedText(ctx context.Context, ref string) (*models.DerivedText, error) {
	if text, ok := t.saved[ref]; ok {
		return text, nil
	}
	return nil, interfaces.ErrDerivedTextNotFound
}

func (t *fakeTexts) GetDerivedTextByReport(ctx context.Context, reportID string) (*models.DerivedText, error) {
	if t.existing != nil && t.existing.ReportID == reportID {
		return t.existing, nil
	}
	for _, text := range t.saved {
		if text.ReportID == reportID {
			return text, nil
		}
	}
	return nil, interfaces.ErrDerivedTextNotFound
}

type fakeMarker struct {
	marked map[string]string
}

func (m *fakeMarker) MarkConverted(ctx context.Context, id string, ref string) error {
	if m.marked == nil {
		m.marked = make(map[string]string)
	}
	m.marked[id] = ref
	return nil
}

func newTestConverter(pages int) (*Converter, *fakeFetcher, *fakeSummarizer, *fakeTexts, *fakeMarker) {
	fetcher := &fakeFetcher{pages: pages}
	summarizer := &fakeSummarizer{failChunk: -1}
	texts := &fakeTexts{}
	marker := &fakeMarker{}
	conv := NewConverter(fetcher, summarizer, texts, marker, Options{
		ChunkSize:          20,
		TailMergeThreshold: 5,
		MaxParallelChunks:  3,
	}, arbor.NewLogger())
	return conv, fetcher, summarizer, texts, marker
}

func testRecord() models.ReportRecord {
	return models.ReportRecord{ID: "r1", Title: "Bank outlook", DownloadURL: "http://example.com/r1.pdf"}
}

func TestConvert_SingleChunkSkipsMerge(t *testing.T) {
	conv, fetcher, summarizer, texts, marker := newTestConverter(12)

	result, err := conv.Convert(context.Background(), testRecord())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Empty(t, fetcher.slices, "whole document should be sent without slicing")
	assert.Empty(t, summarizer.merges)

	stored := texts.saved[result.DerivedTextRef]
	require.NotNil(t, stored)
	assert.Equal(t, "summary 1-12", stored.Content)
	assert.Equal(t, result.DerivedTextRef, marker.marked["r1"])
}

func TestConvert_MergesPartialsInDocumentOrder(t *testing.T) {
	conv, fetcher, summarizer, texts, _ := newTestConverter(50)

	result, err := conv.Convert(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Equal(t, 3, result.ChunkCount)
	assert.Len(t, summarizer.chunks, 3)
	assert.ElementsMatch(t, [][2]int{{0, 20}, {20, 40}, {40, 50}}, fetcher.slices)

	require.Len(t, summarizer.merges, 1)
	assert.Equal(t, []string{"summary 1-20", "summary 21-40", "summary 41-50"}, summarizer.merges[0])
	assert.Equal(t, "merged", texts.saved[result.DerivedTextRef].Content)
}

func TestConvert_TailAbsorbed(t *testing.T) {
	conv, _, summarizer, _, _ := newTestConverter(45)

	result, err := conv.Convert(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Equal(t, 2, result.ChunkCount)
	require.Len(t, summarizer.merges, 1)
	assert.Equal(t, []string{"summary 1-20", "summary 21-45"}, summarizer.merges[0])
}

func TestConvert_ChunkFailureLeavesReportPending(t *testing.T) {
	conv, _, summarizer, texts, marker := newTestConverter(50)
	summarizer.failChunk = 1

	result, err := conv.Convert(context.Background(), testRecord())
	require.Error(t, err)

	assert.False(t, result.Success)
	assert.False(t, result.Fatal)
	assert.Empty(t, texts.saved)
	assert.Empty(t, marker.marked)
	assert.Empty(t, summarizer.merges)
}

func TestConvert_NoPagesIsFatal(t *testing.T) {
	conv, _, summarizer, texts, marker := newTestConverter(0)

	result, err := conv.Convert(context.Background(), testRecord())
	require.ErrorIs(t, err, ErrNoPages)

	assert.True(t, result.Fatal)
	assert.Empty(t, summarizer.chunks)
	assert.Empty(t, texts.saved)
	assert.Empty(t, marker.marked)
}

func TestConvert_FetchFailure(t *testing.T) {
	conv, fetcher, _, _, marker := newTestConverter(10)
	fetcher.fetchErr = errors.New("connection refused")

	result, err := conv.Convert(context.Background(), testRecord())
	require.Error(t, err)
	assert.False(t, result.Fatal)
	assert.Contains(t, result.Error, "connection refused")
	assert.Empty(t, marker.marked)
}

func TestConvert_ReusesExistingDerivedText(t *testing.T) {
	conv, _, _, texts, marker := newTestConverter(10)
	texts.existing = &models.DerivedText{Ref: "dt_existing", ReportID: "r1", Content: "old"}

	result, err := conv.Convert(context.Background(), testRecord())
	require.NoError(t, err)

	assert.Equal(t, "dt_existing", result.DerivedTextRef)
	assert.Equal(t, "dt_existing", marker.marked["r1"])
}
