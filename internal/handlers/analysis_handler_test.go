package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/keywords"
	"github.com/ternarybob/sectorscope/internal/services/pipeline"
)

type mockKeywords struct {
	summaryFunc func(ctx context.Context, limit int) (*keywords.Summary, error)
}

func (m *mockKeywords) Summary(ctx context.Context, limit int) (*keywords.Summary, error) {
	return m.summaryFunc(ctx, limit)
}

type mockEvaluations struct {
	mu          sync.Mutex
	getFunc     func(ctx context.Context, all bool) (*pipeline.EvaluationView, error)
	refreshFunc func(ctx context.Context) (*models.EvaluationArtifact, error)
	refreshes   int
}

func (m *mockEvaluations) GetEvaluation(ctx context.Context, all bool) (*pipeline.EvaluationView, error) {
	return m.getFunc(ctx, all)
}

func (m *mockEvaluations) RefreshEvaluation(ctx context.Context) (*models.EvaluationArtifact, error) {
	m.mu.Lock()
	m.refreshes++
	m.mu.Unlock()
	return m.refreshFunc(ctx)
}

func (m *mockEvaluations) refreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshes
}

func TestKeywordsHandler(t *testing.T) {
	var gotLimit int
	kw := &mockKeywords{summaryFunc: func(ctx context.Context, limit int) (*keywords.Summary, error) {
		gotLimit = limit
		return &keywords.Summary{
			Keywords: []models.Keyword{{Label: "rates", Impact: models.ImpactNegative}},
			Cached:   true,
		}, nil
	}}
	handler := NewAnalysisHandler(context.Background(), kw, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.KeywordsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/keywords?limit=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, gotLimit)

	var summary keywords.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.Cached)
	require.Len(t, summary.Keywords, 1)

	rec = httptest.NewRecorder()
	handler.KeywordsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/keywords?limit=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, keywords.DefaultLimit, gotLimit)
}

func TestKeywordsHandler_NoReports(t *testing.T) {
	kw := &mockKeywords{summaryFunc: func(ctx context.Context, limit int) (*keywords.Summary, error) {
		return nil, keywords.ErrNoReports
	}}
	handler := NewAnalysisHandler(context.Background(), kw, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.KeywordsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/keywords", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no_data", decodeBody(t, rec)["status"])
}

func TestKeywordsHandler_ExtractionError(t *testing.T) {
	kw := &mockKeywords{summaryFunc: func(ctx context.Context, limit int) (*keywords.Summary, error) {
		return nil, errors.New("generation failed")
	}}
	handler := NewAnalysisHandler(context.Background(), kw, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.KeywordsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/keywords", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEvaluationHandler(t *testing.T) {
	var gotAll bool
	evals := &mockEvaluations{getFunc: func(ctx context.Context, all bool) (*pipeline.EvaluationView, error) {
		gotAll = all
		return &pipeline.EvaluationView{
			RunID:            "run_1",
			Filtered:         !all,
			TotalEvaluations: 2,
			Evaluations: []models.IndustryEvaluation{
				{IndustryName: "Banking", Sentiment: models.SentimentPositive, Confidence: 0.9},
			},
		}, nil
	}}
	handler := NewAnalysisHandler(context.Background(), nil, evals, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.EvaluationHandler(rec, httptest.NewRequest(http.MethodGet, "/api/evaluation", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, gotAll)

	var view pipeline.EvaluationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Filtered)
	assert.Equal(t, "Banking", view.Evaluations[0].IndustryName)

	rec = httptest.NewRecorder()
	handler.EvaluationHandler(rec, httptest.NewRequest(http.MethodGet, "/api/evaluation?all=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gotAll)
}

func TestEvaluationHandler_NoData(t *testing.T) {
	evals := &mockEvaluations{getFunc: func(ctx context.Context, all bool) (*pipeline.EvaluationView, error) {
		return nil, pipeline.ErrNoData
	}}
	handler := NewAnalysisHandler(context.Background(), nil, evals, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.EvaluationHandler(rec, httptest.NewRequest(http.MethodGet, "/api/evaluation", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no_data", decodeBody(t, rec)["status"])
}

func TestRefreshEvaluationHandler(t *testing.T) {
	evals := &mockEvaluations{refreshFunc: func(ctx context.Context) (*models.EvaluationArtifact, error) {
		return &models.EvaluationArtifact{RunID: "run_2"}, nil
	}}
	handler := NewAnalysisHandler(context.Background(), nil, evals, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.RefreshEvaluationHandler(rec, httptest.NewRequest(http.MethodGet, "/api/evaluation/refresh", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	handler.RefreshEvaluationHandler(rec, httptest.NewRequest(http.MethodPost, "/api/evaluation/refresh", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "started", decodeBody(t, rec)["status"])

	assert.Eventually(t, func() bool { return evals.refreshCount() == 1 }, time.Second, 10*time.Millisecond)
}
