package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/services/keywords"
	"github.com/ternarybob/sectorscope/internal/services/pipeline"
)

// AnalysisHandler serves keyword summaries and industry evaluations
type AnalysisHandler struct {
	keywords    KeywordSummarizer
	evaluations EvaluationSource
	baseCtx     context.Context
	logger      arbor.ILogger
}

// NewAnalysisHandler creates a new analysis handler. Background refreshes run
// under baseCtx so they stop on shutdown.
func NewAnalysisHandler(baseCtx context.Context, keywords KeywordSummarizer, evaluations EvaluationSource, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{
		keywords:    keywords,
		evaluations: evaluations,
		baseCtx:     baseCtx,
		logger:      logger,
	}
}

// KeywordsHandler handles GET /api/keywords?limit=N
func (h *AnalysisHandler) KeywordsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := GetIntParam(r, "limit", keywords.DefaultLimit)
	summary, err := h.keywords.Summary(r.Context(), limit)
	if errors.Is(err, keywords.ErrNoReports) {
		WriteNoData(w, "No converted reports available")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int("limit", limit).Msg("Failed to build keyword summary")
		WriteError(w, http.StatusInternalServerError, "Failed to build keyword summary")
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}

// EvaluationHandler handles GET /api/evaluation[?all=true]
func (h *AnalysisHandler) EvaluationHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	view, err := h.evaluations.GetEvaluation(r.Context(), GetBoolParam(r, "all"))
	if errors.Is(err, pipeline.ErrNoData) {
		WriteNoData(w, "No converted reports available to evaluate")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to get industry evaluation")
		WriteError(w, http.StatusInternalServerError, "Failed to get industry evaluation")
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

// RefreshEvaluationHandler handles POST /api/evaluation/refresh.
// The refresh runs in the background; the stored artifact is replaced when it completes.
func (h *AnalysisHandler) RefreshEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	common.SafeGo(h.logger, "evaluationRefresh", func() {
		artifact, err := h.evaluations.RefreshEvaluation(h.baseCtx)
		if errors.Is(err, pipeline.ErrNoData) {
			h.logger.Info().Msg("Evaluation refresh skipped, no converted reports")
			return
		}
		if err != nil {
			h.logger.Error().Err(err).Msg("Evaluation refresh failed")
			return
		}
		h.logger.Info().
			Str("run_id", artifact.RunID).
			Int("evaluations", len(artifact.Evaluations)).
			Msg("Evaluation refreshed")
	})

	WriteStarted(w, "Evaluation refresh started")
}
