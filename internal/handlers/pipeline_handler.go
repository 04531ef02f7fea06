package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/services/pipeline"
)

// PipelineHandler triggers ingestion runs
type PipelineHandler struct {
	runner  PipelineRunner
	baseCtx context.Context
	logger  arbor.ILogger
}

// NewPipelineHandler creates a new pipeline handler. Runs started here are
// cancelled between documents when baseCtx is done.
func NewPipelineHandler(baseCtx context.Context, runner PipelineRunner, logger arbor.ILogger) *PipelineHandler {
	return &PipelineHandler{
		runner:  runner,
		baseCtx: baseCtx,
		logger:  logger,
	}
}

// RunHandler handles POST /api/pipeline/run[?force=true]
func (h *PipelineHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if h.runner.Running() {
		WriteError(w, http.StatusConflict, pipeline.ErrRunInProgress.Error())
		return
	}

	force := GetBoolParam(r, "force")
	common.SafeGo(h.logger, "pipelineRun", func() {
		report, err := h.runner.Cycle(h.baseCtx, force)
		if errors.Is(err, pipeline.ErrRunInProgress) {
			h.logger.Warn().Msg("Pipeline run request ignored, run already in progress")
			return
		}
		if err != nil {
			h.logger.Error().Err(err).Msg("Pipeline run failed")
			return
		}
		h.logger.Info().
			Str("run_id", report.RunID).
			Int("converted", report.Converted).
			Msg("Pipeline run triggered over HTTP finished")
	})

	WriteStarted(w, "Pipeline run started")
}
