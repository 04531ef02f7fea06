// Package pipeline drives discovery, conversion and evaluation of reports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/evaluator"
)

var (
	// ErrRunInProgress is returned when a pipeline run is requested while one is active
	ErrRunInProgress = errors.New("pipeline run already in progress")
	// ErrNoData is returned by read operations when nothing has been produced yet
	ErrNoData = errors.New("no data available")
)

// DefaultFreshness is the discovery freshness window used when none is configured
const DefaultFreshness = 6 * time.Hour

// Catalog is the catalog surface the orchestrator depends on
type Catalog interface {
	Meta(ctx context.Context) (*models.CatalogMeta, error)
	UpsertIfNew(ctx context.Context, candidates []models.ReportRecord) (int, error)
	PendingConversion(ctx context.Context) ([]models.ReportRecord, error)
	MarkFailed(ctx context.Context, id string, reason string) error
	Converted(ctx context.Context, limit int) ([]models.ReportRecord, error)
}

// ReportConverter converts one report into derived text
type ReportConverter interface {
	Convert(ctx context.Context, record models.ReportRecord) (*models.ConversionResult, error)
}

// IndustryEvaluator evaluates a set of converted reports and persists the artifact
type IndustryEvaluator interface {
	Run(ctx context.Context, records []models.ReportRecord) (*models.EvaluationArtifact, error)
}

// EvaluationView is the consumer-facing evaluation, filtered unless requested otherwise
type EvaluationView struct {
	RunID                string                      `json:"run_id"`
	EvaluatedAt          time.Time                   `json:"evaluated_at"`
	EvaluatedReportCount int                         `json:"evaluated_report_count"`
	TotalEvaluations     int                         `json:"total_evaluations"`
	MinConfidence        float64                     `json:"min_confidence"`
	Filtered             bool                        `json:"filtered"`
	Evaluations          []models.IndustryEvaluation `json:"evaluations"`
}

// Orchestrator runs the ingestion state machine and serves the lazy evaluation
type Orchestrator struct {
	catalog     Catalog
	discoverer  interfaces.ReportDiscoverer
	converter   ReportConverter
	evaluator   IndustryEvaluator
	evaluations interfaces.EvaluationStorage
	events      interfaces.EventService
	config      *common.PipelineConfig
	freshness   time.Duration
	logger      arbor.ILogger
	now         func() time.Time

	runMu   sync.Mutex
	running atomic.Bool
	evalMu  sync.Mutex
}

// NewOrchestrator creates a new pipeline orchestrator
func NewOrchestrator(
	catalog Catalog,
	discoverer interfaces.ReportDiscoverer,
	converter ReportConverter,
	evaluator IndustryEvaluator,
	evaluations interfaces.EvaluationStorage,
	events interfaces.EventService,
	config *common.PipelineConfig,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		catalog:     catalog,
		discoverer:  discoverer,
		converter:   converter,
		evaluator:   evaluator,
		evaluations: evaluations,
		events:      events,
		config:      config,
		freshness:   common.ParseDurationOr(config.Freshness, DefaultFreshness),
		logger:      logger,
		now:         time.Now,
	}
}

// publish delivers synchronously so subscribers observe events in run order
func (o *Orchestrator) publish(ctx context.Context, eventType interfaces.EventType, payload map[string]interface{}) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishSync(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		o.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}

func (o *Orchestrator) enter(ctx context.Context, runID string, stage models.RunStage) {
	o.logger.Debug().Str("run_id", runID).Str("stage", string(stage)).Msg("Pipeline stage")
	o.publish(ctx, interfaces.EventStageChanged, map[string]interface{}{
		"run_id": runID,
		"stage":  string(stage),
	})
}

// Run performs one ingestion pass. Discovery is skipped while the catalog is
// fresh unless force is set. Cancellation is honoured between documents only.
func (o *Orchestrator) Run(ctx context.Context, force bool) (*models.RunReport, error) {
	if !o.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	o.running.Store(true)
	defer func() {
		o.running.Store(false)
		o.runMu.Unlock()
	}()

	report := &models.RunReport{
		RunID:     common.NewRunID(),
		Forced:    force,
		StartedAt: o.now(),
	}
	runID := report.RunID

	o.logger.Info().Str("run_id", runID).Bool("force", force).Msg("Pipeline run started")
	o.publish(ctx, interfaces.EventPipelineStarted, map[string]interface{}{
		"run_id": runID,
		"force":  force,
	})

	err := o.run(ctx, report)
	if err != nil {
		report.Error = err.Error()
	}

	report.FinishedAt = o.now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)
	o.enter(ctx, runID, models.RunStageDone)

	o.logger.Info().
		Str("run_id", runID).
		Bool("skipped_fresh", report.SkippedFresh).
		Int("discovered", report.Discovered).
		Int("added", report.Added).
		Int("converted", report.Converted).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Bool("cancelled", report.Cancelled).
		Dur("duration", report.Duration).
		Msg("Pipeline run completed")

	o.publish(context.WithoutCancel(ctx), interfaces.EventPipelineCompleted, map[string]interface{}{
		"run_id": runID,
		"report": report,
		"error":  report.Error,
	})

	return report, err
}

// Cycle runs the pipeline and refreshes the stored evaluation when the run
// converted at least one report.
func (o *Orchestrator) Cycle(ctx context.Context, force bool) (*models.RunReport, error) {
	report, err := o.Run(ctx, force)
	if err != nil {
		return report, err
	}
	if report.Converted == 0 {
		return report, nil
	}

	if _, err := o.RefreshEvaluation(ctx); err != nil && !errors.Is(err, ErrNoData) {
		o.logger.Warn().Str("run_id", report.RunID).Err(err).Msg("Evaluation refresh after run failed")
	}
	return report, nil
}

// Wait blocks until any in-progress run has returned or ctx is done
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.runMu.Lock()
		o.runMu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a pipeline run is in progress
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

func (o *Orchestrator) run(ctx context.Context, report *models.RunReport) error {
	runID := report.RunID

	o.enter(ctx, runID, models.RunStageCheckFreshness)
	meta, err := o.catalog.Meta(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog metadata: %w", err)
	}

	freshness := common.CheckFreshness(meta.LastDiscoveredAt, o.now(), o.freshness)
	if !report.Forced && !freshness.IsStale {
		report.SkippedFresh = true
		o.logger.Info().
			Str("run_id", runID).
			Str("reason", freshness.Reason).
			Msg("Catalog fresh, skipping discovery")
	} else {
		o.discover(ctx, report)
	}

	if ctx.Err() != nil {
		report.Cancelled = true
		return ctx.Err()
	}

	o.enter(ctx, runID, models.RunStageConvertPending)
	return o.convertPending(ctx, report)
}

// discover runs discovery and appends new candidates. Failures are recorded on
// the report and conversion of already-pending records still goes ahead.
func (o *Orchestrator) discover(ctx context.Context, report *models.RunReport) {
	runID := report.RunID

	o.enter(ctx, runID, models.RunStageDiscover)
	candidates, err := o.discoverer.Discover(ctx)
	if err != nil {
		o.logger.Warn().Str("run_id", runID).Err(err).Msg("Discovery failed, converting existing pending reports")
		report.Error = fmt.Sprintf("discovery: %v", err)
		return
	}
	report.Discovered = len(candidates)

	o.enter(ctx, runID, models.RunStageDedupAppend)
	added, err := o.catalog.UpsertIfNew(ctx, candidates)
	if err != nil {
		o.logger.Warn().Str("run_id", runID).Err(err).Msg("Catalog append failed")
		report.Error = fmt.Sprintf("catalog append: %v", err)
		return
	}
	report.Added = added
}

// convertPending converts pending records one at a time in catalog order
func (o *Orchestrator) convertPending(ctx context.Context, report *models.RunReport) error {
	runID := report.RunID

	pending, err := o.catalog.PendingConversion(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending reports: %w", err)
	}
	report.Pending = len(pending)

	for _, record := range pending {
		if ctx.Err() != nil {
			report.Cancelled = true
			o.logger.Info().
				Str("run_id", runID).
				Int("remaining", report.Pending-report.Converted-report.Failed-report.Skipped).
				Msg("Pipeline run cancelled between documents")
			return ctx.Err()
		}

		if !record.Retryable() {
			report.Skipped++
			continue
		}

		// An in-flight document finishes even if the run is cancelled
		result, err := o.converter.Convert(context.WithoutCancel(ctx), record)
		if err == nil && result.Success {
			report.Converted++
			o.publish(ctx, interfaces.EventReportConverted, map[string]interface{}{
				"run_id":           runID,
				"report_id":        record.ID,
				"derived_text_ref": result.DerivedTextRef,
				"pages":            result.PageCount,
				"chunks":           result.ChunkCount,
			})
			continue
		}

		report.Failed++
		failure := models.ConversionFailure{ReportID: record.ID}
		if result != nil {
			failure.Error = result.Error
			failure.Fatal = result.Fatal
		}
		if failure.Error == "" && err != nil {
			failure.Error = err.Error()
		}
		report.Failures = append(report.Failures, failure)

		if failure.Fatal {
			if markErr := o.catalog.MarkFailed(ctx, record.ID, failure.Error); markErr != nil {
				o.logger.Warn().Str("report_id", record.ID).Err(markErr).Msg("Failed to mark report as not retryable")
			}
		}

		o.publish(ctx, interfaces.EventReportConversionFailed, map[string]interface{}{
			"run_id":    runID,
			"report_id": record.ID,
			"error":     failure.Error,
			"fatal":     failure.Fatal,
		})
	}

	return nil
}

// RefreshEvaluation re-evaluates the most recent converted reports and replaces the stored artifact
func (o *Orchestrator) RefreshEvaluation(ctx context.Context) (*models.EvaluationArtifact, error) {
	o.evalMu.Lock()
	defer o.evalMu.Unlock()
	return o.refreshEvaluation(ctx)
}

func (o *Orchestrator) refreshEvaluation(ctx context.Context) (*models.EvaluationArtifact, error) {
	records, err := o.catalog.Converted(ctx, o.config.EvaluationSampleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list converted reports: %w", err)
	}

	artifact, err := o.evaluator.Run(ctx, records)
	if errors.Is(err, evaluator.ErrNothingToEvaluate) {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, err
	}

	o.publish(ctx, interfaces.EventEvaluationCompleted, map[string]interface{}{
		"run_id":      artifact.RunID,
		"evaluations": len(artifact.Evaluations),
		"documents":   artifact.EvaluatedReportCount,
	})
	return artifact, nil
}

// GetEvaluation returns the current evaluation, synthesising one when none exists.
// Neutral and low-confidence entries are removed unless all is set.
func (o *Orchestrator) GetEvaluation(ctx context.Context, all bool) (*EvaluationView, error) {
	artifact, err := o.evaluations.GetEvaluation(ctx)
	if errors.Is(err, interfaces.ErrNoEvaluation) {
		artifact, err = o.synthesizeEvaluation(ctx)
	}
	if err != nil {
		return nil, err
	}

	view := &EvaluationView{
		RunID:                artifact.RunID,
		EvaluatedAt:          artifact.EvaluatedAt,
		EvaluatedReportCount: artifact.EvaluatedReportCount,
		TotalEvaluations:     len(artifact.Evaluations),
		MinConfidence:        o.config.ConfidenceThreshold,
		Filtered:             !all,
		Evaluations:          artifact.Evaluations,
	}
	if !all {
		view.Evaluations = models.FilterForConsumers(artifact.Evaluations, o.config.ConfidenceThreshold)
	}
	return view, nil
}

// synthesizeEvaluation builds the first artifact; concurrent callers wait for one run
func (o *Orchestrator) synthesizeEvaluation(ctx context.Context) (*models.EvaluationArtifact, error) {
	o.evalMu.Lock()
	defer o.evalMu.Unlock()

	artifact, err := o.evaluations.GetEvaluation(ctx)
	if err == nil {
		return artifact, nil
	}
	if !errors.Is(err, interfaces.ErrNoEvaluation) {
		return nil, err
	}

	o.logger.Info().Msg("No evaluation stored, evaluating recent reports")
	return o.refreshEvaluation(ctx)
}
