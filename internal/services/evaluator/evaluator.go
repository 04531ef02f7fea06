// Package evaluator produces per-industry sentiment evaluations from converted reports.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/classifier"
)

// ErrNothingToEvaluate is returned when none of the given reports has derived text
var ErrNothingToEvaluate = errors.New("no derived text to evaluate")

// ErrAllEvaluationsFailed is returned when industries were found but none could be evaluated.
// The previously stored artifact is left in place.
var ErrAllEvaluationsFailed = errors.New("every industry evaluation failed")

// DefaultExcerptLength bounds the excerpt used for classification and scoring
const DefaultExcerptLength = 4000

// Evaluator runs Classify, Group, Evaluate, Score and Persist over a set of reports
type Evaluator struct {
	classifier    *classifier.Classifier
	assessor      interfaces.IndustryAssessor
	texts         interfaces.DerivedTextStorage
	storage       interfaces.EvaluationStorage
	excerptLength int
	tracker       *stageTracker
	logger        arbor.ILogger
}

// NewEvaluator creates a new industry evaluator
func NewEvaluator(
	classifier *classifier.Classifier,
	assessor interfaces.IndustryAssessor,
	texts interfaces.DerivedTextStorage,
	storage interfaces.EvaluationStorage,
	excerptLength int,
	logger arbor.ILogger,
) *Evaluator {
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}
	return &Evaluator{
		classifier:    classifier,
		assessor:      assessor,
		texts:         texts,
		storage:       storage,
		excerptLength: excerptLength,
		tracker:       &stageTracker{logger: logger},
		logger:        logger,
	}
}

// Stage returns the stage of the current or most recent run
func (e *Evaluator) Stage() Stage {
	return e.tracker.stage()
}

// Run evaluates the given converted reports and replaces the stored artifact
func (e *Evaluator) Run(ctx context.Context, records []models.ReportRecord) (*models.EvaluationArtifact, error) {
	runID := common.NewRunID()
	start := time.Now()
	e.tracker.begin(runID)

	docs := e.loadDocuments(ctx, records)
	if len(docs) == 0 {
		e.tracker.advance(StageDone)
		return nil, ErrNothingToEvaluate
	}

	e.logger.Info().
		Str("run_id", runID).
		Int("documents", len(docs)).
		Msg("Starting industry evaluation")

	e.tracker.advance(StageClassify)
	classified, err := e.classifier.Classify(ctx, docs)
	if err != nil {
		e.tracker.advance(StageDone)
		return nil, err
	}

	e.tracker.advance(StageGroup)
	groups := classifier.GroupByIndustry(classified, docs)
	industries := classifier.SortedIndustries(groups)

	e.tracker.advance(StageEvaluate)
	unscored := make([]*models.UnscoredEvaluation, 0, len(industries))
	excerpts := make(map[string][]string, len(industries))
	for _, industry := range industries {
		group := groups[industry]
		evaluation, err := e.assessor.Evaluate(ctx, industry, group.Texts)
		if err != nil {
			e.logger.Warn().
				Str("run_id", runID).
				Str("industry", industry).
				Err(err).
				Msg("Skipping industry, evaluation failed")
			continue
		}
		evaluation.IndustryName = industry
		evaluation.ReferencedReportIDs = group.ReferencedReportIDs
		unscored = append(unscored, evaluation)
		excerpts[industry] = group.Excerpts
	}

	if len(unscored) == 0 && len(industries) > 0 {
		e.tracker.advance(StageDone)
		e.logger.Warn().
			Str("run_id", runID).
			Int("industries", len(industries)).
			Msg("Every industry evaluation failed, keeping previous artifact")
		return nil, ErrAllEvaluationsFailed
	}

	e.tracker.advance(StageScore)
	scored := make([]models.IndustryEvaluation, 0, len(unscored))
	for _, evaluation := range unscored {
		confidence, err := e.assessor.Score(ctx, evaluation, excerpts[evaluation.IndustryName])
		if err != nil {
			e.logger.Warn().
				Str("run_id", runID).
				Str("industry", evaluation.IndustryName).
				Float64("fallback", models.DefaultConfidence).
				Err(err).
				Msg("Confidence scoring failed, using default")
			confidence = models.DefaultConfidence
		}
		scored = append(scored, evaluation.Score(confidence))
	}

	e.tracker.advance(StagePersist)
	artifact := &models.EvaluationArtifact{
		RunID:                runID,
		EvaluatedAt:          time.Now(),
		EvaluatedReportCount: len(docs),
		Evaluations:          scored,
	}
	if err := e.storage.SaveEvaluation(ctx, artifact); err != nil {
		e.tracker.advance(StageDone)
		return nil, fmt.Errorf("failed to persist evaluation: %w", err)
	}

	e.tracker.advance(StageDone)
	e.logger.Info().
		Str("run_id", runID).
		Int("documents", len(docs)).
		Int("industries", len(industries)).
		Int("evaluations", len(scored)).
		Dur("duration", time.Since(start)).
		Msg("Industry evaluation completed")

	return artifact, nil
}

// loadDocuments pairs each report with its derived text; reports without text are skipped
func (e *Evaluator) loadDocuments(ctx context.Context, records []models.ReportRecord) []classifier.Document {
	docs := make([]classifier.Document, 0, len(records))
	for _, r := range records {
		if !r.IsConverted() {
			continue
		}
		text, err := e.texts.GetDerivedText(ctx, r.DerivedTextRef)
		if err != nil {
			e.logger.Warn().
				Str("report_id", r.ID).
				Str("derived_text_ref", r.DerivedTextRef).
				Err(err).
				Msg("Derived text missing for converted report")
			continue
		}
		docs = append(docs, classifier.Document{
			ID:      r.ID,
			Title:   r.Title,
			Text:    text.Content,
			Excerpt: excerpt(text.Content, e.excerptLength),
		})
	}
	return docs
}

// excerpt cuts s to at most n bytes without splitting a UTF-8 sequence
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
