package evaluator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/classifier"
	"github.com/ternarybob/sectorscope/internal/storage/badger"
)

type labelBackend struct {
	labels map[string][]string
}

func (b *labelBackend) Classify(ctx context.Context, docs []interfaces.ClassifyInput, vocabulary []string) ([]interfaces.Classification, error) {
	out := make([]interfaces.Classification, 0, len(docs))
	for _, d := range docs {
		out = append(out, interfaces.Classification{ID: d.ID, Industries: b.labels[d.ID]})
	}
	return out, nil
}

type fakeAssessor struct {
	failEvaluate map[string]bool
	scores       map[string]float64
	scoreErr     map[string]bool
	evaluated    map[string][]string
}

func (a *fakeAssessor) Evaluate(ctx context.Context, industry string, texts []string) (*models.UnscoredEvaluation, error) {
	if a.evaluated == nil {
		a.evaluated = make(map[string][]string)
	}
	a.evaluated[industry] = texts
	if a.failEvaluate[industry] {
		return nil, errors.New("generation failed")
	}
	sentiment := models.SentimentPositive
	if strings.HasPrefix(industry, "E") {
		sentiment = models.SentimentNeutral
	}
	return &models.UnscoredEvaluation{
		IndustryName: industry,
		Sentiment:    sentiment,
		Summary:      industry + " summary",
		KeyDrivers:   []string{"driver"},
		KeyRisks:     []string{"risk"},
	}, nil
}

func (a *fakeAssessor) Score(ctx context.Context, evaluation *models.UnscoredEvaluation, excerpts []string) (float64, error) {
	if a.scoreErr[evaluation.IndustryName] {
		return 0, errors.New("timeout")
	}
	if s, ok := a.scores[evaluation.IndustryName]; ok {
		return s, nil
	}
	return 0.9, nil
}

type fixture struct {
	evaluator *Evaluator
	assessor  *fakeAssessor
	storage   interfaces.EvaluationStorage
	records   []models.ReportRecord
}

func newFixture(t *testing.T, labels map[string][]string) *fixture {
	t.Helper()
	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	records := []models.ReportRecord{
		{ID: "a", Title: "Banks", DerivedTextRef: "dt_a"},
		{ID: "b", Title: "Miners", DerivedTextRef: "dt_b"},
		{ID: "c", Title: "Pending"},
	}
	ctx := context.Background()
	for _, r := range records[:2] {
		require.NoError(t, manager.DerivedTextStorage().SaveDerivedText(ctx, &models.DerivedText{
			Ref: r.DerivedTextRef, ReportID: r.ID, Content: "text " + r.ID, CreatedAt: time.Now(),
		}))
	}

	vocab := models.NewVocabulary([]string{"Banking", "Mining", "Energy"})
	assessor := &fakeAssessor{}
	evaluator := NewEvaluator(
		classifier.NewClassifier(&labelBackend{labels: labels}, vocab, logger),
		assessor,
		manager.DerivedTextStorage(),
		manager.EvaluationStorage(),
		0,
		logger,
	)
	return &fixture{evaluator: evaluator, assessor: assessor, storage: manager.EvaluationStorage(), records: records}
}

func TestRun_ProducesScoredArtifact(t *testing.T) {
	f := newFixture(t, map[string][]string{
		"a": {"Banking", "Energy"},
		"b": {"Mining", "Banking"},
	})
	f.assessor.scores = map[string]float64{"Mining": 0.4}

	artifact, err := f.evaluator.Run(context.Background(), f.records)
	require.NoError(t, err)

	assert.Equal(t, 2, artifact.EvaluatedReportCount)
	require.Len(t, artifact.Evaluations, 3)
	assert.Equal(t, "Banking", artifact.Evaluations[0].IndustryName)
	assert.Equal(t, []string{"a", "b"}, artifact.Evaluations[0].ReferencedReportIDs)
	assert.Equal(t, []string{"text a", "text b"}, f.assessor.evaluated["Banking"])
	assert.Equal(t, StageDone, f.evaluator.Stage())

	stored, err := f.storage.GetEvaluation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, artifact.RunID, stored.RunID)
	assert.Len(t, stored.Evaluations, 3, "stored artifact keeps neutral and low-confidence entries")

	filtered := models.FilterForConsumers(stored.Evaluations, 0.6)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Banking", filtered[0].IndustryName)
}

func TestRun_ScoreFailureFallsBackToDefault(t *testing.T) {
	f := newFixture(t, map[string][]string{"a": {"Banking"}})
	f.assessor.scoreErr = map[string]bool{"Banking": true}

	artifact, err := f.evaluator.Run(context.Background(), f.records)
	require.NoError(t, err)
	require.Len(t, artifact.Evaluations, 1)
	assert.Equal(t, models.DefaultConfidence, artifact.Evaluations[0].Confidence)
}

func TestRun_OutOfRangeScoreFallsBackToDefault(t *testing.T) {
	f := newFixture(t, map[string][]string{"a": {"Banking"}})
	f.assessor.scores = map[string]float64{"Banking": 1.7}

	artifact, err := f.evaluator.Run(context.Background(), f.records)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultConfidence, artifact.Evaluations[0].Confidence)
}

func TestRun_EvaluationFailureSkipsIndustry(t *testing.T) {
	f := newFixture(t, map[string][]string{"a": {"Banking"}, "b": {"Mining"}})
	f.assessor.failEvaluate = map[string]bool{"Mining": true}

	artifact, err := f.evaluator.Run(context.Background(), f.records)
	require.NoError(t, err)
	require.Len(t, artifact.Evaluations, 1)
	assert.Equal(t, "Banking", artifact.Evaluations[0].IndustryName)
}

func TestRun_NothingToEvaluate(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.evaluator.Run(context.Background(), []models.ReportRecord{{ID: "c"}})
	assert.ErrorIs(t, err, ErrNothingToEvaluate)

	_, err = f.storage.GetEvaluation(context.Background())
	assert.ErrorIs(t, err, interfaces.ErrNoEvaluation)
}

func TestExcerpt_RespectsRuneBoundary(t *testing.T) {
	assert.Equal(t, "abc", excerpt("abc", 10))
	assert.Equal(t, "ab", excerpt("abcdef", 2))
	assert.Equal(t, "a", excerpt("aé", 2))
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "classify", StageClassify.String())
	assert.Equal(t, "persist", StagePersist.String())
	assert.Equal(t, "unknown", Stage(99).String())
}

func TestRun_AllEvaluationsFailedKeepsPreviousArtifact(t *testing.T) {
	f := newFixture(t, map[string][]string{"a": {"Banking"}, "b": {"Mining"}})
	ctx := context.Background()

	previous, err := f.evaluator.Run(ctx, f.records)
	require.NoError(t, err)
	require.Len(t, previous.Evaluations, 2)

	f.assessor.failEvaluate = map[string]bool{"Banking": true, "Mining": true}
	artifact, err := f.evaluator.Run(ctx, f.records)
	assert.ErrorIs(t, err, ErrAllEvaluationsFailed)
	assert.Nil(t, artifact)
	assert.Equal(t, StageDone, f.evaluator.Stage())

	stored, err := f.storage.GetEvaluation(ctx)
	require.NoError(t, err)
	assert.Equal(t, previous.RunID, stored.RunID)
	assert.Len(t, stored.Evaluations, 2)
}
