package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// EvaluationStorage implements the EvaluationStorage interface for Badger
type EvaluationStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewEvaluationStorage creates a new EvaluationStorage instance
func NewEvaluationStorage(db *BadgerDB, logger arbor.ILogger) interfaces.EvaluationStorage {
	return &EvaluationStorage{
		db:     db,
		logger: logger,
	}
}

// SaveEvaluation replaces the current artifact
func (s *EvaluationStorage) SaveEvaluation(ctx context.Context, artifact *models.EvaluationArtifact) error {
	if err := artifact.Validate(); err != nil {
		return fmt.Errorf("refusing to persist evaluation: %w", err)
	}

	s.db.writeMu.Lock()
	defer s.db.writeMu.Unlock()

	if err := s.db.Store().Upsert(models.EvaluationArtifactKey, artifact); err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}

	s.logger.Debug().
		Str("run_id", artifact.RunID).
		Int("evaluations", len(artifact.Evaluations)).
		Msg("Evaluation artifact saved")

	return nil
}

// GetEvaluation returns the current artifact or ErrNoEvaluation
func (s *EvaluationStorage) GetEvaluation(ctx context.Context) (*models.EvaluationArtifact, error) {
	var artifact models.EvaluationArtifact
	err := s.db.Store().Get(models.EvaluationArtifactKey, &artifact)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNoEvaluation
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return &artifact, nil
}
