// Package cache provides the keyword summary cache.
// A lookup hits only when every requested report is already covered by the stored entry.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
)

// Lookup is the result of a cache read
type Lookup struct {
	Hit       bool
	Keywords  []models.Keyword
	UpdatedAt time.Time
}

// Service provides containment-based keyword cache lookups.
type Service struct {
	storage interfaces.KeywordCacheStorage
	logger  arbor.ILogger
	now     func() time.Time
}

// NewService creates a new cache service.
func NewService(storage interfaces.KeywordCacheStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the cached keywords when every requested report is covered.
// An empty cache or a partial overlap is a miss.
func (s *Service) Get(ctx context.Context, requested []models.ReportRecord) (*Lookup, error) {
	entry, err := s.storage.GetKeywordCache(ctx)
	if errors.Is(err, interfaces.ErrCacheEmpty) {
		s.logger.Debug().Int("requested", len(requested)).Msg("Keyword cache empty")
		return &Lookup{Hit: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyword cache: %w", err)
	}

	ids := make([]string, 0, len(requested))
	for _, r := range requested {
		ids = append(ids, r.ID)
	}

	if !entry.Covers(ids) {
		s.logger.Debug().
			Int("requested", len(ids)).
			Int("covered", len(entry.CoveredFileIDs)).
			Msg("Keyword cache miss - requested reports not covered")
		return &Lookup{Hit: false}, nil
	}

	s.logger.Debug().
		Int("requested", len(ids)).
		Str("updated_at", entry.UpdatedAt.Format("2006-01-02 15:04")).
		Msg("Keyword cache hit")

	return &Lookup{
		Hit:       true,
		Keywords:  entry.Keywords,
		UpdatedAt: entry.UpdatedAt,
	}, nil
}

// Save replaces the cached keywords and adds files to the covered set
func (s *Service) Save(ctx context.Context, keywords []models.Keyword, files []models.ReportRecord) (*models.KeywordCacheEntry, error) {
	metas := make([]models.FileMeta, 0, len(files))
	for _, f := range files {
		metas = append(metas, models.FileMetaFromRecord(f))
	}

	now := s.now()
	entry, err := s.storage.UpdateKeywordCache(ctx, func(entry *models.KeywordCacheEntry) error {
		entry.Merge(keywords, metas, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save keyword cache: %w", err)
	}

	s.logger.Info().
		Int("keywords", len(keywords)).
		Int("files", len(files)).
		Int("covered", len(entry.CoveredFileIDs)).
		Msg("Keyword cache updated")

	return entry, nil
}
