// Package keywords produces the highlighted keyword summary for recently converted reports.
package keywords

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/cache"
)

// ErrNoReports is returned when there are no converted reports to summarise
var ErrNoReports = errors.New("no converted reports available")

// DefaultLimit is the number of recent reports summarised when no limit is given
const DefaultLimit = 10

// ReportSource lists converted reports, most recent first
type ReportSource interface {
	Converted(ctx context.Context, limit int) ([]models.ReportRecord, error)
}

// Summary is the keyword summary returned to readers
type Summary struct {
	Keywords  []models.Keyword  `json:"keywords"`
	Files     []models.FileMeta `json:"files"`
	Cached    bool              `json:"cached"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Service serves keyword summaries from cache, extracting on a miss
type Service struct {
	reports   ReportSource
	texts     interfaces.DerivedTextStorage
	extractor interfaces.KeywordExtractor
	cache     *cache.Service
	logger    arbor.ILogger
}

// NewService creates a new keyword summary service
func NewService(
	reports ReportSource,
	texts interfaces.DerivedTextStorage,
	extractor interfaces.KeywordExtractor,
	cache *cache.Service,
	logger arbor.ILogger,
) *Service {
	return &Service{
		reports:   reports,
		texts:     texts,
		extractor: extractor,
		cache:     cache,
		logger:    logger,
	}
}

// Summary returns keywords for the limit most recent converted reports
func (s *Service) Summary(ctx context.Context, limit int) (*Summary, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	records, err := s.reports.Converted(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list converted reports: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoReports
	}

	files := make([]models.FileMeta, 0, len(records))
	for _, r := range records {
		files = append(files, models.FileMetaFromRecord(r))
	}

	lookup, err := s.cache.Get(ctx, records)
	if err != nil {
		return nil, err
	}
	if lookup.Hit {
		return &Summary{
			Keywords:  lookup.Keywords,
			Files:     files,
			Cached:    true,
			UpdatedAt: lookup.UpdatedAt,
		}, nil
	}

	texts := make([]string, 0, len(records))
	used := make([]models.ReportRecord, 0, len(records))
	for _, r := range records {
		text, err := s.texts.GetDerivedText(ctx, r.DerivedTextRef)
		if err != nil {
			s.logger.Warn().
				Str("report_id", r.ID).
				Str("derived_text_ref", r.DerivedTextRef).
				Err(err).
				Msg("Derived text missing for converted report")
			continue
		}
		texts = append(texts, fmt.Sprintf("# %s (%s)\n\n%s", r.Title, r.Date, text.Content))
		used = append(used, r)
	}
	if len(texts) == 0 {
		return nil, ErrNoReports
	}

	keywords, err := s.extractor.ExtractKeywords(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to extract keywords: %w", err)
	}

	// Only reports whose text reached the extractor count as covered
	entry, err := s.cache.Save(ctx, keywords, used)
	if err != nil {
		return nil, err
	}

	return &Summary{
		Keywords:  keywords,
		Files:     files,
		Cached:    false,
		UpdatedAt: entry.UpdatedAt,
	}, nil
}
