// Package catalog owns the list of discovered reports and their conversion status.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
)

// Service wraps catalog storage with the read and write policies used by the pipeline
type Service struct {
	storage interfaces.CatalogStorage
	logger  arbor.ILogger
}

// NewService creates a new catalog service
func NewService(storage interfaces.CatalogStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// UpsertIfNew appends candidates whose id is not yet catalogued and returns how many were added
func (s *Service) UpsertIfNew(ctx context.Context, candidates []models.ReportRecord) (int, error) {
	added, err := s.storage.AppendIfNew(ctx, candidates)
	if err != nil {
		return 0, err
	}
	s.logger.Info().
		Int("candidates", len(candidates)).
		Int("added", added).
		Msg("Catalog updated with discovered reports")
	return added, nil
}

// PendingConversion returns records without derived text, in insertion order
func (s *Service) PendingConversion(ctx context.Context) ([]models.ReportRecord, error) {
	records, err := s.storage.ListReports(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]models.ReportRecord, 0, len(records))
	for _, r := range records {
		if r.IsPending() {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// MarkConverted records the derived text reference for a report.
// Unknown ids and already-converted reports are logged and ignored.
func (s *Service) MarkConverted(ctx context.Context, id string, ref string) error {
	updated, err := s.storage.SetDerivedTextRef(ctx, id, ref)
	if errors.Is(err, interfaces.ErrReportNotFound) {
		s.logger.Warn().Str("report_id", id).Msg("Cannot mark unknown report as converted")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to mark report %s converted: %w", id, err)
	}
	if !updated {
		s.logger.Warn().
			Str("report_id", id).
			Str("derived_text_ref", ref).
			Msg("Report already has derived text, reference left unchanged")
	}
	return nil
}

// MarkFailed flags a report whose source document cannot be converted
func (s *Service) MarkFailed(ctx context.Context, id string, reason string) error {
	err := s.storage.MarkConversionFailed(ctx, id, reason)
	if errors.Is(err, interfaces.ErrReportNotFound) {
		s.logger.Warn().Str("report_id", id).Msg("Cannot mark unknown report as failed")
		return nil
	}
	return err
}

// FindByTitle returns the first report with exactly the given title
func (s *Service) FindByTitle(ctx context.Context, title string) (*models.ReportRecord, error) {
	return s.storage.GetReportByTitle(ctx, title)
}

// Get returns a report by id
func (s *Service) Get(ctx context.Context, id string) (*models.ReportRecord, error) {
	return s.storage.GetReport(ctx, id)
}

// Resolve looks a report up by id first, then by title
func (s *Service) Resolve(ctx context.Context, key string) (*models.ReportRecord, error) {
	record, err := s.storage.GetReport(ctx, key)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, interfaces.ErrReportNotFound) {
		return nil, err
	}
	return s.storage.GetReportByTitle(ctx, key)
}

// List returns a page of reports, most recent first
func (s *Service) List(ctx context.Context, offset, limit int) ([]models.ReportRecord, int, error) {
	records, err := s.storage.ListReports(ctx)
	if err != nil {
		return nil, 0, err
	}
	sortMostRecentFirst(records)

	total := len(records)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []models.ReportRecord{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return records[offset:end], total, nil
}

// Count returns the number of catalogued reports
func (s *Service) Count(ctx context.Context) (int, error) {
	meta, err := s.storage.GetMeta(ctx)
	if err != nil {
		return 0, err
	}
	return meta.RecordCount, nil
}

// Converted returns up to limit converted reports, most recent first. A limit of zero returns all.
func (s *Service) Converted(ctx context.Context, limit int) ([]models.ReportRecord, error) {
	records, err := s.storage.ListReports(ctx)
	if err != nil {
		return nil, err
	}
	sortMostRecentFirst(records)

	converted := make([]models.ReportRecord, 0, len(records))
	for _, r := range records {
		if !r.IsConverted() {
			continue
		}
		converted = append(converted, r)
		if limit > 0 && len(converted) == limit {
			break
		}
	}
	return converted, nil
}

// Meta returns catalog timestamps and counters
func (s *Service) Meta(ctx context.Context) (*models.CatalogMeta, error) {
	return s.storage.GetMeta(ctx)
}

// sortMostRecentFirst orders by report date descending, then by insertion order descending
func sortMostRecentFirst(records []models.ReportRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date > records[j].Date
		}
		return records[i].Seq > records[j].Seq
	})
}
