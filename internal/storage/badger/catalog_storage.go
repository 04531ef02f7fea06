package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CatalogStorage implements the CatalogStorage interface for Badger
type CatalogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewCatalogStorage creates a new CatalogStorage instance
func NewCatalogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CatalogStorage {
	return &CatalogStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// txGetMeta loads the catalog metadata, returning a zero value if none has been written
func (s *CatalogStorage) txGetMeta(tx *badgerdb.Txn) (*models.CatalogMeta, error) {
	var meta models.CatalogMeta
	err := s.db.Store().TxGet(tx, models.CatalogMetaKey, &meta)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return &models.CatalogMeta{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog metadata: %w", err)
	}
	return &meta, nil
}

// AppendIfNew appends candidates not already present, in order, within one transaction
func (s *CatalogStorage) AppendIfNew(ctx context.Context, candidates []models.ReportRecord) (int, error) {
	added := 0
	skippedBlank := 0
	now := s.now()

	err := s.db.Update(func(tx *badgerdb.Txn) error {
		added = 0
		skippedBlank = 0
		meta, err := s.txGetMeta(tx)
		if err != nil {
			return err
		}

		seen := make(map[string]struct{}, len(candidates))
		for _, candidate := range candidates {
			if candidate.ID == "" {
				skippedBlank++
				continue
			}
			if _, dup := seen[candidate.ID]; dup {
				continue
			}
			seen[candidate.ID] = struct{}{}

			var existing models.ReportRecord
			err := s.db.Store().TxGet(tx, candidate.ID, &existing)
			if err == nil {
				continue
			}
			if !errors.Is(err, badgerhold.ErrNotFound) {
				return fmt.Errorf("failed to check report %s: %w", candidate.ID, err)
			}

			record := candidate
			record.DerivedTextRef = ""
			record.ConversionFailed = false
			record.LastError = ""
			record.ConvertedAt = nil
			record.Seq = meta.NextSeq
			record.DiscoveredAt = now
			meta.NextSeq++

			if err := s.db.Store().TxInsert(tx, record.ID, &record); err != nil {
				return fmt.Errorf("failed to insert report %s: %w", record.ID, err)
			}
			added++
		}

		meta.LastDiscoveredAt = now
		meta.RecordCount += added
		return s.db.Store().TxUpsert(tx, models.CatalogMetaKey, meta)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append reports: %w", err)
	}

	if skippedBlank > 0 {
		s.logger.Warn().Int("count", skippedBlank).Msg("Skipped candidate reports without an id")
	}

	s.logger.Debug().
		Int("candidates", len(candidates)).
		Int("added", added).
		Msg("Catalog append completed")

	return added, nil
}

// GetReport retrieves a report by id
func (s *CatalogStorage) GetReport(ctx context.Context, id string) (*models.ReportRecord, error) {
	var record models.ReportRecord
	err := s.db.Store().Get(id, &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &record, nil
}

// GetReportByTitle retrieves the earliest-inserted report with an exactly matching title
func (s *CatalogStorage) GetReportByTitle(ctx context.Context, title string) (*models.ReportRecord, error) {
	var records []models.ReportRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Title").Eq(title)); err != nil {
		return nil, fmt.Errorf("failed to find report by title: %w", err)
	}
	if len(records) == 0 {
		return nil, interfaces.ErrReportNotFound
	}

	sortBySeq(records)
	return &records[0], nil
}

// ListReports returns every report in insertion order
func (s *CatalogStorage) ListReports(ctx context.Context) ([]models.ReportRecord, error) {
	var records []models.ReportRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	sortBySeq(records)
	return records, nil
}

// SetDerivedTextRef sets the derived text reference once.
// Returns false with no error when the report already had a reference.
func (s *CatalogStorage) SetDerivedTextRef(ctx context.Context, id string, ref string) (bool, error) {
	updated := false
	now := s.now()

	err := s.db.Update(func(tx *badgerdb.Txn) error {
		updated = false
		var record models.ReportRecord
		err := s.db.Store().TxGet(tx, id, &record)
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.ErrReportNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get report %s: %w", id, err)
		}

		if record.DerivedTextRef != "" {
			return nil
		}

		record.DerivedTextRef = ref
		record.LastError = ""
		record.ConvertedAt = &now
		if err := s.db.Store().TxUpsert(tx, id, &record); err != nil {
			return fmt.Errorf("failed to update report %s: %w", id, err)
		}

		meta, err := s.txGetMeta(tx)
		if err != nil {
			return err
		}
		meta.LastConvertedAt = now
		if err := s.db.Store().TxUpsert(tx, models.CatalogMetaKey, meta); err != nil {
			return fmt.Errorf("failed to update catalog metadata: %w", err)
		}

		updated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

// MarkConversionFailed flags a pending report as not retryable
func (s *CatalogStorage) MarkConversionFailed(ctx context.Context, id string, reason string) error {
	return s.db.Update(func(tx *badgerdb.Txn) error {
		var record models.ReportRecord
		err := s.db.Store().TxGet(tx, id, &record)
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.ErrReportNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get report %s: %w", id, err)
		}
		if record.DerivedTextRef != "" {
			return nil
		}

		record.ConversionFailed = true
		record.LastError = reason
		return s.db.Store().TxUpsert(tx, id, &record)
	})
}

// GetMeta returns the catalog metadata
func (s *CatalogStorage) GetMeta(ctx context.Context) (*models.CatalogMeta, error) {
	var meta *models.CatalogMeta
	err := s.db.View(func(tx *badgerdb.Txn) error {
		var err error
		meta, err = s.txGetMeta(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func sortBySeq(records []models.ReportRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Seq < records[j].Seq
	})
}
