package badger

import (
	"context"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DerivedTextStorage implements the DerivedTextStorage interface for Badger
type DerivedTextStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDerivedTextStorage creates a new DerivedTextStorage instance
func NewDerivedTextStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DerivedTextStorage {
	return &DerivedTextStorage{
		db:     db,
		logger: logger,
	}
}

// SaveDerivedText writes derived text for a report. Writing twice for the same report fails.
func (s *DerivedTextStorage) SaveDerivedText(ctx context.Context, text *models.DerivedText) error {
	if text.Ref == "" || text.ReportID == "" {
		return fmt.Errorf("derived text requires ref and report id")
	}

	return s.db.Update(func(tx *badgerdb.Txn) error {
		var existing []models.DerivedText
		if err := s.db.Store().TxFind(tx, &existing, badgerhold.Where("ReportID").Eq(text.ReportID)); err != nil {
			return fmt.Errorf("failed to check existing derived text: %w", err)
		}
		if len(existing) > 0 {
			return fmt.Errorf("report %s: %w", text.ReportID, interfaces.ErrDerivedTextExists)
		}

		if err := s.db.Store().TxInsert(tx, text.Ref, text); err != nil {
			return fmt.Errorf("failed to save derived text: %w", err)
		}
		return nil
	})
}

// GetDerivedText retrieves derived text by reference
func (s *DerivedTextStorage) GetDerivedText(ctx context.Context, ref string) (*models.DerivedText, error) {
	var text models.DerivedText
	err := s.db.Store().Get(ref, &text)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrDerivedTextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get derived text: %w", err)
	}
	return &text, nil
}

// GetDerivedTextByReport retrieves derived text by report id
func (s *DerivedTextStorage) GetDerivedTextByReport(ctx context.Context, reportID string) (*models.DerivedText, error) {
	var texts []models.DerivedText
	if err := s.db.Store().Find(&texts, badgerhold.Where("ReportID").Eq(reportID).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to find derived text: %w", err)
	}
	if len(texts) == 0 {
		return nil, interfaces.ErrDerivedTextNotFound
	}
	return &texts[0], nil
}
