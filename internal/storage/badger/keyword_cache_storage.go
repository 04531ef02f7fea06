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

// KeywordCacheStorage implements the KeywordCacheStorage interface for Badger
type KeywordCacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKeywordCacheStorage creates a new KeywordCacheStorage instance
func NewKeywordCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KeywordCacheStorage {
	return &KeywordCacheStorage{
		db:     db,
		logger: logger,
	}
}

// GetKeywordCache returns the cache entry or ErrCacheEmpty
func (s *KeywordCacheStorage) GetKeywordCache(ctx context.Context) (*models.KeywordCacheEntry, error) {
	var entry models.KeywordCacheEntry
	err := s.db.Store().Get(models.KeywordCacheKey, &entry)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrCacheEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get keyword cache: %w", err)
	}
	return &entry, nil
}

// UpdateKeywordCache applies fn to the current entry and writes it back in one transaction
func (s *KeywordCacheStorage) UpdateKeywordCache(ctx context.Context, fn func(entry *models.KeywordCacheEntry) error) (*models.KeywordCacheEntry, error) {
	var result *models.KeywordCacheEntry

	err := s.db.Update(func(tx *badgerdb.Txn) error {
		entry := &models.KeywordCacheEntry{}
		err := s.db.Store().TxGet(tx, models.KeywordCacheKey, entry)
		if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return fmt.Errorf("failed to read keyword cache: %w", err)
		}

		if err := fn(entry); err != nil {
			return err
		}

		if err := s.db.Store().TxUpsert(tx, models.KeywordCacheKey, entry); err != nil {
			return fmt.Errorf("failed to write keyword cache: %w", err)
		}
		result = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
