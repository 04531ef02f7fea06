package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db          *BadgerDB
	catalog     interfaces.CatalogStorage
	derivedText interfaces.DerivedTextStorage
	keywords    interfaces.KeywordCacheStorage
	evaluation  interfaces.EvaluationStorage
	logger      arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManager(db, logger)
	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:          db,
		catalog:     NewCatalogStorage(db, logger),
		derivedText: NewDerivedTextStorage(db, logger),
		keywords:    NewKeywordCacheStorage(db, logger),
		evaluation:  NewEvaluationStorage(db, logger),
		logger:      logger,
	}
}

// CatalogStorage returns the Catalog storage interface
func (m *Manager) CatalogStorage() interfaces.CatalogStorage {
	return m.catalog
}

// DerivedTextStorage returns the DerivedText storage interface
func (m *Manager) DerivedTextStorage() interfaces.DerivedTextStorage {
	return m.derivedText
}

// KeywordCacheStorage returns the KeywordCache storage interface
func (m *Manager) KeywordCacheStorage() interfaces.KeywordCacheStorage {
	return m.keywords
}

// EvaluationStorage returns the Evaluation storage interface
func (m *Manager) EvaluationStorage() interfaces.EvaluationStorage {
	return m.evaluation
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
