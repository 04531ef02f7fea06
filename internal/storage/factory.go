package storage

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/storage/badger"
)

// NewStorageManager creates the Badger-backed storage manager from config
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	return badger.NewManager(logger, &config.Storage.Badger)
}
