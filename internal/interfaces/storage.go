package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/sectorscope/internal/models"
)

var (
	// ErrReportNotFound is returned when no report matches an id or title
	ErrReportNotFound = errors.New("report not found")
	// ErrDerivedTextNotFound is returned when a report has no derived text
	ErrDerivedTextNotFound = errors.New("derived text not found")
	// ErrDerivedTextExists is returned when derived text is written twice for one report
	ErrDerivedTextExists = errors.New("derived text already exists")
	// ErrCacheEmpty is returned when no keyword cache entry has been saved yet
	ErrCacheEmpty = errors.New("keyword cache empty")
	// ErrNoEvaluation is returned when no evaluation artifact has been persisted
	ErrNoEvaluation = errors.New("no evaluation available")
)

// CatalogStorage persists report records and catalog metadata.
// Every mutating call is a single atomic transaction.
type CatalogStorage interface {
	// AppendIfNew appends every candidate whose ID is not yet stored, in order,
	// stamps LastDiscoveredAt and returns the number added.
	AppendIfNew(ctx context.Context, candidates []models.ReportRecord) (int, error)
	GetReport(ctx context.Context, id string) (*models.ReportRecord, error)
	GetReportByTitle(ctx context.Context, title string) (*models.ReportRecord, error)
	// ListReports returns all records in insertion order
	ListReports(ctx context.Context) ([]models.ReportRecord, error)
	// SetDerivedTextRef sets the ref once and stamps LastConvertedAt.
	// Returns ErrReportNotFound for unknown ids.
	SetDerivedTextRef(ctx context.Context, id string, ref string) (bool, error)
	// MarkConversionFailed records a non-retryable failure on a pending record
	MarkConversionFailed(ctx context.Context, id string, reason string) error
	GetMeta(ctx context.Context) (*models.CatalogMeta, error)
}

// DerivedTextStorage persists converter output, one per report
type DerivedTextStorage interface {
	SaveDerivedText(ctx context.Context, text *models.DerivedText) error
	GetDerivedText(ctx context.Context, ref string) (*models.DerivedText, error)
	GetDerivedTextByReport(ctx context.Context, reportID string) (*models.DerivedText, error)
}

// KeywordCacheStorage persists the single keyword cache entry
type KeywordCacheStorage interface {
	GetKeywordCache(ctx context.Context) (*models.KeywordCacheEntry, error)
	// UpdateKeywordCache applies fn to the current entry (empty if none) inside one transaction
	UpdateKeywordCache(ctx context.Context, fn func(entry *models.KeywordCacheEntry) error) (*models.KeywordCacheEntry, error)
}

// EvaluationStorage persists the current evaluation artifact
type EvaluationStorage interface {
	// SaveEvaluation replaces the stored artifact wholesale
	SaveEvaluation(ctx context.Context, artifact *models.EvaluationArtifact) error
	GetEvaluation(ctx context.Context) (*models.EvaluationArtifact, error)
}

// StorageManager aggregates the durable stores
type StorageManager interface {
	CatalogStorage() CatalogStorage
	DerivedTextStorage() DerivedTextStorage
	KeywordCacheStorage() KeywordCacheStorage
	EvaluationStorage() EvaluationStorage
	Close() error
}
