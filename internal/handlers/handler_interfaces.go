package handlers

import (
	"context"

	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/keywords"
	"github.com/ternarybob/sectorscope/internal/services/pipeline"
)

// ReportCatalog defines the catalog reads served over HTTP.
type ReportCatalog interface {
	List(ctx context.Context, offset, limit int) ([]models.ReportRecord, int, error)
	Resolve(ctx context.Context, key string) (*models.ReportRecord, error)
}

// MarkdownRenderer exports Markdown as a PDF document.
type MarkdownRenderer interface {
	RenderMarkdown(markdown, title string) ([]byte, error)
}

// KeywordSummarizer defines the interface for the cache-aware keyword summary.
type KeywordSummarizer interface {
	Summary(ctx context.Context, limit int) (*keywords.Summary, error)
}

// EvaluationSource defines the interface for reading and refreshing industry evaluations.
type EvaluationSource interface {
	GetEvaluation(ctx context.Context, all bool) (*pipeline.EvaluationView, error)
	RefreshEvaluation(ctx context.Context) (*models.EvaluationArtifact, error)
}

// PipelineRunner defines the interface for triggering pipeline runs.
type PipelineRunner interface {
	Cycle(ctx context.Context, force bool) (*models.RunReport, error)
	Running() bool
}
