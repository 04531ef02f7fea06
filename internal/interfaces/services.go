package interfaces

import (
	"context"

	"github.com/ternarybob/sectorscope/internal/models"
)

// ChunkContext positions a chunk within its source document
type ChunkContext struct {
	Index      int
	StartPage  int // one-based, inclusive
	EndPage    int // one-based, inclusive
	TotalPages int
	Title      string
}

// Summarizer drives the map and reduce steps of document conversion
type Summarizer interface {
	SummarizeChunk(ctx context.Context, chunk ChunkContext, document *Attachment) (string, error)
	MergeSummaries(ctx context.Context, partials []string) (string, error)
}

// ClassifyInput is one document offered for industry classification
type ClassifyInput struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

// Classification is the set of industry labels assigned to one document
type Classification struct {
	ID         string   `json:"id"`
	Industries []string `json:"industries"`
}

// IndustryClassifier labels documents with industries. The raw result may contain
// labels outside the vocabulary; callers filter them.
type IndustryClassifier interface {
	Classify(ctx context.Context, docs []ClassifyInput, vocabulary []string) ([]Classification, error)
}

// IndustryAssessor performs the two evaluation passes
type IndustryAssessor interface {
	Evaluate(ctx context.Context, industry string, texts []string) (*models.UnscoredEvaluation, error)
	Score(ctx context.Context, evaluation *models.UnscoredEvaluation, excerpts []string) (float64, error)
}

// KeywordExtractor summarises a set of documents into highlighted keywords
type KeywordExtractor interface {
	ExtractKeywords(ctx context.Context, texts []string) ([]models.Keyword, error)
}

// ReportDiscoverer finds candidate reports on the source listing
type ReportDiscoverer interface {
	Discover(ctx context.Context) ([]models.ReportRecord, error)
}
