package converter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"golang.org/x/sync/errgroup"
)

// ConversionMarker records a successful conversion against the catalog
type ConversionMarker interface {
	MarkConverted(ctx context.Context, id string, derivedTextRef string) error
}

// Options are the page budget tunables for conversion
type Options struct {
	ChunkSize          int
	TailMergeThreshold int
	MaxParallelChunks  int
}

// OptionsFromConfig maps converter configuration onto Options
func OptionsFromConfig(config *common.ConverterConfig) Options {
	return Options{
		ChunkSize:          config.ChunkSize,
		TailMergeThreshold: config.TailMergeThreshold,
		MaxParallelChunks:  config.MaxParallelChunks,
	}
}

// Converter turns one source report into one derived text using map-reduce summarisation
type Converter struct {
	fetcher    interfaces.DocumentFetcher
	summarizer interfaces.Summarizer
	texts      interfaces.DerivedTextStorage
	marker     ConversionMarker
	options    Options
	logger     arbor.ILogger
}

// NewConverter creates a new chunked converter
func NewConverter(
	fetcher interfaces.DocumentFetcher,
	summarizer interfaces.Summarizer,
	texts interfaces.DerivedTextStorage,
	marker ConversionMarker,
	options Options,
	logger arbor.ILogger,
) *Converter {
	if options.MaxParallelChunks <= 0 {
		options.MaxParallelChunks = 1
	}
	return &Converter{
		fetcher:    fetcher,
		summarizer: summarizer,
		texts:      texts,
		marker:     marker,
		options:    options,
		logger:     logger,
	}
}

// Convert fetches, chunks, summarises and persists one report. The returned
// result is never nil; on failure the report is left unconverted and err is set.
func (c *Converter) Convert(ctx context.Context, record models.ReportRecord) (*models.ConversionResult, error) {
	start := time.Now()
	result := &models.ConversionResult{ReportID: record.ID}

	fail := func(err error) (*models.ConversionResult, error) {
		result.Success = false
		result.Error = err.Error()
		result.Fatal = errors.Is(err, ErrNoPages)
		result.Duration = time.Since(start)
		c.logger.Warn().
			Str("report_id", record.ID).
			Str("title", record.Title).
			Bool("fatal", result.Fatal).
			Err(err).
			Msg("Report conversion failed")
		return result, err
	}

	doc, err := c.fetcher.Fetch(ctx, record.DownloadURL)
	if err != nil {
		return fail(fmt.Errorf("fetch: %w", err))
	}
	result.PageCount = doc.PageCount

	chunks, err := PlanChunks(doc.PageCount, c.options.ChunkSize, c.options.TailMergeThreshold)
	if err != nil {
		return fail(err)
	}
	result.ChunkCount = len(chunks)

	c.logger.Debug().
		Str("report_id", record.ID).
		Int("pages", doc.PageCount).
		Int("chunks", len(chunks)).
		Msg("Converting report")

	partials, err := c.summarizeChunks(ctx, record, doc, chunks)
	if err != nil {
		return fail(err)
	}

	content, err := c.reduce(ctx, partials)
	if err != nil {
		return fail(err)
	}

	ref, err := c.persist(ctx, record, content, result)
	if err != nil {
		return fail(err)
	}

	result.Success = true
	result.DerivedTextRef = ref
	result.Duration = time.Since(start)

	c.logger.Info().
		Str("report_id", record.ID).
		Str("derived_text_ref", ref).
		Int("pages", result.PageCount).
		Int("chunks", result.ChunkCount).
		Dur("duration", result.Duration).
		Msg("Report converted")

	return result, nil
}

// summarizeChunks runs the map phase on a bounded pool. Partials are stored by
// chunk index so the reduce step sees document order regardless of completion order.
func (c *Converter) summarizeChunks(ctx context.Context, record models.ReportRecord, doc *interfaces.FetchedDocument, chunks []Chunk) ([]string, error) {
	partials := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.options.MaxParallelChunks)

	for _, chunk := range chunks {
		g.Go(func() error {
			data := doc.Data
			if len(chunks) > 1 {
				sliced, err := c.fetcher.Slice(gctx, doc.Data, chunk.Start, chunk.End)
				if err != nil {
					return fmt.Errorf("slice chunk %d: %w", chunk.Index, err)
				}
				data = sliced
			}

			summary, err := c.summarizer.SummarizeChunk(gctx, interfaces.ChunkContext{
				Index:      chunk.Index,
				StartPage:  chunk.Start + 1,
				EndPage:    chunk.End,
				TotalPages: doc.PageCount,
				Title:      record.Title,
			}, &interfaces.Attachment{
				Data:     data,
				MIMEType: doc.MIMEType,
				Name:     fmt.Sprintf("%s-p%d-%d.pdf", record.ID, chunk.Start+1, chunk.End),
			})
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			if strings.TrimSpace(summary) == "" {
				return fmt.Errorf("chunk %d: empty summary", chunk.Index)
			}

			partials[chunk.Index] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return partials, nil
}

// reduce returns a single partial verbatim, otherwise merges them in order
func (c *Converter) reduce(ctx context.Context, partials []string) (string, error) {
	if len(partials) == 1 {
		return partials[0], nil
	}

	merged, err := c.summarizer.MergeSummaries(ctx, partials)
	if err != nil {
		return "", fmt.Errorf("merge: %w", err)
	}
	if strings.TrimSpace(merged) == "" {
		return "", fmt.Errorf("merge: empty result")
	}
	return merged, nil
}

// persist writes the derived text and marks the catalog entry converted
func (c *Converter) persist(ctx context.Context, record models.ReportRecord, content string, result *models.ConversionResult) (string, error) {
	text := &models.DerivedText{
		Ref:        common.NewDerivedTextRef(),
		ReportID:   record.ID,
		Content:    content,
		PageCount:  result.PageCount,
		ChunkCount: result.ChunkCount,
		CreatedAt:  time.Now(),
	}

	err := c.texts.SaveDerivedText(ctx, text)
	if errors.Is(err, interfaces.ErrDerivedTextExists) {
		// Text was saved by an earlier run that stopped before marking the catalog
		existing, getErr := c.texts.GetDerivedTextByReport(ctx, record.ID)
		if getErr != nil {
			return "", fmt.Errorf("load existing derived text: %w", getErr)
		}
		c.logger.Warn().
			Str("report_id", record.ID).
			Str("derived_text_ref", existing.Ref).
			Msg("Derived text already stored, reusing it")
		text = existing
	} else if err != nil {
		return "", fmt.Errorf("save derived text: %w", err)
	}

	if err := c.marker.MarkConverted(ctx, record.ID, text.Ref); err != nil {
		return "", fmt.Errorf("mark converted: %w", err)
	}
	return text.Ref, nil
}
