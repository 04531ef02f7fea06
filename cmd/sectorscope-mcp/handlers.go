package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/handlers"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/services/keywords"
	"github.com/ternarybob/sectorscope/internal/services/pipeline"
)

// EvaluationReader reads the current industry evaluation
type EvaluationReader interface {
	GetEvaluation(ctx context.Context, all bool) (*pipeline.EvaluationView, error)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleListReports implements the list_reports tool
func handleListReports(catalog handlers.ReportCatalog, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		page := handlers.ClampPage(request.GetInt("page", 0))
		pageSize := request.GetInt("page_size", 20)
		if pageSize <= 0 || pageSize > 100 {
			pageSize = 20
		}

		reports, total, err := catalog.List(ctx, page*pageSize, pageSize)
		if err != nil {
			logger.Error().Err(err).Msg("List reports failed")
			return textResult(fmt.Sprintf("List error: %v", err)), nil
		}

		return textResult(formatReportList(reports, page, pageSize, total)), nil
	}
}

// handleGetDerivedText implements the get_derived_text tool
func handleGetDerivedText(catalog handlers.ReportCatalog, texts interfaces.DerivedTextStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := request.RequireString("report")
		if err != nil || key == "" {
			return textResult("Error: report parameter is required"), nil
		}

		record, err := catalog.Resolve(ctx, key)
		if errors.Is(err, interfaces.ErrReportNotFound) {
			return textResult(fmt.Sprintf("No report found with id or title %q", key)), nil
		}
		if err != nil {
			logger.Error().Err(err).Str("key", key).Msg("Resolve report failed")
			return textResult(fmt.Sprintf("Lookup error: %v", err)), nil
		}

		if !record.IsConverted() {
			return textResult(noDataMessage(fmt.Sprintf("report %q has not been converted yet", record.Title))), nil
		}

		text, err := texts.GetDerivedText(ctx, record.DerivedTextRef)
		if errors.Is(err, interfaces.ErrDerivedTextNotFound) {
			return textResult(noDataMessage(fmt.Sprintf("derived text for %q is missing", record.Title))), nil
		}
		if err != nil {
			logger.Error().Err(err).Str("report_id", record.ID).Msg("Load derived text failed")
			return textResult(fmt.Sprintf("Load error: %v", err)), nil
		}

		return textResult(formatDerivedText(record, text)), nil
	}
}

// handleGetKeywordSummary implements the get_keyword_summary tool
func handleGetKeywordSummary(summarizer handlers.KeywordSummarizer, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", keywords.DefaultLimit)
		if limit <= 0 {
			limit = keywords.DefaultLimit
		}

		summary, err := summarizer.Summary(ctx, limit)
		if errors.Is(err, keywords.ErrNoReports) {
			return textResult(noDataMessage("no converted reports yet")), nil
		}
		if err != nil {
			logger.Error().Err(err).Int("limit", limit).Msg("Keyword summary failed")
			return textResult(fmt.Sprintf("Keyword summary error: %v", err)), nil
		}

		return textResult(formatKeywordSummary(summary)), nil
	}
}

// handleGetIndustryEvaluation implements the get_industry_evaluation tool
func handleGetIndustryEvaluation(evaluations EvaluationReader, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		view, err := evaluations.GetEvaluation(ctx, request.GetBool("all", false))
		if errors.Is(err, pipeline.ErrNoData) {
			return textResult(noDataMessage("no converted reports to evaluate yet")), nil
		}
		if err != nil {
			logger.Error().Err(err).Msg("Industry evaluation failed")
			return textResult(fmt.Sprintf("Evaluation error: %v", err)), nil
		}

		return textResult(formatEvaluation(view)), nil
	}
}
