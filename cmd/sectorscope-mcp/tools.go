package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createListReportsTool returns the list_reports tool definition
func createListReportsTool() mcp.Tool {
	return mcp.NewTool("list_reports",
		mcp.WithDescription("List catalogued research reports, most recent first, with their conversion status"),
		mcp.WithNumber("page",
			mcp.Description("Zero-based page number (default: 0)"),
		),
		mcp.WithNumber("page_size",
			mcp.Description("Reports per page (default: 20, max: 100)"),
		),
	)
}

// createGetDerivedTextTool returns the get_derived_text tool definition
func createGetDerivedTextTool() mcp.Tool {
	return mcp.NewTool("get_derived_text",
		mcp.WithDescription("Get the structured Markdown text derived from one report"),
		mcp.WithString("report",
			mcp.Required(),
			mcp.Description("Report id or exact report title"),
		),
	)
}

// createGetKeywordSummaryTool returns the get_keyword_summary tool definition
func createGetKeywordSummaryTool() mcp.Tool {
	return mcp.NewTool("get_keyword_summary",
		mcp.WithDescription("Get highlighted market keywords across the most recent converted reports"),
		mcp.WithNumber("limit",
			mcp.Description("Number of recent reports to cover (default: 10)"),
		),
	)
}

// createGetIndustryEvaluationTool returns the get_industry_evaluation tool definition
func createGetIndustryEvaluationTool() mcp.Tool {
	return mcp.NewTool("get_industry_evaluation",
		mcp.WithDescription("Get per-industry sentiment evaluations; neutral and low-confidence entries are hidden unless all is set"),
		mcp.WithBoolean("all",
			mcp.Description("Include neutral and low-confidence evaluations (default: false)"),
		),
	)
}
