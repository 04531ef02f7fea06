package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/sectorscope/internal/app"
	"github.com/ternarybob/sectorscope/internal/common"
)

func main() {
	// Load configuration; SECTORSCOPE_CONFIG may list several files separated by commas
	var configFiles []string
	if env := os.Getenv("SECTORSCOPE_CONFIG"); env != "" {
		for _, path := range strings.Split(env, ",") {
			if path = strings.TrimSpace(path); path != "" {
				configFiles = append(configFiles, path)
			}
		}
	} else if _, err := os.Stat("sectorscope.toml"); err == nil {
		configFiles = append(configFiles, "sectorscope.toml")
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	// The MCP server only reads; scheduled runs belong to the HTTP service
	config.Pipeline.Schedule = ""

	// Console only at warn, stdio carries the MCP protocol
	logger := common.NewConsoleLogger("warn")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := server.NewMCPServer(
		"sectorscope",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createListReportsTool(), handleListReports(application.CatalogService, logger))
	mcpServer.AddTool(createGetDerivedTextTool(), handleGetDerivedText(application.CatalogService, application.StorageManager.DerivedTextStorage(), logger))
	mcpServer.AddTool(createGetKeywordSummaryTool(), handleGetKeywordSummary(application.KeywordService, logger))
	mcpServer.AddTool(createGetIndustryEvaluationTool(), handleGetIndustryEvaluation(application.Orchestrator, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
	}
}
