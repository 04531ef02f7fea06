package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application startup banner to stderr
func PrintBanner(config *Config, logger arbor.ILogger) {
	serviceURL := fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)

	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	hr := lineColor + strings.Repeat("═", 60) + banner.ColorReset

	fmt.Fprintf(os.Stderr, "\n%s\n\n", hr)
	fmt.Fprintf(os.Stderr, "%s  SECTORSCOPE%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(os.Stderr, "%s  Report Ingestion & Industry Analysis%s\n\n", textColor, banner.ColorReset)
	fmt.Fprintf(os.Stderr, "%s\n\n", hr)

	kvLines := [][2]string{
		{"Version", GetVersion()},
		{"Build", GetBuild()},
		{"Commit", GetGitCommit()},
		{"Environment", config.Environment},
		{"Service URL", serviceURL},
		{"Storage", config.Storage.Badger.Path},
		{"Provider", config.LLM.DefaultProvider},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(os.Stderr, "%s  %-14s %s%s\n", textColor, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n%s\n\n", hr)

	logger.Info().
		Str("version", GetVersion()).
		Str("build", GetBuild()).
		Str("environment", config.Environment).
		Str("service_url", serviceURL).
		Str("provider", config.LLM.DefaultProvider).
		Msg("Application started")
}
