package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/app"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/server"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverPortP  = flag.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
	runOnce      = flag.Bool("run-once", false, "Run one forced pipeline cycle and exit")
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("SectorScope version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Merge port flags (shorthand takes precedence)
	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("sectorscope.toml"); err == nil {
			configFiles = append(configFiles, "sectorscope.toml")
		} else if _, err := os.Stat("deployments/local/sectorscope.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/sectorscope.toml")
		}
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Validate
	// 4. Initialize logger and print banner
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, finalPort, *serverHost)

	if err := config.Validate(); err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(config, logger)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("badger_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Str("listing_url", config.Discovery.ListingURL).
		Msg("Resolved configuration (sanitized)")

	application, err := app.New(config, logger)
	if errors.Is(err, common.ErrMissingAPIKey) {
		logger.Fatal().Err(err).Str("provider", config.LLM.DefaultProvider).Msg("No API key configured for the text generation provider")
		os.Exit(1)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	if *runOnce {
		runOnceAndExit(application, logger)
		return
	}

	srv := server.New(application)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Fatal().Str("panic", fmt.Sprintf("%v", r)).Msg("Server goroutine panicked")
			}
		}()

		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	application.SchedulerService.Start()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}

// runOnceAndExit runs a single forced cycle; SIGINT cancels between documents
func runOnceAndExit(application *app.App, logger arbor.ILogger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Interrupt signal received, stopping after the current document")
		application.Cancel()
	}()

	report, err := application.RunOnce()
	if err != nil {
		logger.Error().Err(err).Msg("Pipeline run failed")
		return
	}

	fmt.Printf("Run %s: discovered=%d added=%d converted=%d failed=%d skipped=%d (%s)\n",
		report.RunID, report.Discovered, report.Added, report.Converted, report.Failed, report.Skipped,
		report.Duration.Round(time.Millisecond))
}
