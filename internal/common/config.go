package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// ErrMissingAPIKey is returned when no credential can be resolved for the text generation provider
var ErrMissingAPIKey = errors.New("api key not configured")

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	LLM         LLMConfig        `toml:"llm"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	Converter   ConverterConfig  `toml:"converter"`
	Pipeline    PipelineConfig   `toml:"pipeline"`
	Discovery   DiscoveryConfig  `toml:"discovery"`
	Industries  IndustriesConfig `toml:"industries"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
	Dir    string   `toml:"dir"`    // Log file directory, defaults to logs/ beside the executable
}

// LLMConfig selects the text generation provider and bounds every call to it
type LLMConfig struct {
	DefaultProvider string `toml:"default_provider" validate:"oneof=gemini claude"`
	Timeout         string `toml:"timeout"`    // Per-call timeout, e.g. "5m"
	RateLimit       string `toml:"rate_limit"` // Minimum interval between calls, e.g. "4s"
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens" validate:"min=1"`
	Temperature float32 `toml:"temperature"`
}

// ConverterConfig holds the page budget for chunked document conversion
type ConverterConfig struct {
	ChunkSize          int `toml:"chunk_size" validate:"min=1"`
	TailMergeThreshold int `toml:"tail_merge_threshold" validate:"min=0"`
	MaxParallelChunks  int `toml:"max_parallel_chunks" validate:"min=1"`
}

// PipelineConfig controls discovery freshness, scheduling and evaluation sampling
type PipelineConfig struct {
	Freshness            string  `toml:"freshness"`                                   // e.g. "6h"
	Schedule             string  `toml:"schedule"`                                    // Cron schedule, empty disables
	EvaluationSampleSize int     `toml:"evaluation_sample_size" validate:"min=1"`     // Most recent converted documents to evaluate
	ConfidenceThreshold  float64 `toml:"confidence_threshold" validate:"min=0,max=1"` // Read-time cut-off
	HomeMarket           string  `toml:"home_market" validate:"required"`
	ExcerptLength        int     `toml:"excerpt_length" validate:"min=100"`
}

// DiscoveryConfig describes the listing page that report metadata is scraped from
type DiscoveryConfig struct {
	ListingURL     string `toml:"listing_url"`
	ItemSelector   string `toml:"item_selector"`
	TitleSelector  string `toml:"title_selector"`
	LinkSelector   string `toml:"link_selector"`
	DateSelector   string `toml:"date_selector"`
	AuthorSelector string `toml:"author_selector"`
	UserAgent      string `toml:"user_agent"`
	RequestTimeout string `toml:"request_timeout"`
}

// IndustriesConfig points at an optional YAML file overriding the built-in vocabulary
type IndustriesConfig struct {
	VocabularyFile string `toml:"vocabulary_file"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8086,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/sectorscope",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
			Timeout:         "5m",
			RateLimit:       "4s",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   8192,
			Temperature: 0.2,
		},
		Converter: ConverterConfig{
			ChunkSize:          20,
			TailMergeThreshold: 5,
			MaxParallelChunks:  3,
		},
		Pipeline: PipelineConfig{
			Freshness:            "6h",
			Schedule:             "0 */6 * * *",
			EvaluationSampleSize: 10,
			ConfidenceThreshold:  0.6,
			HomeMarket:           "Australian",
			ExcerptLength:        4000,
		},
		Discovery: DiscoveryConfig{
			ItemSelector:   "table tr",
			TitleSelector:  "td.title",
			LinkSelector:   "a[href$='.pdf']",
			DateSelector:   "td.date",
			AuthorSelector: "td.author",
			UserAgent:      "sectorscope/1.0",
			RequestTimeout: "30s",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies SECTORSCOPE_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SECTORSCOPE_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("SECTORSCOPE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SECTORSCOPE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("SECTORSCOPE_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if level := os.Getenv("SECTORSCOPE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SECTORSCOPE_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		config.Logging.Output = outputs
	}

	if provider := os.Getenv("SECTORSCOPE_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}
	if timeout := os.Getenv("SECTORSCOPE_LLM_TIMEOUT"); timeout != "" {
		config.LLM.Timeout = timeout
	}
	if model := os.Getenv("SECTORSCOPE_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if model := os.Getenv("SECTORSCOPE_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if size := os.Getenv("SECTORSCOPE_CHUNK_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			config.Converter.ChunkSize = n
		}
	}

	if freshness := os.Getenv("SECTORSCOPE_PIPELINE_FRESHNESS"); freshness != "" {
		config.Pipeline.Freshness = freshness
	}
	if schedule, ok := os.LookupEnv("SECTORSCOPE_PIPELINE_SCHEDULE"); ok {
		config.Pipeline.Schedule = schedule
	}

	if listingURL := os.Getenv("SECTORSCOPE_LISTING_URL"); listingURL != "" {
		config.Discovery.ListingURL = listingURL
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks struct constraints, durations and the cron schedule.
// Any error here is a configuration error and is fatal at startup.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"llm.timeout":               c.LLM.Timeout,
		"llm.rate_limit":            c.LLM.RateLimit,
		"pipeline.freshness":        c.Pipeline.Freshness,
		"discovery.request_timeout": c.Discovery.RequestTimeout,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}

	if c.Pipeline.Schedule != "" {
		if err := ValidateSchedule(c.Pipeline.Schedule); err != nil {
			return fmt.Errorf("invalid pipeline.schedule: %w", err)
		}
	}

	return nil
}

// ParseDurationOr parses value, returning fallback when value is empty or malformed
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ResolveAPIKey resolves a provider API key.
// Resolution order: environment variables → config fallback → ErrMissingAPIKey
func ResolveAPIKey(provider string, configFallback string) (string, error) {
	envNames := map[string][]string{
		"gemini": {"SECTORSCOPE_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"claude": {"SECTORSCOPE_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	for _, name := range envNames[provider] {
		if value := os.Getenv(name); value != "" {
			return value, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("%s: %w", provider, ErrMissingAPIKey)
}

// ValidateSchedule validates a cron schedule expression and ensures minimum 5-minute interval
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}

	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
