package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

const (
	logTimeFormat  = "15:04:05"
	logFileName    = "sectorscope.log"
	logMaxFileSize = 100 * 1024 * 1024
	logMaxBackups  = 3
)

func consoleWriter() models.WriterConfiguration {
	return models.WriterConfiguration{
		Type:       models.LogWriterTypeConsole,
		TimeFormat: logTimeFormat,
	}
}

// NewConsoleLogger returns a console-only logger at the given level
func NewConsoleLogger(level string) arbor.ILogger {
	return arbor.NewLogger().
		WithConsoleWriter(consoleWriter()).
		WithLevelFromString(level)
}

// InitLogger builds the service logger from the [logging] section.
// File output goes to <dir>/sectorscope.log, rotated at 100 MB.
func InitLogger(config *Config) arbor.ILogger {
	logger := arbor.NewLogger()

	var toFile, toConsole bool
	for _, output := range config.Logging.Output {
		switch output {
		case "file":
			toFile = true
		case "stdout", "console":
			toConsole = true
		}
	}

	if toFile {
		dir, err := logDir(config.Logging.Dir)
		if err == nil {
			err = os.MkdirAll(dir, 0755)
		}
		if err != nil {
			fmt.Printf("Warning: file logging disabled: %v\n", err)
			toConsole = true
		} else {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   filepath.Join(dir, logFileName),
				TimeFormat: logTimeFormat,
				MaxSize:    logMaxFileSize,
				MaxBackups: logMaxBackups,
			})
		}
	}

	if toConsole {
		logger = logger.WithConsoleWriter(consoleWriter())
	}

	return logger.WithLevelFromString(config.Logging.Level)
}

func logDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}
	return filepath.Join(filepath.Dir(execPath), "logs"), nil
}
