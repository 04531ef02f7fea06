package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_CreatesConfiguredLogDir(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Logging.Output = []string{"file"}
	cfg.Logging.Dir = filepath.Join(t.TempDir(), "nested", "logs")

	logger := InitLogger(cfg)
	require.NotNil(t, logger)

	info, err := os.Stat(cfg.Logging.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLogDir_DefaultsBesideExecutable(t *testing.T) {
	dir, err := logDir("")
	require.NoError(t, err)
	assert.Equal(t, "logs", filepath.Base(dir))

	dir, err = logDir("/var/log/sectorscope")
	require.NoError(t, err)
	assert.Equal(t, "/var/log/sectorscope", dir)
}
