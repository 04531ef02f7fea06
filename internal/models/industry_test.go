package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVocabularyCanonical(t *testing.T) {
	vocab := NewVocabulary([]string{"Banking", " real estate ", "banking", ""})

	assert.Equal(t, []string{"Banking", "real estate"}, vocab.Labels())

	label, ok := vocab.Canonical("BANKING")
	assert.True(t, ok)
	assert.Equal(t, "Banking", label)

	_, ok = vocab.Canonical("Crypto")
	assert.False(t, ok)
}

func TestLoadVocabulary(t *testing.T) {
	vocab, err := LoadVocabulary("")
	require.NoError(t, err)
	assert.Equal(t, DefaultIndustries, vocab.Labels())

	path := filepath.Join(t.TempDir(), "industries.yaml")
	require.NoError(t, os.WriteFile(path, []byte("industries:\n  - Shipbuilding\n  - Semiconductors\n"), 0644))

	vocab, err = LoadVocabulary(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shipbuilding", "Semiconductors"}, vocab.Labels())

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("industries: []\n"), 0644))
	_, err = LoadVocabulary(empty)
	assert.Error(t, err)
}
