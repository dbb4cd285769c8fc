package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl string `json:"base_url"`
	Workers int    `json:"workers"`
}

func TestReadWithLocalOverride(t *testing.T) {
	dir := t.TempDir()

	base := filepath.Join(dir, "extractor.json5")
	err := os.WriteFile(base, []byte(`{
		// comments are allowed
		base_url: "https://scp.gov.pk",
		workers: 3,
	}`), 0644)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(dir, "extractor.local.json5"), []byte(`{
		workers: 1,
	}`), 0644)
	require.NoError(t, err)

	config, err := Read[testConfig](base)
	require.NoError(t, err)
	require.Equal(t, "https://scp.gov.pk", config.BaseUrl)
	require.Equal(t, 1, config.Workers)
}

func TestReadMissing(t *testing.T) {
	_, err := Read[testConfig](filepath.Join(t.TempDir(), "nope.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
