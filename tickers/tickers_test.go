package tickers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTickersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tickers.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFile(t *testing.T) {
	path := writeTickersFile(t, "AAPL\nMSFT\nGOOG\n")

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOG"}, got)
}

func TestReadFileTrimsAndDropsBlank(t *testing.T) {
	path := writeTickersFile(t, "  AAPL \r\n\n\t\nMSFT")

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)
}

func TestReadFileEmpty(t *testing.T) {
	path := writeTickersFile(t, "")

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}
