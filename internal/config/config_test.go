package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.SniffBytes)
	assert.Equal(t, 100*time.Millisecond, cfg.Debounce.Duration)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.ParserDirs)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	parserDir := filepath.Join(dir, "parsers")
	require.NoError(t, os.Mkdir(parserDir, 0755))

	content := `
parser_dirs = ["` + parserDir + `", "` + filepath.Join(dir, "missing") + `"]
sniff_bytes = 128
debounce = "250ms"
log_level = "debug"
`
	path := filepath.Join(dir, "bfv.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path, zerolog.Nop())
	require.NoError(t, err)

	// The missing directory is dropped, not fatal.
	assert.Equal(t, []string{parserDir}, cfg.ParserDirs)
	assert.Equal(t, 128, cfg.SniffBytes)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce.Duration)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bfv.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid"), 0644))

	_, err := Load(path, zerolog.Nop())
	assert.Error(t, err)
}
