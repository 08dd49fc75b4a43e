// Package config loads the viewer configuration from a TOML file.
// Missing file means defaults; a bad directory entry is dropped
// with a warning rather than failing the load.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

type Config struct {
	// Directories scanned recursively for parser programs.
	ParserDirs []string `toml:"parser_dirs"`

	// Prefix length handed to content sniff predicates.
	SniffBytes int `toml:"sniff_bytes"`

	// Watcher debounce window.
	Debounce duration `toml:"debounce"`

	LogLevel string `toml:"log_level"`

	// Path of the persistent selection cache. Empty disables it.
	CachePath string `toml:"cache_path"`
}

// duration supports "250ms" style values in the TOML file.
type duration struct {
	time.Duration
}

func (self *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	self.Duration = parsed
	return nil
}

func Default() Config {
	return Config{
		SniffBytes: 64,
		Debounce:   duration{100 * time.Millisecond},
		LogLevel:   "info",
	}
}

// Load reads path, falling back to defaults when the file does not
// exist. Parser directory entries that do not resolve to a
// directory are dropped with a warning.
func Load(path string, log zerolog.Logger) (Config, error) {
	result := Default()

	if path != "" {
		_, err := toml.DecodeFile(path, &result)
		if err != nil {
			if os.IsNotExist(err) {
				log.Debug().Str("path", path).
					Msg("no config file, using defaults")
			} else {
				return result, fmt.Errorf("config %v: %w", path, err)
			}
		}
	}

	result.ParserDirs = validDirs(result.ParserDirs, log)

	if result.SniffBytes <= 0 {
		result.SniffBytes = Default().SniffBytes
	}
	if result.Debounce.Duration <= 0 {
		result.Debounce = Default().Debounce
	}

	return result, nil
}

func validDirs(dirs []string, log zerolog.Logger) []string {
	var result []string
	for _, dir := range dirs {
		abs, err := filepath.Abs(dir)
		if err != nil {
			log.Warn().Str("dir", dir).Err(err).
				Msg("dropping parser directory")
			continue
		}

		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			log.Warn().Str("dir", abs).
				Msg("parser directory does not exist, dropping")
			continue
		}
		result = append(result, abs)
	}
	return result
}
