package logging

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var once sync.Once

// Init builds the process logger writing human readable lines to
// stderr. Level falls back to info on an unknown name and can be
// overridden with BFV_LOG_LEVEL. Repeated calls keep the first
// configuration.
func Init(level string) zerolog.Logger {
	once.Do(func() {
		if env := os.Getenv("BFV_LOG_LEVEL"); env != "" {
			level = env
		}

		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil || parsed == zerolog.NoLevel {
			parsed = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(parsed)

		output := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
		log.Logger = zerolog.New(output).With().
			Timestamp().Str("app", "bfv").Logger()
	})

	return log.Logger
}

// SetLevel adjusts the global level after Init, unless the
// environment override is in force.
func SetLevel(level string) {
	if os.Getenv("BFV_LOG_LEVEL") != "" {
		return
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err == nil && parsed != zerolog.NoLevel {
		zerolog.SetGlobalLevel(parsed)
	}
}
