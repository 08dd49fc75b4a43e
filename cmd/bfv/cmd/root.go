package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Lee20171010/binary-file-viewer/internal/catalog"
	"github.com/Lee20171010/binary-file-viewer/internal/config"
	"github.com/Lee20171010/binary-file-viewer/internal/logging"
)

var (
	configPath string
	parserDirs []string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "bfv",
	Short: "bfv - binary file viewer",
	Long:  "Decode binary files with user supplied parser programs.",

	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (TOML)")
	rootCmd.PersistentFlags().StringSliceVar(&parserDirs, "parsers", nil,
		"parser program directories (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (overrides config)")

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(parsersCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(checkCmd)
}

// setup loads the configuration and builds the catalog shared by
// the subcommands.
func setup() (*catalog.Catalog, config.Config, zerolog.Logger, error) {
	log := logging.Init("info")

	cfg, err := config.Load(configPath, log)
	if err != nil {
		return nil, cfg, log, err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logging.SetLevel(cfg.LogLevel)

	if len(parserDirs) > 0 {
		cfg.ParserDirs = parserDirs
	}

	var store *catalog.Store
	if cfg.CachePath != "" {
		store, err = catalog.OpenStore(cfg.CachePath)
		if err != nil {
			log.Warn().Err(err).Msg("selection cache unavailable")
		}
	}

	cat := catalog.New(catalog.Options{
		SniffBytes: cfg.SniffBytes,
		Store:      store,
		Logger:     log,
	})
	if err := cat.Init(cfg.ParserDirs); err != nil {
		cat.Close()
		return nil, cfg, log, err
	}

	return cat, cfg, log, nil
}
