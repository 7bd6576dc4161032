package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davicafu/omegacache/internal/app"
	"github.com/davicafu/omegacache/internal/backend"
	"github.com/davicafu/omegacache/internal/config"
	"github.com/davicafu/omegacache/pkg/logger"
)

const version = "0.1.0"

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "omegacache",
		Short: "column cache with per-column TTL over pluggable backends",
		Long: fmt.Sprintf(`omegacache (v%s)

Typed key/value cache partitioned in columns, each with its own TTL,
backed by bolt, sqlite, redis, postgres, mongo or process memory.

Configuration is read from CACHE_* environment variables; flags override them.`, version),
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "omegacache v%s\n", version)
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("backend", "", fmt.Sprintf("cache backend %v (CACHE_BACKEND)", backend.Names()))
	flags.String("location", "", "backend location: file path or connection URI (CACHE_LOCATION)")
	flags.String("columns", "", "extra columns as name=ttl,name=ttl (CACHE_COLUMNS)")
	flags.String("log-level", "", "debug, info, warn, error (LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, getCmd, putCmd, dropCmd, columnsCmd, versionCmd)
}

// setup carga la configuración, aplica los flags e inicializa el logger.
func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("backend"); v != "" {
		cfg.Backend = v
	}
	if v, _ := flags.GetString("location"); v != "" {
		cfg.Location = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := flags.GetString("columns"); v != "" {
		extra, err := config.ParseColumns(v)
		if err != nil {
			return fmt.Errorf("--columns: %w", err)
		}
		cfg.Columns = config.MergeColumns(cfg.Columns, extra)
	}

	return logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
}

// openApp abre la caché para un comando. El llamador debe cerrar el App.
func openApp(cmd *cobra.Command) (*app.App, error) {
	return app.New(cmd.Context(), cfg, logger.Logger())
}
