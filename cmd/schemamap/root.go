package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"schemamap/internal/config"
	"schemamap/internal/logging"
	"schemamap/internal/metrics"
	"schemamap/internal/store"
)

var (
	v          = config.New()
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "schemamap",
	Short:         "Map EC schemas onto relational tables",
	Long:          `schemamap resolves mapping strategies for EC schemas, allocates tables and columns, maps relationships and indexes, and applies the result incrementally to SQLite, PostgreSQL or MySQL.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(v, configPath)
		if err != nil {
			return err
		}

		cfg = loaded

		if err := logging.Init(cfg.LoggerConfig()); err != nil {
			return err
		}

		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if err := logging.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to close log file: %v\n", err)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file (default: ./schemamap.yaml)")
	flags.String("dialect", "", "database dialect: sqlite, postgres or mysql")
	flags.String("dsn", "", "database connection string or SQLite file path")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.Bool("link-table-without-navigation", false, "map relationships without a navigation property to link tables")
	flags.String("metrics-file", "", "write import metrics to this node exporter textfile")

	mustBind(v, "store.dialect", "dialect")
	mustBind(v, "store.dsn", "dsn")
	mustBind(v, "logging.level", "log-level")
	mustBind(v, "logging.format", "log-format")
	mustBind(v, "mapping.link_table_without_navigation", "link-table-without-navigation")
	mustBind(v, "metrics.textfile_path", "metrics-file")

	rootCmd.AddCommand(planCmd, importCmd, layoutCmd, checkDDLCmd)
}

func mustBind(v *viper.Viper, key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// openStore connects to the configured store. Callers close it.
func openStore(ctx context.Context) (store.Store, error) {
	s, err := store.Open(ctx, cfg.Store.Dialect, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Dialect, err)
	}

	return s, nil
}

func closeStore(s store.Store) {
	if err := s.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close store: %v\n", err)
	}
}

// newRecorder returns a recorder when a metrics file is configured.
func newRecorder() *metrics.Recorder {
	if cfg.Metrics.TextfilePath == "" {
		return nil
	}

	return metrics.New()
}

func flushMetrics(rec *metrics.Recorder) {
	if rec == nil {
		return
	}

	if err := rec.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write metrics: %v\n", err)
	}
}
