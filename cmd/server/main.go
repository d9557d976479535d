/*
main.go - Application entry point

PURPOSE:
  Command-line front of the towel workflow tracker. Loads configuration,
  builds the logger, opens the configured store and dispatches to a
  subcommand.

COMMANDS:
  serve    (default) run the HTTP API
  report   print a worker or daily report as JSON
  migrate  open the store, apply pending migrations, print the version

GLOBAL FLAGS:
  --env-file   .env file to load first (default: .env if present)
  --config     YAML config file (default: ./config.yaml if present)

ENVIRONMENT:
  TOWEL_PORT, TOWEL_STORE, TOWEL_SQLITE_PATH, TOWEL_MONGO_URI,
  TOWEL_MONGO_DB, TOWEL_LOG_LEVEL, TOWEL_CORS_ORIGINS (see config/)

EXAMPLES:
  # Run with the default SQLite file
  ./server

  # Run against MongoDB
  TOWEL_STORE=mongo TOWEL_MONGO_URI=mongodb://db:27017 ./server serve

  # Weekly report
  ./server report --from 2024-03-04 --to 2024-03-10 --daily
*/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/towel-workflow/config"
	"github.com/warp/towel-workflow/logging"
	"github.com/warp/towel-workflow/production"
	"github.com/warp/towel-workflow/production/store"
	"github.com/warp/towel-workflow/store/mongo"
	"github.com/warp/towel-workflow/store/sqlite"
)

// Global flag values.
var (
	flagEnvFile    string
	flagConfigFile string
)

// Set by PersistentPreRunE for every subcommand.
var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Towel production workflow tracker",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(flagEnvFile, flagConfigFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded

		logger, err = logging.New(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", "", "env file to load (default: .env if present)")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "config file (default: ./config.yaml if present)")
	addServeFlags(rootCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openedStore is a Store plus how to release it.
type openedStore struct {
	production.Store
	close         func() error
	schemaVersion func(context.Context) (int, error)
}

// openStore opens the backend named by cfg.Store.Kind, migrating it.
func openStore(ctx context.Context, cfg *config.Config) (*openedStore, error) {
	switch cfg.Store.Kind {
	case config.StoreSQLite:
		s, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &openedStore{Store: s, close: s.Close, schemaVersion: s.SchemaVersion}, nil

	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := mongo.New(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			return nil, err
		}
		closeFn := func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return s.Close(closeCtx)
		}
		return &openedStore{Store: s, close: closeFn, schemaVersion: s.SchemaVersion}, nil

	case config.StoreMemory:
		noVersion := func(context.Context) (int, error) { return 0, nil }
		return &openedStore{Store: store.NewMemory(), close: func() error { return nil }, schemaVersion: noVersion}, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store.Kind)
}
