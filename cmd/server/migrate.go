package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations and print the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to migrate store: %w", err)
		}
		defer st.close()

		version, err := st.schemaVersion(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("store migrated", zap.String("store", cfg.Store.Kind), zap.Int("version", version))
		fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d\n", cfg.Store.Kind, version)
		return nil
	},
}
