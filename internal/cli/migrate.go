package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/marketplace-service/internal/persistence"
	"github.com/spec-kit/marketplace-service/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger, pg, err := openPostgres(ctx)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		defer pg.Close()

		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrations.FS, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}
