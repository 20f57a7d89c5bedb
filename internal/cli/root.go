package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-service/internal/config"
	"github.com/spec-kit/marketplace-service/internal/observability"
	"github.com/spec-kit/marketplace-service/internal/persistence"
)

var (
	envFile string
	port    string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "marketplace",
	Short: "Marketplace and helpdesk API server",
	Long: `Marketplace serves the HTTP API, the realtime socket endpoint and
the administrative commands of the marketplace service.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if port != "" {
			cfg.App.Port = port
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&port, "port", "", "override APP_PORT")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(grantOwnerCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Root exposes the command tree.
func Root() *cobra.Command {
	return rootCmd
}

// openPostgres builds the logger and the pool every subcommand needs.
func openPostgres(ctx context.Context) (*zap.Logger, *persistence.Postgres, error) {
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	return logger, pg, nil
}
