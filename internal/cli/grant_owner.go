package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/marketplace-service/internal/repository"
	"github.com/spec-kit/marketplace-service/internal/service"
)

var grantOwnerCmd = &cobra.Command{
	Use:   "grant-owner <username>",
	Short: "Promote an account to OWNER",
	Long: `Promote an account to OWNER. The HTTP API never grants OWNER, so the
first owner of a deployment is created with this command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger, pg, err := openPostgres(ctx)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		defer pg.Close()

		pool := pg.PoolHandle()
		admin := service.NewAdminService(service.AdminDependencies{
			UserRepo:  repository.NewUserRepository(pool),
			AuditRepo: repository.NewAuditLogRepository(pool),
			Logger:    logger,
		})
		user, err := admin.GrantOwner(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s\n", user.Username, user.ID, user.Role)
		return nil
	},
}
