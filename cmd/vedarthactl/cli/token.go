package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/thetaxjournal/accountsvedartha/internal/app"
	"github.com/thetaxjournal/accountsvedartha/internal/shared"
)

func newTokenCommand() *cobra.Command {
	var (
		role    string
		subject string
		scope   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := app.NewAuthenticator(os.Getenv("JWT_SECRET"))
			if err != nil {
				return err
			}
			token, err := auth.Issue(shared.Role(role), subject, scope, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&role, "role", string(shared.RoleAdmin), "admin, branch_manager, accountant, hr, employee or client")
	cmd.Flags().StringVar(&subject, "sub", "vedarthactl", "user id")
	cmd.Flags().StringVar(&scope, "scope", "", "branch, employee or client id for scoped roles")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
