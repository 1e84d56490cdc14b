package command

import (
	"context"
	"fmt"

	"libraryhub/internal/app"
	"libraryhub/internal/microservices/http-api/models"
	"libraryhub/internal/microservices/http-api/repository"

	"github.com/spf13/cobra"
)

// userCmd represents the user command for account related subcommands
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage library accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a reader or staff account",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		role, _ := cmd.Flags().GetString("role")
		inactive, _ := cmd.Flags().GetBool("inactive")

		switch role {
		case models.RoleReader, models.RoleLibrarian, models.RoleAdmin:
		default:
			return fmt.Errorf("unknown role %q", role)
		}

		user := &models.User{Name: name, Email: email, Role: role, IsActive: !inactive}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			err := a.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
				return tx.CreateUser(ctx, user)
			})
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s account created\n", user.Role)
			fmt.Fprintf(cmd.OutOrStdout(), "UserID: %s\n", user.ID)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)

	userAddCmd.Flags().StringP("name", "n", "", "Display name")
	userAddCmd.Flags().StringP("email", "e", "", "Email address")
	userAddCmd.Flags().StringP("role", "r", models.RoleReader, "reader, librarian or admin")
	userAddCmd.Flags().Bool("inactive", false, "Create the account suspended")
	userAddCmd.MarkFlagRequired("name")
	userAddCmd.MarkFlagRequired("email")
}
