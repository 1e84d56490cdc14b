package command

import (
	"fmt"
	"time"

	"libraryhub/internal/microservices/http-api/middleware"
	"libraryhub/internal/microservices/http-api/models"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Access token management",
}

// tokenIssueCmd signs a token with JWT_SECRET for scripts and smoke tests.
var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint an access token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tok, err := middleware.NewTokens(cfg.JWTSecret).Issue(userID, role, ttl)
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenIssueCmd)

	tokenIssueCmd.Flags().StringP("user", "u", "", "User ID the token is issued for")
	tokenIssueCmd.Flags().StringP("role", "r", models.RoleReader, "Role claim")
	tokenIssueCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	tokenIssueCmd.MarkFlagRequired("user")
}
