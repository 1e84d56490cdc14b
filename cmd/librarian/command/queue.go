package command

import (
	"context"
	"fmt"

	"libraryhub/internal/app"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and drive reservation queues",
}

var queueActivateCmd = &cobra.Command{
	Use:   "activate <bookId>",
	Short: "Offer available copies of a book to its waiting readers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			activated, err := a.Reservations.ActivateNextReservation(ctx, args[0])
			if err != nil {
				return fmt.Errorf("activate: %w", err)
			}
			if len(activated) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No reservations were activated.")
				return nil
			}
			for _, r := range activated {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ reservation %s READY for user %s until %s\n",
					r.ID, r.UserID, r.ExpiryDate.Format("2006-01-02 15:04"))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueActivateCmd)
}
