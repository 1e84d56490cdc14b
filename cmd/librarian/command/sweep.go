package command

import (
	"context"
	"fmt"

	"libraryhub/internal/app"
	"libraryhub/internal/scheduler"

	"github.com/spf13/cobra"
)

// sweep.go runs one pass of a scheduled job on demand. Every job is
// idempotent, so running it alongside the API server is safe.

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a lending sweep once",
}

var sweepOverdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "Flag loans past their due date",
	RunE:  runJob(scheduler.JobOverdueLoans, "loans flagged overdue"),
}

var sweepReservationsCmd = &cobra.Command{
	Use:   "reservations",
	Short: "Expire stale holds and activate waiting queues",
	RunE:  runJob(scheduler.JobReservationExpiry, "reservations changed"),
}

var sweepRemindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Deliver due loan reminders",
	RunE:  runJob(scheduler.JobLoanReminders, "reminders sent"),
}

func runJob(name, noun string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, _, err := a.Scheduler.RunNow(ctx, name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %d %s\n", n, noun)
			return nil
		})
	}
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.AddCommand(sweepOverdueCmd, sweepReservationsCmd, sweepRemindersCmd)
}
