package command

// root.go defines the root command for the librarian tool.
// Every subcommand talks to the same database and redis as the API server.

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"libraryhub/internal/app"
	"libraryhub/internal/config"
	"libraryhub/internal/logging"

	"github.com/spf13/cobra"
)

var (
	logLevel string // overrides LOG_LEVEL for the tool
	quiet    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "librarian",
	Short: "librarian - LibraryHub staff tool",
	Long: `librarian runs desk and maintenance tasks against the LibraryHub store:
- Add readers, staff and books
- Run the overdue, reservation and reminder sweeps by hand
- Hand freed copies to waiting reservations
- Mint access tokens for staff scripts

Configuration comes from the same environment (or .env file) as the API server.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print results")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp builds the service graph for one command and tears it down after.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if quiet {
		level = "error"
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), level, "text")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer a.Close()

	return fn(ctx, a)
}
