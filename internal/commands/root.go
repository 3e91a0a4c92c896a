package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/analyticket/analyticket/internal/app"
	"github.com/analyticket/analyticket/internal/output"
)

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "analyticket",
		Short:         "Support-ticket client core (retrying loads, tiered cache, realtime channels)",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return output.PrintSuccess(resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.EnsureConfigDir(); err != nil {
				return err
			}

			// Wire --db-path into app-level resolver.
			if dbPath, err := cmd.Flags().GetString("db-path"); err == nil && dbPath != "" {
				app.SetDBPathOverride(dbPath)
			}

			return nil
		},
	}

	root.PersistentFlags().String("db-path", "", "Override local database path")
	root.PersistentFlags().String("session", "", "Session id scoping the session cache tier (default: $ANALYTICKET_SESSION)")
	root.PersistentFlags().String("user", "", "User id (default: $ANALYTICKET_USER)")
	root.Flags().BoolP("version", "v", false, "version for analyticket")

	root.AddCommand(NewTicketsCmd())
	root.AddCommand(NewNotificationsCmd())
	root.AddCommand(NewCacheCmd())
	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewPublishCmd())
	root.AddCommand(NewPrefsCmd())
	root.AddCommand(NewBackendCmd())
	root.AddCommand(NewClassifyCmd())
	root.AddCommand(NewDBCmd())
	root.AddCommand(NewDoctorCmd())
	root.AddCommand(NewSchemaCmd(root))

	return root
}

// Execute runs the CLI application.
func Execute(version string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd(version).ExecuteContext(ctx)
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			slog.Error("command failed", "error", err.Error())
		}
	}
	return err
}
