package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/analyticket/analyticket/internal/output"
)

// NewBackendCmd creates the backend command with subcommands.
func NewBackendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Check and prepare the ticket database",
	}

	cmd.AddCommand(newBackendPingCmd())
	cmd.AddCommand(newBackendMigrateCmd())

	return cmd
}

func newBackendPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the ticket database is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			var latency time.Duration
			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				c, err := rt.Backend(ctx)
				if err != nil {
					return err
				}
				start := time.Now()
				if err := c.Ping(ctx); err != nil {
					return err
				}
				latency = time.Since(start)
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				OK        bool  `json:"ok"`
				LatencyMS int64 `json:"latency_ms"`
			}
			return output.PrintSuccess(resp{OK: true, LatencyMS: latency.Milliseconds()})
		},
	}
}

func newBackendMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ticket tables and change-notification triggers when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				c, err := rt.Backend(ctx)
				if err != nil {
					return err
				}
				return c.EnsureSchema(ctx)
			}); err != nil {
				return err
			}

			type resp struct {
				Migrated bool `json:"migrated"`
			}
			return output.PrintSuccess(resp{Migrated: true})
		},
	}
}
