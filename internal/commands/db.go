package commands

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/analyticket/analyticket/internal/app"
	"github.com/analyticket/analyticket/internal/output"
	"github.com/analyticket/analyticket/internal/store"
)

// NewDBCmd creates the db command with subcommands.
func NewDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Local cache database utilities",
	}

	cmd.AddCommand(newDBPathCmd())
	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

type dbFileInfo struct {
	Path      string `json:"path"`
	Source    string `json:"source"`
	Exists    bool   `json:"exists"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// statDBFile does not create the database; "db path" is read-only.
func statDBFile(path, source string) (dbFileInfo, error) {
	info := dbFileInfo{Path: path, Source: source}
	st, err := os.Stat(path)
	switch {
	case err == nil:
		info.Exists = true
		info.SizeBytes = st.Size()
	case errors.Is(err, fs.ErrNotExist):
	default:
		return info, err
	}
	return info, nil
}

func newDBPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved database path and where it came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, source, err := app.ResolveDBPathDetailed()
			if err != nil {
				return cmdErr(err)
			}
			info, err := statDBFile(path, source)
			if err != nil {
				return cmdErr(err)
			}
			return output.PrintSuccess(info)
		},
	}
}

func newDBMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the local cache schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			type resp struct {
				Current int64 `json:"current"`
				Latest  int64 `json:"latest"`
			}
			var out resp
			if err := withDB(ctx, func(db *DB) error {
				current, latest, err := store.SchemaVersion(db)
				out = resp{Current: current, Latest: latest}
				return err
			}); err != nil {
				return err
			}
			return output.PrintSuccess(out)
		},
	}
}
