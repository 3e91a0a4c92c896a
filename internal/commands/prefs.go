package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/analyticket/analyticket/internal/output"
	"github.com/analyticket/analyticket/internal/store"
)

// NewPrefsCmd creates the prefs command with subcommands.
func NewPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage locally persisted UI preferences",
		Long:  "Preferences survive logout and are stored as JSON values in the local database",
	}

	cmd.AddCommand(newPrefsSetCmd())
	cmd.AddCommand(newPrefsGetCmd())
	cmd.AddCommand(newPrefsListCmd())
	cmd.AddCommand(newPrefsDeleteCmd())

	return cmd
}

func newPrefsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a preference to a JSON value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetString("key")
			value, _ := cmd.Flags().GetString("value")
			key = strings.TrimSpace(key)
			if key == "" {
				return cmdErr(errors.New("--key is required"))
			}
			norm, err := normalizeJSON([]byte(value))
			if err != nil {
				return cmdErr(fmt.Errorf("--value: %w", err))
			}
			value = string(norm)
			ctx := commandContext(cmd)

			var pref *store.Preference
			if err := withDB(ctx, func(db *DB) error {
				if err := store.SetPreference(ctx, db, key, value); err != nil {
					return err
				}
				p, err := store.GetPreference(ctx, db, key)
				pref = p
				return err
			}); err != nil {
				return err
			}
			return output.PrintSuccess(pref)
		},
	}

	cmd.Flags().String("key", store.UserPreferencesKey, "Preference key")
	cmd.Flags().String("value", "", "JSON value (required)")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func newPrefsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get a preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetString("key")
			ctx := commandContext(cmd)

			type resp struct {
				Found      bool              `json:"found"`
				Preference *store.Preference `json:"preference,omitempty"`
			}
			var out resp
			if err := withDB(ctx, func(db *DB) error {
				p, err := store.GetPreference(ctx, db, key)
				if err != nil {
					return err
				}
				out = resp{Found: p != nil, Preference: p}
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(out)
		},
	}

	cmd.Flags().String("key", store.UserPreferencesKey, "Preference key")
	return cmd
}

func newPrefsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			var prefs []store.Preference
			if err := withDB(ctx, func(db *DB) error {
				p, err := store.ListPreferences(ctx, db)
				prefs = p
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Count       int                `json:"count"`
				Preferences []store.Preference `json:"preferences"`
			}
			if prefs == nil {
				prefs = []store.Preference{}
			}
			return output.PrintSuccess(resp{Count: len(prefs), Preferences: prefs})
		},
	}
}

func newPrefsDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a preference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, _ := cmd.Flags().GetString("key")
			key = strings.TrimSpace(key)
			if key == "" {
				return cmdErr(errors.New("--key is required"))
			}
			ctx := commandContext(cmd)

			var deleted bool
			if err := withDB(ctx, func(db *DB) error {
				d, err := store.DeletePreference(ctx, db, key)
				deleted = d
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Key     string `json:"key"`
				Deleted bool   `json:"deleted"`
			}
			return output.PrintSuccess(resp{Key: key, Deleted: deleted})
		},
	}

	cmd.Flags().String("key", "", "Preference key (required)")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}
