package commands

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

const defaultSessionID = "default"

// resolveSessionID resolves the session that scopes the session cache tier.
// Precedence: --session flag, ANALYTICKET_SESSION, then "default".
func resolveSessionID(cmd *cobra.Command) string {
	if v, err := cmd.Flags().GetString("session"); err == nil && v != "" {
		return v
	}
	if v := os.Getenv("ANALYTICKET_SESSION"); v != "" {
		return v
	}
	return defaultSessionID
}

func resolveUserID(cmd *cobra.Command) string {
	if v, err := cmd.Flags().GetString("user"); err == nil && v != "" {
		return v
	}
	return os.Getenv("ANALYTICKET_USER")
}

func requireUserID(cmd *cobra.Command) (string, error) {
	user := resolveUserID(cmd)
	if user == "" {
		return "", errors.New("user is required (set --user or ANALYTICKET_USER)")
	}
	return user, nil
}
