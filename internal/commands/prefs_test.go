package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/analyticket/analyticket/internal/store"
)

func TestNewPrefsCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := NewPrefsCmd()
	for _, name := range []string{"set", "get", "list", "delete"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, sub.Name())
	}
}

func TestPrefsSetGetDelete(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dbPath := filepath.Join(t.TempDir(), "analyticket.db")
	t.Setenv("ANALYTICKET_DB_PATH", dbPath)

	set := newPrefsSetCmd()
	require.NoError(t, set.Flags().Set("value", `{"theme":"dark"}`))
	require.NoError(t, set.RunE(set, nil))

	db, err := store.InitDBWithPath(dbPath)
	require.NoError(t, err)
	p, err := store.GetPreference(context.Background(), db, store.UserPreferencesKey)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.JSONEq(t, `{"theme":"dark"}`, string(p.Value))
	require.NoError(t, db.Close())

	del := newPrefsDeleteCmd()
	require.NoError(t, del.Flags().Set("key", store.UserPreferencesKey))
	require.NoError(t, del.RunE(del, nil))
}

func TestPrefsSetCmd_InvalidJSONReturnsPrintedError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ANALYTICKET_DB_PATH", filepath.Join(t.TempDir(), "analyticket.db"))

	cmd := newPrefsSetCmd()
	require.NoError(t, cmd.Flags().Set("value", "nope"))
	require.IsType(t, printedError{}, cmd.RunE(cmd, nil))
}

func TestPrefsFlagSetup(t *testing.T) {
	set := newPrefsSetCmd()
	requireFlagExists(t, set, "key")
	requireFlagExists(t, set, "value")
	require.Equal(t, store.UserPreferencesKey, set.Flag("key").DefValue)

	del := newPrefsDeleteCmd()
	require.Equal(t, "true", del.Flag("key").Annotations[cobra.BashCompOneRequiredFlag][0])
}
