package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferencesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p, err := GetPreference(ctx, db, UserPreferencesKey)
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, SetPreference(ctx, db, UserPreferencesKey, `{"theme":"dark"}`))
	require.NoError(t, SetPreference(ctx, db, "ticketListColumns", `["id","title"]`))

	p, err = GetPreference(ctx, db, UserPreferencesKey)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.JSONEq(t, `{"theme":"dark"}`, string(p.Value))

	require.NoError(t, SetPreference(ctx, db, UserPreferencesKey, `{"theme":"light"}`))
	p, err = GetPreference(ctx, db, UserPreferencesKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"light"}`, string(p.Value))

	prefs, err := ListPreferences(ctx, db)
	require.NoError(t, err)
	require.Len(t, prefs, 2)
	assert.Equal(t, "ticketListColumns", prefs[0].Key)
	assert.Equal(t, UserPreferencesKey, prefs[1].Key)

	deleted, err := DeletePreference(ctx, db, "ticketListColumns")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestSetPreferenceValidation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	assert.Error(t, SetPreference(ctx, db, "", `{}`))
	assert.Error(t, SetPreference(ctx, db, "k", `{not json`))
}
