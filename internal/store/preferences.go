package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UserPreferencesKey is the documented key holding the UI preference blob.
const UserPreferencesKey = "userPreferences"

// MaxPreferenceValueLength bounds a stored preference value.
const MaxPreferenceValueLength = 65536

// Preference is one stored UI preference. Value is raw JSON.
type Preference struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SetPreference upserts key with a JSON value.
func SetPreference(ctx context.Context, db *sql.DB, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("preference key is required")
	}
	if len(value) > MaxPreferenceValueLength {
		return fmt.Errorf("preference value exceeds max length (%d)", MaxPreferenceValueLength)
	}
	if !json.Valid([]byte(value)) {
		return errors.New("preference value must be valid JSON")
	}
	return RetryWithBackoffContext(ctx, func() error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO user_preferences (key, value, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
		`, key, value)
		if err != nil {
			return fmt.Errorf("failed to set preference: %w", err)
		}
		return nil
	})
}

// GetPreference returns the preference for key, or nil when unset.
func GetPreference(ctx context.Context, db *sql.DB, key string) (*Preference, error) {
	var (
		p     Preference
		value string
	)
	err := db.QueryRowContext(ctx, `
		SELECT key, value, updated_at FROM user_preferences WHERE key = ?
	`, key).Scan(&p.Key, &value, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	p.Value = json.RawMessage(value)
	return &p, nil
}

// ListPreferences returns all preferences ordered by key.
func ListPreferences(ctx context.Context, db *sql.DB) ([]Preference, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value, updated_at FROM user_preferences ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prefs []Preference
	for rows.Next() {
		var (
			p     Preference
			value string
		)
		if err := rows.Scan(&p.Key, &value, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Value = json.RawMessage(value)
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// DeletePreference removes key. Reports whether it existed.
func DeletePreference(ctx context.Context, db *sql.DB, key string) (bool, error) {
	var affected int64
	err := RetryWithBackoffContext(ctx, func() error {
		res, err := db.ExecContext(ctx, `DELETE FROM user_preferences WHERE key = ?`, key)
		if err != nil {
			return fmt.Errorf("failed to delete preference: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected > 0, err
}
