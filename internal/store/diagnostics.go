package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Diagnostic is a single finding reported by doctor.
type Diagnostic struct {
	Level           string `json:"level"` // "warning" or "error"
	Code            string `json:"code"`
	Message         string `json:"message"`
	SuggestedAction string `json:"suggested_action,omitempty"`
}

// expiredWarnRatio is the share of expired rows above which doctor suggests
// a prune.
const expiredWarnRatio = 0.5

// RunDiagnostics checks schema currency and cache health.
func RunDiagnostics(ctx context.Context, db *sql.DB, now time.Time) ([]Diagnostic, error) {
	var diags []Diagnostic

	current, latest, err := SchemaVersion(db)
	if err != nil {
		return nil, fmt.Errorf("schema version check: %w", err)
	}
	if current < latest {
		diags = append(diags, Diagnostic{
			Level:           "error",
			Code:            "SCHEMA_BEHIND",
			Message:         fmt.Sprintf("local schema at version %d, latest is %d", current, latest),
			SuggestedAction: "run any analyticket command to apply migrations",
		})
	}

	stats, err := GetCacheStats(ctx, db, now)
	if err != nil {
		return nil, fmt.Errorf("cache stats check: %w", err)
	}
	if stats.Entries > 0 && float64(stats.Expired)/float64(stats.Entries) > expiredWarnRatio {
		diags = append(diags, Diagnostic{
			Level:           "warning",
			Code:            "CACHE_MOSTLY_EXPIRED",
			Message:         fmt.Sprintf("%d of %d local cache entries are expired", stats.Expired, stats.Entries),
			SuggestedAction: "analyticket cache prune",
		})
	}

	return diags, nil
}
