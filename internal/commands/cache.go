package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/analyticket/analyticket/internal/cache"
	"github.com/analyticket/analyticket/internal/codec"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/output"
	"github.com/analyticket/analyticket/internal/store"
)

// defaultPruneGrace keeps recently expired rows around for degraded reads.
const defaultPruneGrace = 24 * time.Hour

// NewCacheCmd creates the cache command with subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the tiered cache",
		Long:  "Read and write the memory, session (Redis) and local (SQLite) cache tiers as one cache",
	}

	cmd.AddCommand(newCacheGetCmd())
	cmd.AddCommand(newCacheSetCmd())
	cmd.AddCommand(newCacheDeleteCmd())
	cmd.AddCommand(newCacheInvalidateCmd())
	cmd.AddCommand(newCachePurgeCmd())
	cmd.AddCommand(newCachePruneCmd())
	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheKeysCmd())
	cmd.AddCommand(newCacheLogoutCmd())

	return cmd
}

func requireKeyArg(args []string, what string) (string, error) {
	key := strings.TrimSpace(args[0])
	if key == "" {
		return "", fmt.Errorf("%s is required", what)
	}
	return key, nil
}

type cacheEntryView struct {
	Key       string      `json:"key"`
	Tier      models.Tier `json:"tier"`
	StoredAt  time.Time   `json:"stored_at"`
	TTL       string      `json:"ttl"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	Expired   bool        `json:"expired"`
	Value     any         `json:"value"`
}

func viewEntry(e models.CacheEntry, now time.Time) (cacheEntryView, error) {
	var value any
	if err := codec.Unmarshal(e.Payload, &value); err != nil {
		return cacheEntryView{}, err
	}
	v := cacheEntryView{
		Key:      e.Key,
		Tier:     e.Tier,
		StoredAt: e.StoredAt,
		TTL:      e.TTL.String(),
		Expired:  e.Expired(now),
		Value:    value,
	}
	if e.TTL > 0 {
		exp := e.ExpiresAt()
		v.ExpiresAt = &exp
	}
	return v, nil
}

func newCacheGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a fresh cache entry from the fastest tier holding it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := requireKeyArg(args, "key")
			if err != nil {
				return cmdErr(err)
			}
			ctx := commandContext(cmd)

			type resp struct {
				Found bool            `json:"found"`
				Entry *cacheEntryView `json:"entry,omitempty"`
			}
			var out resp
			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				e, ok := rt.cache.Get(ctx, key)
				if !ok {
					return nil
				}
				v, err := viewEntry(e, time.Now())
				if err != nil {
					return err
				}
				out = resp{Found: true, Entry: &v}
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(out)
		},
	}
}

func newCacheSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Write a JSON (comments allowed) value to every cache tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := requireKeyArg(args, "key")
			if err != nil {
				return cmdErr(err)
			}
			if len(key) > store.MaxCacheKeyLength {
				return cmdErr(fmt.Errorf("cache key exceeds max length (%d)", store.MaxCacheKeyLength))
			}
			raw, _ := cmd.Flags().GetString("value")
			file, _ := cmd.Flags().GetString("value-file")
			value, err := readJSONValue(raw, file)
			if err != nil {
				return cmdErr(err)
			}
			ctx := commandContext(cmd)

			type resp struct {
				Key   string        `json:"key"`
				TTL   string        `json:"ttl"`
				Tiers []models.Tier `json:"tiers"`
			}
			var out resp
			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				if err := cache.SetValue(ctx, rt.cache, key, value); err != nil {
					return err
				}
				out = resp{Key: key, TTL: rt.cache.TTL().String(), Tiers: rt.cache.Tiers()}
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(out)
		},
	}

	cmd.Flags().String("value", "", "JSON value to cache")
	cmd.Flags().String("value-file", "", "Read the JSON value from this file instead of --value")
	cmd.MarkFlagsOneRequired("value", "value-file")
	cmd.MarkFlagsMutuallyExclusive("value", "value-file")

	return cmd
}

func newCacheDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key from every cache tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := requireKeyArg(args, "key")
			if err != nil {
				return cmdErr(err)
			}
			ctx := commandContext(cmd)

			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				return rt.cache.Delete(ctx, key)
			}); err != nil {
				return err
			}

			type resp struct {
				Key     string `json:"key"`
				Deleted bool   `json:"deleted"`
			}
			return output.PrintSuccess(resp{Key: key, Deleted: true})
		},
	}
}

func newCacheInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <prefix>",
		Short: "Delete every cached key starting with prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, err := requireKeyArg(args, "prefix")
			if err != nil {
				return cmdErr(err)
			}
			ctx := commandContext(cmd)

			var removed int
			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				removed = rt.cache.Invalidate(ctx, prefix)
				return nil
			}); err != nil {
				return err
			}

			type resp struct {
				Prefix  string `json:"prefix"`
				Removed int    `json:"removed"`
			}
			return output.PrintSuccess(resp{Prefix: prefix, Removed: removed})
		},
	}
}

func newCachePurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Clear every cache tier, including the local one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return cmdErr(errors.New("purge removes the offline copy as well; pass --yes to confirm"))
			}
			ctx := commandContext(cmd)

			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				return rt.cache.Purge(ctx)
			}); err != nil {
				return err
			}

			type resp struct {
				Purged bool `json:"purged"`
			}
			return output.PrintSuccess(resp{Purged: true})
		},
	}

	cmd.Flags().Bool("yes", false, "Confirm purging every tier")
	return cmd
}

func newCachePruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete local cache rows expired for longer than the grace period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			grace, _ := cmd.Flags().GetDuration("grace")
			if grace < 0 {
				return cmdErr(errors.New("--grace must be >= 0"))
			}
			ctx := commandContext(cmd)
			cutoff := time.Now().Add(-grace)

			var pruned int64
			if err := withDB(ctx, func(db *DB) error {
				n, err := store.PruneExpiredCache(ctx, db, cutoff)
				pruned = n
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Pruned int64     `json:"pruned"`
				Cutoff time.Time `json:"cutoff"`
			}
			return output.PrintSuccess(resp{Pruned: pruned, Cutoff: cutoff.UTC()})
		},
	}

	cmd.Flags().Duration("grace", defaultPruneGrace, "Keep rows that expired less than this long ago")
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache tiers and local cache counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			type resp struct {
				Tiers     []models.Tier    `json:"tiers"`
				TTL       string           `json:"ttl"`
				SessionID string           `json:"session_id,omitempty"`
				Local     store.CacheStats `json:"local"`
			}
			var out resp
			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				stats, err := store.GetCacheStats(ctx, rt.db, time.Now())
				if err != nil {
					return err
				}
				out = resp{Tiers: rt.cache.Tiers(), TTL: rt.cache.TTL().String(), Local: stats}
				if rt.session != nil {
					out.SessionID = rt.session.SessionID()
				}
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(out)
		},
	}
}

func newCacheKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys [prefix]",
		Short: "List keys held by the local tier",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			ctx := commandContext(cmd)

			var keys []string
			if err := withDB(ctx, func(db *DB) error {
				k, err := store.ListCacheKeys(ctx, db, prefix)
				keys = k
				return err
			}); err != nil {
				return err
			}

			type resp struct {
				Prefix string   `json:"prefix,omitempty"`
				Count  int      `json:"count"`
				Keys   []string `json:"keys"`
			}
			if keys == nil {
				keys = []string{}
			}
			return output.PrintSuccess(resp{Prefix: prefix, Count: len(keys), Keys: keys})
		},
	}
}

func newCacheLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Tear down the session cache tiers, keeping the local tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			sessionID := resolveSessionID(cmd)

			if err := withRuntime(ctx, sessionID, func(rt *clientRuntime) error {
				return rt.Logout(ctx)
			}); err != nil {
				return err
			}

			type resp struct {
				SessionID string `json:"session_id"`
				LoggedOut bool   `json:"logged_out"`
			}
			return output.PrintSuccess(resp{SessionID: sessionID, LoggedOut: true})
		},
	}
}
