package commands

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/analyticket/analyticket/internal/app"
	"github.com/analyticket/analyticket/internal/backend"
	"github.com/analyticket/analyticket/internal/output"
	"github.com/analyticket/analyticket/internal/store"
)

// doctorProbeTimeout bounds each remote check.
const doctorProbeTimeout = 3 * time.Second

type probe struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func probeOf(err error) probe {
	if err != nil {
		return probe{Error: err.Error()}
	}
	return probe{OK: true}
}

func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, the local database, Redis and the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			dbPath, dbSource, err := app.ResolveDBPathDetailed()
			if err != nil {
				return cmdErr(err)
			}
			settings := app.EffectiveClientSettings()

			var (
				dbOK          bool
				dbErr         string
				schemaCurrent int64
				schemaLatest  int64
				diagnostics   []store.Diagnostic
			)

			db, err := store.InitDBWithPath(dbPath)
			if err != nil {
				dbErr = err.Error()
			} else {
				dbOK = true
				defer db.Close()

				schemaCurrent, schemaLatest, _ = store.SchemaVersion(db)
				diagnostics, err = store.RunDiagnostics(ctx, db, time.Now())
				if err != nil {
					diagnostics = append(diagnostics, store.Diagnostic{
						Level: "error", Code: "DIAGNOSTICS_FAILED", Message: err.Error(),
					})
				}
			}

			redisProbe := probeRedis(ctx, settings.RedisURL)

			var backendProbe *probe
			if settings.DatabaseURL != "" {
				p := probeBackend(ctx, settings.DatabaseURL)
				backendProbe = &p
			}

			type resp struct {
				DBPath        string             `json:"db_path"`
				DBSource      string             `json:"db_source"`
				DBOK          bool               `json:"db_ok"`
				DBErr         string             `json:"db_error,omitempty"`
				SchemaCurrent int64              `json:"schema_version"`
				SchemaLatest  int64              `json:"schema_latest"`
				Diagnostics   []store.Diagnostic `json:"diagnostics,omitempty"`
				Settings      app.ClientSettings `json:"settings"`
				Redis         probe              `json:"redis"`
				Backend       *probe             `json:"backend,omitempty"`
				Hint          string             `json:"hint,omitempty"`
			}
			hint := ""
			switch {
			case !dbOK:
				hint = "If this is running in a sandboxed environment, set db_path to a writable location or use --db-path."
			case !redisProbe.OK:
				hint = "Redis is unreachable: the session cache tier is disabled and reads fall back to the local tier."
			}
			return output.PrintSuccess(resp{
				DBPath:        dbPath,
				DBSource:      dbSource,
				DBOK:          dbOK,
				DBErr:         dbErr,
				SchemaCurrent: schemaCurrent,
				SchemaLatest:  schemaLatest,
				Diagnostics:   diagnostics,
				Settings:      redactSettings(settings),
				Redis:         redisProbe,
				Backend:       backendProbe,
				Hint:          hint,
			})
		},
	}

	return cmd
}

func probeRedis(ctx context.Context, url string) probe {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return probeOf(err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, doctorProbeTimeout)
	defer cancel()
	return probeOf(client.Ping(ctx).Err())
}

func probeBackend(ctx context.Context, url string) probe {
	ctx, cancel := context.WithTimeout(ctx, doctorProbeTimeout)
	defer cancel()

	c, err := backend.Open(ctx, url)
	if err == nil {
		_ = c.Close()
	}
	return probeOf(err)
}

// redactSettings hides credentials embedded in connection URLs.
func redactSettings(s app.ClientSettings) app.ClientSettings {
	if opts, err := redis.ParseURL(s.RedisURL); err == nil && opts.Password != "" {
		s.RedisURL = "redis://" + opts.Addr
	}
	if s.DatabaseURL != "" {
		s.DatabaseURL = "[redacted]"
	}
	return s
}
