package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/analyticket/analyticket/internal/clock"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/output"
	"github.com/analyticket/analyticket/internal/realtime"
)

// watchLine is one JSONL record written by watch.
type watchLine struct {
	Kind    string                  `json:"kind"`
	Channel string                  `json:"channel"`
	Status  models.ConnectionStatus `json:"status,omitempty"`
	Event   *models.RealtimeEvent   `json:"event,omitempty"`
	Typing  []string                `json:"typing,omitempty"`
	At      time.Time               `json:"at"`
}

// lineWriter serializes JSONL writes from delivery goroutines.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{enc: json.NewEncoder(w)}
}

func (w *lineWriter) write(l watchLine) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.enc.Encode(l)
}

// changeInvalidations maps a change on table to the cache prefixes it makes
// stale.
func changeInvalidations(ev models.RealtimeEvent) []string {
	switch ev.Type {
	case models.EventInsert, models.EventUpdate, models.EventDelete:
	default:
		return nil
	}
	switch ev.Table {
	case "tickets":
		prefixes := []string{"tickets:list:"}
		if ev.RecordID != "" {
			prefixes = append(prefixes, "tickets:"+ev.RecordID)
		}
		return prefixes
	case "ticket_messages":
		return []string{"tickets:"}
	case "notifications":
		return []string{"notifications:"}
	default:
		return nil
	}
}

func watchChannels(cmd *cobra.Command, args []string) ([]string, error) {
	table, _ := cmd.Flags().GetString("table")
	filter, _ := cmd.Flags().GetString("filter")

	seen := map[string]bool{}
	var channels []string
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c != "" && !seen[c] {
			seen[c] = true
			channels = append(channels, c)
		}
	}
	for _, a := range args {
		add(a)
	}
	if table != "" {
		add(realtime.ChannelName(table, filter))
	} else if filter != "" {
		return nil, errors.New("--filter requires --table")
	}
	if len(channels) == 0 {
		return nil, errors.New("at least one channel or --table is required")
	}
	return channels, nil
}

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [channel...]",
		Short: "Stream realtime events and connection status as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			channels, err := watchChannels(cmd, args)
			if err != nil {
				return cmdErr(err)
			}
			duration, _ := cmd.Flags().GetDuration("duration")
			if duration < 0 {
				return cmdErr(errors.New("--duration must be >= 0"))
			}
			invalidate, _ := cmd.Flags().GetBool("invalidate")

			ctx, cancel := timeoutContext(commandContext(cmd), duration)
			defer cancel()

			return withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				manager, _, err := rt.Realtime()
				if err != nil {
					return err
				}
				return runWatch(ctx, rt, manager, channels, invalidate, newLineWriter(os.Stdout))
			})
		},
	}

	cmd.Flags().String("table", "", "Watch changes on a table (channel table:<name>)")
	cmd.Flags().String("filter", "", "Row filter appended to the table channel (e.g. ticket_id=eq.42)")
	cmd.Flags().Duration("duration", 0, "Stop after this long, 0 to run until interrupted")
	cmd.Flags().Bool("invalidate", true, "Invalidate cached views when change events arrive")

	return cmd
}

func runWatch(ctx context.Context, rt *clientRuntime, manager *realtime.Manager, channels []string, invalidate bool, w *lineWriter) error {
	typing := realtime.NewTypingTracker(clock.Real())

	handles := make([]*realtime.Handle, 0, len(channels))
	defer func() {
		for _, h := range handles {
			_ = h.Unsubscribe()
		}
	}()

	for _, channel := range channels {
		onEvent := func(ev models.RealtimeEvent) {
			line := watchLine{Kind: "event", Channel: channel, Event: &ev, At: time.Now().UTC()}
			if ev.Type == models.EventTyping {
				typing.Observe(ev)
				line.Typing = typing.Typing(channel)
			}
			if invalidate {
				for _, prefix := range changeInvalidations(ev) {
					rt.cache.Invalidate(ctx, prefix)
				}
			}
			w.write(line)
		}
		onStatus := func(st models.ConnectionStatus) {
			w.write(watchLine{Kind: "status", Channel: channel, Status: st, At: time.Now().UTC()})
		}
		h, err := manager.Subscribe(ctx, channel, onEvent, realtime.OnStatus(onStatus))
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", channel, err)
		}
		handles = append(handles, h)
	}

	// Watching ends by deadline or interrupt; neither is a failure.
	<-ctx.Done()
	return nil
}

// NewPublishCmd creates the publish command.
func NewPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <channel>",
		Short: "Publish an event to a realtime channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, err := requireKeyArg(args, "channel")
			if err != nil {
				return cmdErr(err)
			}
			typRaw, _ := cmd.Flags().GetString("type")
			payloadRaw, _ := cmd.Flags().GetString("payload")
			sender, _ := cmd.Flags().GetString("sender")
			if sender == "" {
				sender = resolveUserID(cmd)
			}

			ev := models.RealtimeEvent{Type: models.RealtimeEventType(strings.TrimSpace(typRaw)), Sender: sender}
			if ev.Type == "" {
				return cmdErr(errors.New("--type is required"))
			}
			if payloadRaw != "" {
				payload, err := normalizeJSON([]byte(payloadRaw))
				if err != nil {
					return cmdErr(fmt.Errorf("--payload: %w", err))
				}
				ev.Payload = payload
			}
			ctx := commandContext(cmd)

			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				_, pub, err := rt.Realtime()
				if err != nil {
					return err
				}
				return pub.Publish(ctx, channel, ev)
			}); err != nil {
				return err
			}

			type resp struct {
				Channel string                   `json:"channel"`
				Type    models.RealtimeEventType `json:"type"`
				Sender  string                   `json:"sender,omitempty"`
			}
			return output.PrintSuccess(resp{Channel: channel, Type: ev.Type, Sender: sender})
		},
	}

	cmd.Flags().String("type", string(models.EventMessage), "Event type (e.g. message, typing, reaction)")
	cmd.Flags().String("payload", "", "JSON payload")
	cmd.Flags().String("sender", "", "Sender id (default: --user or $ANALYTICKET_USER)")

	return cmd
}

// timeoutContext bounds ctx when d is positive.
func timeoutContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
