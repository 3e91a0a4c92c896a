package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/analyticket/analyticket/internal/backend"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/output"
	"github.com/analyticket/analyticket/internal/realtime"
)

// NewTicketsCmd creates the tickets command with subcommands.
func NewTicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Read tickets with retries and cached fallback",
		Long:  "Read tickets from the backend. Failed reads retry automatically and fall back to the best cached copy.",
	}

	cmd.AddCommand(newTicketsListCmd())
	cmd.AddCommand(newTicketsGetCmd())
	cmd.AddCommand(newTicketsMessagesCmd())
	cmd.AddCommand(newTicketsNotifyCmd())

	return cmd
}

func addLoadFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-wait", false, "Fall back to the cache after the first failure instead of waiting out retries")
	cmd.Flags().Duration("max-stale", 0, "Oldest expired cache entry to serve on failure, 0 for no limit")
}

func readLoadOptions(cmd *cobra.Command) (loadOptions, error) {
	noWait, _ := cmd.Flags().GetBool("no-wait")
	maxStale, _ := cmd.Flags().GetDuration("max-stale")
	if maxStale < 0 {
		return loadOptions{}, errors.New("--max-stale must be >= 0")
	}
	if maxStale == 0 {
		maxStale = -1
	}
	return loadOptions{wait: !noWait, maxStale: maxStale}, nil
}

func parseTicketStatus(raw string) (models.TicketStatus, error) {
	switch s := models.TicketStatus(strings.TrimSpace(raw)); s {
	case "", models.TicketOpen, models.TicketInProgress, models.TicketResolved, models.TicketClosed:
		return s, nil
	default:
		return "", fmt.Errorf("invalid status %q", raw)
	}
}

// ticketsListKey is both the cache key and the loading operation id.
func ticketsListKey(f models.TicketFilter) string {
	return fmt.Sprintf("tickets:list:%s:%s:%d", f.Status, f.AssignedTo, f.Limit)
}

func newTicketsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statusRaw, _ := cmd.Flags().GetString("status")
			assignedTo, _ := cmd.Flags().GetString("assigned-to")
			limit, _ := cmd.Flags().GetInt("limit")

			status, err := parseTicketStatus(statusRaw)
			if err != nil {
				return cmdErr(err)
			}
			if limit < 0 {
				return cmdErr(errors.New("--limit must be >= 0"))
			}
			o, err := readLoadOptions(cmd)
			if err != nil {
				return cmdErr(err)
			}

			filter := models.TicketFilter{Status: status, AssignedTo: assignedTo, Limit: limit}
			ctx := commandContext(cmd)

			var resp loadResponse[[]models.Ticket]
			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				r, err := loadTracked(ctx, rt, ticketsListKey(filter), o, func(ctx context.Context) ([]models.Ticket, error) {
					c, err := rt.Backend(ctx)
					if err != nil {
						return nil, err
					}
					return c.ListTickets(ctx, filter)
				})
				resp = r
				return err
			}); err != nil {
				return err
			}
			return output.PrintSuccess(resp)
		},
	}

	cmd.Flags().String("status", "", "Filter by status: open|in_progress|resolved|closed")
	cmd.Flags().String("assigned-to", "", "Filter by assignee user id")
	cmd.Flags().Int("limit", backend.DefaultLimit, "Maximum tickets to return")
	addLoadFlags(cmd)

	return cmd
}

func newTicketsGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get one ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return cmdErr(errors.New("ticket id is required"))
			}
			o, err := readLoadOptions(cmd)
			if err != nil {
				return cmdErr(err)
			}
			ctx := commandContext(cmd)

			var resp loadResponse[models.Ticket]
			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				r, err := loadTracked(ctx, rt, "tickets:"+id, o, func(ctx context.Context) (models.Ticket, error) {
					c, err := rt.Backend(ctx)
					if err != nil {
						return models.Ticket{}, err
					}
					return c.GetTicket(ctx, id)
				})
				resp = r
				return err
			}); err != nil {
				return err
			}
			return output.PrintSuccess(resp)
		},
	}

	addLoadFlags(cmd)
	return cmd
}

func newTicketsMessagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages <ticket-id>",
		Short: "List the chat messages of a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticketID := strings.TrimSpace(args[0])
			if ticketID == "" {
				return cmdErr(errors.New("ticket id is required"))
			}
			internal, _ := cmd.Flags().GetBool("include-internal")
			limit, _ := cmd.Flags().GetInt("limit")
			o, err := readLoadOptions(cmd)
			if err != nil {
				return cmdErr(err)
			}
			ctx := commandContext(cmd)
			key := fmt.Sprintf("tickets:%s:messages:%t:%d", ticketID, internal, limit)

			var resp loadResponse[[]models.TicketMessage]
			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				r, err := loadTracked(ctx, rt, key, o, func(ctx context.Context) ([]models.TicketMessage, error) {
					c, err := rt.Backend(ctx)
					if err != nil {
						return nil, err
					}
					return c.ListTicketMessages(ctx, ticketID, internal, limit)
				})
				resp = r
				return err
			}); err != nil {
				return err
			}
			return output.PrintSuccess(resp)
		},
	}

	cmd.Flags().Bool("include-internal", false, "Include internal staff notes")
	cmd.Flags().Int("limit", backend.DefaultLimit, "Maximum messages to return")
	addLoadFlags(cmd)

	return cmd
}

func parseEventType(raw string) (models.RealtimeEventType, error) {
	switch t := models.RealtimeEventType(strings.ToUpper(strings.TrimSpace(raw))); t {
	case models.EventInsert, models.EventUpdate, models.EventDelete:
		return t, nil
	default:
		return "", fmt.Errorf("invalid change type %q (want INSERT, UPDATE or DELETE)", raw)
	}
}

func newTicketsNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify <id>",
		Short: "Announce a ticket change to realtime subscribers and drop its cached views",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return cmdErr(errors.New("ticket id is required"))
			}
			typRaw, _ := cmd.Flags().GetString("type")
			typ, err := parseEventType(typRaw)
			if err != nil {
				return cmdErr(err)
			}
			ctx := commandContext(cmd)

			type resp struct {
				Channel     string                   `json:"channel"`
				Type        models.RealtimeEventType `json:"type"`
				RecordID    string                   `json:"record_id"`
				Invalidated int                      `json:"invalidated"`
			}
			var out resp
			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				c, err := rt.Backend(ctx)
				if err != nil {
					return err
				}
				if err := c.NotifyChange(ctx, "tickets", typ, id); err != nil {
					return err
				}
				n := rt.cache.Invalidate(ctx, "tickets:list:")
				n += rt.cache.Invalidate(ctx, "tickets:"+id+":")
				if err := rt.cache.Delete(ctx, "tickets:"+id); err != nil {
					rt.logger.Warn("cache delete failed", "key", "tickets:"+id, "error", err)
				}
				out = resp{Channel: realtime.ChannelName("tickets", ""), Type: typ, RecordID: id, Invalidated: n}
				return nil
			}); err != nil {
				return err
			}
			return output.PrintSuccess(out)
		},
	}

	cmd.Flags().String("type", string(models.EventUpdate), "Change type: INSERT|UPDATE|DELETE")
	return cmd
}

// notificationsKey is both the cache key and the loading operation id.
func notificationsKey(userID string, unread bool, limit int) string {
	return fmt.Sprintf("notifications:%s:%t:%d", userID, unread, limit)
}

// NewNotificationsCmd creates the notifications command.
func NewNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List in-app notifications for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUserID(cmd)
			if err != nil {
				return cmdErr(err)
			}
			unread, _ := cmd.Flags().GetBool("unread")
			limit, _ := cmd.Flags().GetInt("limit")
			o, err := readLoadOptions(cmd)
			if err != nil {
				return cmdErr(err)
			}
			ctx := commandContext(cmd)

			var resp loadResponse[[]models.Notification]
			if err := withRuntime(ctx, resolveSessionID(cmd), func(rt *clientRuntime) error {
				r, err := loadTracked(ctx, rt, notificationsKey(userID, unread, limit), o, func(ctx context.Context) ([]models.Notification, error) {
					c, err := rt.Backend(ctx)
					if err != nil {
						return nil, err
					}
					return c.ListNotifications(ctx, userID, unread, limit)
				})
				resp = r
				return err
			}); err != nil {
				return err
			}
			return output.PrintSuccess(resp)
		},
	}

	cmd.Flags().Bool("unread", false, "Only unread notifications")
	cmd.Flags().Int("limit", backend.DefaultLimit, "Maximum notifications to return")
	addLoadFlags(cmd)

	return cmd
}
