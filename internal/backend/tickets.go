package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/analyticket/analyticket/internal/classify"
	"github.com/analyticket/analyticket/internal/models"
	"github.com/analyticket/analyticket/internal/realtime"
)

// List limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ErrNotFound is wrapped in the FetchError returned for a missing row.
var ErrNotFound = errors.New("not found")

func clampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}

const ticketColumns = `id, title, status, priority, COALESCE(category_id, ''), COALESCE(assigned_to, ''), created_by, created_at, updated_at`

func ticketQuery(f models.TicketFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.AssignedTo != "" {
		args = append(args, f.AssignedTo)
		where = append(where, fmt.Sprintf("assigned_to = $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + ticketColumns + " FROM tickets")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	args = append(args, clampLimit(f.Limit))
	fmt.Fprintf(&b, " ORDER BY updated_at DESC, id LIMIT $%d", len(args))
	return b.String(), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(s scanner) (models.Ticket, error) {
	var t models.Ticket
	var status string
	err := s.Scan(&t.ID, &t.Title, &status, &t.Priority, &t.CategoryID, &t.AssignedTo, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	t.Status = models.TicketStatus(status)
	return t, err
}

// ListTickets returns tickets matching f, most recently updated first.
func (c *Client) ListTickets(ctx context.Context, f models.TicketFilter) ([]models.Ticket, error) {
	query, args := ticketQuery(f)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify.Wrap("list", "tickets", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, classify.Wrap("list", "tickets", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify.Wrap("list", "tickets", err)
	}
	return out, nil
}

// GetTicket returns one ticket.
func (c *Client) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = $1", id)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ticket{}, &models.FetchError{
			Kind: models.ErrorKindDatabase, Op: "get", Resource: "ticket " + id, Err: ErrNotFound,
		}
	}
	if err != nil {
		return models.Ticket{}, classify.Wrap("get", "ticket "+id, err)
	}
	return t, nil
}

// ListTicketMessages returns a ticket's messages, oldest first. Internal
// notes are included only when includeInternal is set.
func (c *Client) ListTicketMessages(ctx context.Context, ticketID string, includeInternal bool, limit int) ([]models.TicketMessage, error) {
	query := `SELECT id, ticket_id, sender_id, body, is_internal, created_at
		FROM ticket_messages
		WHERE ticket_id = $1 AND ($2 OR NOT is_internal)
		ORDER BY created_at, id
		LIMIT $3`
	rows, err := c.db.QueryContext(ctx, query, ticketID, includeInternal, clampLimit(limit))
	if err != nil {
		return nil, classify.Wrap("list", "ticket_messages", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.TicketMessage{}
	for rows.Next() {
		var m models.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.SenderID, &m.Body, &m.IsInternal, &m.CreatedAt); err != nil {
			return nil, classify.Wrap("list", "ticket_messages", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify.Wrap("list", "ticket_messages", err)
	}
	return out, nil
}

// ListNotifications returns a user's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `SELECT id, user_id, COALESCE(ticket_id, ''), type, message, read, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC, id
		LIMIT $3`
	rows, err := c.db.QueryContext(ctx, query, userID, unreadOnly, clampLimit(limit))
	if err != nil {
		return nil, classify.Wrap("list", "notifications", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.TicketID, &n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, classify.Wrap("list", "notifications", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, classify.Wrap("list", "notifications", err)
	}
	return out, nil
}

// NotifyChange emits a change notification for a row of table, delivered to
// subscribers of realtime.ChannelName(table, "") on the Postgres transport.
func (c *Client) NotifyChange(ctx context.Context, table string, typ models.RealtimeEventType, recordID string) error {
	channel := realtime.ChannelName(table, "")
	payload, err := json.Marshal(models.RealtimeEvent{
		Channel: channel, Type: typ, Table: table, RecordID: recordID,
	})
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", realtime.NotifyChannel(channel), string(payload))
	return classify.Wrap("notify", table, err)
}
