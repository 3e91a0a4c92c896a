package models

import "time"

// TicketStatus is the workflow state of a support ticket.
type TicketStatus string

// Ticket statuses as stored by the backend.
const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
)

// Ticket is the list/detail projection read by the client.
type Ticket struct {
	ID         string       `json:"id" cbor:"id"`
	Title      string       `json:"title" cbor:"title"`
	Status     TicketStatus `json:"status" cbor:"status"`
	Priority   string       `json:"priority" cbor:"priority"`
	CategoryID string       `json:"category_id,omitempty" cbor:"category_id"`
	AssignedTo string       `json:"assigned_to,omitempty" cbor:"assigned_to"`
	CreatedBy  string       `json:"created_by" cbor:"created_by"`
	CreatedAt  time.Time    `json:"created_at" cbor:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" cbor:"updated_at"`
}

// TicketMessage is one chat message inside a ticket.
type TicketMessage struct {
	ID         string    `json:"id" cbor:"id"`
	TicketID   string    `json:"ticket_id" cbor:"ticket_id"`
	SenderID   string    `json:"sender_id" cbor:"sender_id"`
	Body       string    `json:"body" cbor:"body"`
	IsInternal bool      `json:"is_internal" cbor:"is_internal"`
	CreatedAt  time.Time `json:"created_at" cbor:"created_at"`
}

// Notification is an in-app notification for a user.
type Notification struct {
	ID        string    `json:"id" cbor:"id"`
	UserID    string    `json:"user_id" cbor:"user_id"`
	TicketID  string    `json:"ticket_id,omitempty" cbor:"ticket_id"`
	Type      string    `json:"type" cbor:"type"`
	Message   string    `json:"message" cbor:"message"`
	Read      bool      `json:"read" cbor:"read"`
	CreatedAt time.Time `json:"created_at" cbor:"created_at"`
}

// TicketFilter narrows ListTickets.
type TicketFilter struct {
	Status     TicketStatus
	AssignedTo string
	Limit      int
}
