package conversation

import (
	"errors"
	"time"
)

const (
	StatusPending = "pending"
	StatusOpen    = "open"
	StatusClosed  = "closed"
)

// ErrNotFound indicates no conversation matches the given id.
var ErrNotFound = errors.New("conversation not found")

// Conversation is a bounded exchange with one contact or one group. At most
// one non-closed conversation exists per tenant and target.
type Conversation struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	InstanceID      string    `json:"instance_id"`
	ContactID       string    `json:"contact_id,omitempty"`
	GroupID         string    `json:"group_id,omitempty"`
	Status          string    `json:"status"`
	AssignedAgentID string    `json:"assigned_agent_id,omitempty"`
	UnreadCount     int       `json:"unread_count"`
	LastMessageAt   time.Time `json:"last_message_at,omitempty"`
	LastMessageBody string    `json:"last_message_body,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Active reports whether the conversation still accepts routing.
func (c Conversation) Active() bool {
	return c.Status == StatusPending || c.Status == StatusOpen
}

// Target identifies where a conversation routes to. Exactly one of
// ContactID or GroupID is set.
type Target struct {
	TenantID   string
	InstanceID string
	ContactID  string
	GroupID    string
}

// ListFilter narrows conversation listings for the agent inbox.
type ListFilter struct {
	TenantID string
	Status   string
	Limit    int
	Offset   int
}
