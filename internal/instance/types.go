package instance

import (
	"errors"
	"time"
)

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// ErrNotFound indicates no instance matches the given name.
var ErrNotFound = errors.New("instance not found")

// Instance is a configured channel session. Created and connected by an
// external connection manager; consumed read-only here except for the
// status flips delivered via connection.update events.
type Instance struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	APIKey    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Connected reports whether the instance session is active.
func (i Instance) Connected() bool {
	return i.Status == StatusConnected
}
