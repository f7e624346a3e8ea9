package outbox

import "time"

// Trigger kinds.
const (
	KindAnalysis      = "analysis"
	KindTranscription = "transcription"
)

// Trigger statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Trigger is a durable request to notify a downstream processor. Rows are
// written in the same transaction as the message that caused them, so a
// crash between commit and dispatch loses nothing.
type Trigger struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id,omitempty"`
	Status         string    `json:"status"`
	Attempts       int       `json:"attempts"`
	NextAttemptAt  time.Time `json:"next_attempt_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
