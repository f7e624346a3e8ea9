package message

import "time"

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
	DirectionSystem   = "system"
)

// Message is one persisted chat message.
type Message struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	InstanceID      string    `json:"instance_id"`
	ExternalID      string    `json:"external_id"`
	Direction       string    `json:"direction"`
	Kind            string    `json:"kind"`
	Body            string    `json:"body"`
	MediaURL        string    `json:"media_url,omitempty"`
	SenderJID       string    `json:"sender_jid,omitempty"`
	SenderName      string    `json:"sender_name,omitempty"`
	SenderAvatarURL string    `json:"sender_avatar_url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// AppendInput carries one message to persist. SentAt is the provider's
// message timestamp; when zero the database clock is used.
type AppendInput struct {
	ConversationID  string
	InstanceID      string
	ExternalID      string
	Direction       string
	Kind            string
	Body            string
	MediaURL        string
	SenderJID       string
	SenderName      string
	SenderAvatarURL string
	SentAt          time.Time
}

// AppendParams is what the store receives: the message plus the trigger
// decisions the service already made.
type AppendParams struct {
	AppendInput

	AnalysisEvery     int
	WantTranscription bool
}

// AppendOutcome reports what one append did.
type AppendOutcome struct {
	Message             Message
	WasNew              bool
	TotalCount          int
	AnalysisQueued      bool
	TranscriptionQueued bool
}

// ListFilter pages through a conversation's history.
type ListFilter struct {
	ConversationID string
	Limit          int
	Offset         int
}
