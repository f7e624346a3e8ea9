package webhook

import (
	"encoding/json"
	"time"

	"github.com/chatlinehq/chatline/internal/instance"
)

// RawEvent is the outermost shape of a provider webhook delivery.
type RawEvent struct {
	Event    string          `json:"event"`
	Instance string          `json:"instance"`
	Data     json.RawMessage `json:"data"`
}

type rawKey struct {
	RemoteJid   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant"`
}

type rawMediaMessage struct {
	URL      string `json:"url"`
	Mimetype string `json:"mimetype"`
	Caption  string `json:"caption"`
	FileName string `json:"fileName"`
}

type rawMessageContent struct {
	Conversation        string           `json:"conversation"`
	ExtendedTextMessage *struct {
		Text string `json:"text"`
	} `json:"extendedTextMessage"`
	ImageMessage    *rawMediaMessage `json:"imageMessage"`
	VideoMessage    *rawMediaMessage `json:"videoMessage"`
	AudioMessage    *rawMediaMessage `json:"audioMessage"`
	DocumentMessage *rawMediaMessage `json:"documentMessage"`
	StickerMessage  *rawMediaMessage `json:"stickerMessage"`
	Base64          string           `json:"base64"`
}

type rawMessageData struct {
	Key              rawKey            `json:"key"`
	PushName         string            `json:"pushName"`
	MessageType      string            `json:"messageType"`
	Message          rawMessageContent `json:"message"`
	MessageTimestamp int64             `json:"messageTimestamp"`
}

type rawConnectionData struct {
	State string `json:"state"`
}

// Envelope is a normalized inbound message ready for routing.
type Envelope struct {
	Instance    instance.Instance
	TargetJID   string
	SenderJID   string
	IsGroup     bool
	FromMe      bool
	PushName    string
	ExternalID  string
	Kind        string
	Body        string
	MediaURL    string
	MediaBase64 string
	MimeType    string
	FileName    string
	Timestamp   time.Time
}

// ConnectionUpdate is a normalized connection state change.
type ConnectionUpdate struct {
	Instance instance.Instance
	Status   string
}

// Result kinds produced by the normalizer.
const (
	ResultMessage      = "message"
	ResultConnection   = "connection"
	ResultUnrecognized = "unrecognized"
)

// Result carries the outcome of normalizing one raw event. Exactly one of
// Message or Connection is meaningful, selected by Kind. Instance is set for
// every kind so callers can authenticate the delivery.
type Result struct {
	Kind       string
	Event      string
	Instance   instance.Instance
	Message    Envelope
	Connection ConnectionUpdate
}
