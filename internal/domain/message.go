package domain

import "time"

// MessageKind classifies an inbound message before dispatch.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindDocument MessageKind = "document"
	KindOther    MessageKind = "other"
)

// IsMedia reports whether the kind carries an attachment the pipeline accepts.
func (k MessageKind) IsMedia() bool {
	return k == KindImage || k == KindDocument
}

// MediaRef points at provider-hosted media.
type MediaRef struct {
	ID       string `json:"id,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// InboundMessage is a single message received from the messaging provider.
type InboundMessage struct {
	ID        string      `json:"id"`
	From      string      `json:"from"`
	Kind      MessageKind `json:"kind"`
	RawType   string      `json:"rawType,omitempty"`
	Text      string      `json:"text,omitempty"`
	Media     *MediaRef   `json:"media,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// MediaType is the outbound attachment type.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaDocument MediaType = "document"
)

// OutboundMedia is a rich-media reply referenced by public link.
type OutboundMedia struct {
	Type     MediaType `json:"type"`
	Link     string    `json:"link"`
	Caption  string    `json:"caption,omitempty"`
	Filename string    `json:"filename,omitempty"`
}
