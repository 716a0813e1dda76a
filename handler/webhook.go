package handler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"condo-assistant/internal/domain"
)

// webhookPayload is the WhatsApp Cloud API notification envelope.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string      `json:"field"`
			Value changeValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type changeValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		PhoneNumberID string `json:"phone_number_id"`
	} `json:"metadata"`
	Messages []waMessage       `json:"messages"`
	Statuses []json.RawMessage `json:"statuses"`
}

type waMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
}

type waReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type waMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image       *waMedia `json:"image"`
	Document    *waMedia `json:"document"`
	Interactive *struct {
		Type        string   `json:"type"`
		ButtonReply *waReply `json:"button_reply"`
		ListReply   *waReply `json:"list_reply"`
	} `json:"interactive"`
	Button *struct {
		Text string `json:"text"`
	} `json:"button"`
}

// parseMessages flattens every message in the notification. Status updates
// and other change fields carry no messages and are skipped.
func parseMessages(body []byte) ([]domain.InboundMessage, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("handler: decode webhook: %w", err)
	}
	var out []domain.InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				out = append(out, toInbound(m))
			}
		}
	}
	return out, nil
}

func toInbound(m waMessage) domain.InboundMessage {
	msg := domain.InboundMessage{
		ID:      m.ID,
		From:    m.From,
		RawType: m.Type,
		Kind:    domain.KindOther,
	}
	if sec, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		msg.Timestamp = time.Unix(sec, 0).UTC()
	}

	switch {
	case m.Type == "text" && m.Text != nil:
		msg.Kind = domain.KindText
		msg.Text = m.Text.Body
	case m.Type == "image" && m.Image != nil:
		msg.Kind = domain.KindImage
		msg.Media = mediaRef(m.Image)
	case m.Type == "document" && m.Document != nil:
		msg.Kind = domain.KindDocument
		msg.Media = mediaRef(m.Document)
	case m.Type == "interactive" && m.Interactive != nil:
		// Replies to interactive lists and buttons are read as the chosen title.
		if r := firstReply(m.Interactive.ButtonReply, m.Interactive.ListReply); r != nil {
			msg.Kind = domain.KindText
			msg.Text = r.Title
		}
	case m.Type == "button" && m.Button != nil:
		msg.Kind = domain.KindText
		msg.Text = m.Button.Text
	}
	return msg
}

func mediaRef(m *waMedia) *domain.MediaRef {
	return &domain.MediaRef{
		ID:       m.ID,
		MimeType: strings.TrimSpace(strings.Split(m.MimeType, ";")[0]),
		Filename: m.Filename,
		Caption:  m.Caption,
	}
}

func firstReply(replies ...*waReply) *waReply {
	for _, r := range replies {
		if r != nil {
			return r
		}
	}
	return nil
}
