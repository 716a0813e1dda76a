package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"condo-assistant/internal/domain"
	"condo-assistant/internal/metrics"
)

// Sender delivers messages through the messaging provider and returns the
// provider message id.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendMedia(ctx context.Context, to string, m domain.OutboundMedia) (string, error)
}

// AuditAppender persists audit records.
type AuditAppender interface {
	Append(ctx context.Context, rec domain.AuditRecord) error
}

// Dispatcher sends replies and keeps the audit trail. Audit writes never
// fail the caller.
type Dispatcher struct {
	sender Sender
	audit  AuditAppender
	log    zerolog.Logger
	now    func() time.Time
	newID  func() string
}

func NewDispatcher(s Sender, a AuditAppender, log zerolog.Logger) (*Dispatcher, error) {
	if s == nil {
		return nil, errors.New("dispatch: sender must not be nil")
	}
	if a == nil {
		return nil, errors.New("dispatch: audit appender must not be nil")
	}
	return &Dispatcher{
		sender: s,
		audit:  a,
		log:    log.With().Str("component", "dispatch").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// SendText delivers body to the conversation's phone and audits it.
func (d *Dispatcher) SendText(ctx context.Context, conv *domain.Conversation, body string) error {
	providerID, err := d.sender.SendText(ctx, conv.Phone, body)
	if err != nil {
		metrics.OutboundMessagesTotal.WithLabelValues("text", "error").Inc()
		return err
	}
	metrics.OutboundMessagesTotal.WithLabelValues("text", "ok").Inc()
	d.record(ctx, domain.DirectionOut, conv, domain.AuditPayload{
		Kind:              "text",
		Text:              body,
		ProviderMessageID: providerID,
	})
	return nil
}

// SendMedia delivers an image or document reply and audits it.
func (d *Dispatcher) SendMedia(ctx context.Context, conv *domain.Conversation, m domain.OutboundMedia) error {
	providerID, err := d.sender.SendMedia(ctx, conv.Phone, m)
	if err != nil {
		metrics.OutboundMessagesTotal.WithLabelValues(string(m.Type), "error").Inc()
		return err
	}
	metrics.OutboundMessagesTotal.WithLabelValues(string(m.Type), "ok").Inc()
	media := m
	d.record(ctx, domain.DirectionOut, conv, domain.AuditPayload{
		Kind:              string(m.Type),
		Text:              m.Caption,
		Outbound:          &media,
		ProviderMessageID: providerID,
	})
	return nil
}

// RecordInbound audits a received message against the conversation as it
// was when the message arrived.
func (d *Dispatcher) RecordInbound(ctx context.Context, conv *domain.Conversation, msg domain.InboundMessage) {
	kind := string(msg.Kind)
	if msg.Kind == domain.KindOther && msg.RawType != "" {
		kind = msg.RawType
	}
	d.record(ctx, domain.DirectionIn, conv, domain.AuditPayload{
		Kind:              kind,
		Text:              msg.Text,
		Media:             msg.Media,
		ProviderMessageID: msg.ID,
	})
}

func (d *Dispatcher) record(ctx context.Context, dir domain.Direction, conv *domain.Conversation, payload domain.AuditPayload) {
	rec := domain.NewAuditRecord(d.newID(), dir, conv, payload, d.now())
	if err := d.audit.Append(ctx, rec); err != nil {
		d.log.Error().Err(err).
			Str("phone", conv.Phone).
			Str("direction", string(dir)).
			Str("state", string(conv.State)).
			Msg("audit append failed")
	}
}
