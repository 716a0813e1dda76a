package domain

import "time"

// Direction of an audited message.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// AuditPayload is the message content kept in the audit trail.
type AuditPayload struct {
	Kind              string         `json:"kind"`
	Text              string         `json:"text,omitempty"`
	Media             *MediaRef      `json:"media,omitempty"`
	Outbound          *OutboundMedia `json:"outbound,omitempty"`
	ProviderMessageID string         `json:"providerMessageId,omitempty"`
}

// AuditRecord is one immutable inbound or outbound message. Registered
// records carry the resolved tenant and property; unregistered ones carry
// whatever identity input had been attempted.
type AuditRecord struct {
	ID         string       `json:"id"`
	Direction  Direction    `json:"direction"`
	Phone      string       `json:"phone"`
	Payload    AuditPayload `json:"payload"`
	State      State        `json:"state"`
	Timestamp  time.Time    `json:"timestamp"`
	Registered bool         `json:"registered"`
	TenantID   string       `json:"tenantId,omitempty"`
	PropertyID string       `json:"propertyId,omitempty"`
	Attempt    *Attempt     `json:"attempt,omitempty"`
}

// NewAuditRecord builds a record partitioned by the conversation as it is
// right now.
func NewAuditRecord(id string, dir Direction, conv *Conversation, payload AuditPayload, at time.Time) AuditRecord {
	rec := AuditRecord{
		ID:        id,
		Direction: dir,
		Phone:     conv.Phone,
		Payload:   payload,
		State:     conv.State,
		Timestamp: at.UTC(),
	}
	if ident, ok := conv.Identity(); ok && ident.Match.TenantID != "" && ident.Match.PropertyID != "" {
		rec.Registered = true
		rec.TenantID = ident.Match.TenantID
		rec.PropertyID = ident.Match.PropertyID
		return rec
	}
	attempt := conv.Attempted()
	rec.Attempt = &attempt
	return rec
}
