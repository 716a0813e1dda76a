package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"condo-assistant/internal/domain"
)

const (
	skContext  = "CONTEXT"
	skInbound  = "INBOUND"
	inboundTTL = 24 * time.Hour
)

// ContextStore persists one conversation context per phone number.
type ContextStore struct {
	table
	now func() time.Time
}

// NewContextStore creates a ContextStore over the given table.
func NewContextStore(api dynamodbAPI, tableName string) (*ContextStore, error) {
	t, err := newTable(api, tableName)
	if err != nil {
		return nil, err
	}
	return &ContextStore{table: t, now: time.Now}, nil
}

func phonePK(phone string) string {
	return "PHONE#" + phone
}

func inboundPK(messageID string) string {
	return "INBOUND#" + messageID
}

// Get returns the stored context, or a fresh INITIAL context (not persisted)
// when the phone number has none.
func (s *ContextStore) Get(ctx context.Context, phone string) (*domain.Conversation, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.name),
		Key:            key(phonePK(phone), skContext),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: Get context: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.NewConversation(phone), nil
	}
	conv, err := itemToConversation(phone, out.Item)
	if err != nil {
		return nil, fmt.Errorf("repository: Get context decode: %w", err)
	}
	return conv, nil
}

// Save merges the conversation into the stored item and stamps the
// interaction time. Attributes outside the conversation fields are left
// untouched. The write is conditioned on the version read by Get; a
// concurrent writer makes it fail with ErrConflict.
func (s *ContextStore) Save(ctx context.Context, conv *domain.Conversation) error {
	if conv == nil || conv.Phone == "" {
		return fmt.Errorf("repository: Save context: phone is required")
	}
	data := conv.Data
	if data == nil {
		data = domain.NoData{}
	}
	encoded, err := attributevalue.MarshalWithOptions(data, jsonTags)
	if err != nil {
		return fmt.Errorf("repository: Save context encode: %w", err)
	}

	now := s.now().UTC()
	next := conv.Version + 1
	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.name),
		Key:                 key(phonePK(conv.Phone), skContext),
		UpdateExpression:    aws.String("SET #state = :state, dataKind = :kind, #data = :data, lastInteraction = :now, #version = :next, createdAt = if_not_exists(createdAt, :now)"),
		ConditionExpression: aws.String("attribute_not_exists(PK) OR #version = :expected"),
		ExpressionAttributeNames: map[string]string{
			"#state":   "state",
			"#data":    "data",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":state":    &types.AttributeValueMemberS{Value: string(conv.State)},
			":kind":     &types.AttributeValueMemberS{Value: string(data.Kind())},
			":data":     encoded,
			":now":      &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			":next":     numberValue(next),
			":expected": numberValue(conv.Version),
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("repository: Save context %s: %w", conv.Phone, ErrConflict)
		}
		return fmt.Errorf("repository: Save context: %w", err)
	}
	conv.Version = next
	conv.LastInteraction = now
	conv.Persisted = true
	return nil
}

// MarkInbound records a provider message id so redeliveries are skipped.
// It returns ErrDuplicate when the id was already recorded.
func (s *ContextStore) MarkInbound(ctx context.Context, messageID string) error {
	if messageID == "" {
		return nil
	}
	now := s.now().UTC()
	item := key(inboundPK(messageID), skInbound)
	item["receivedAt"] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)}
	item["ttl"] = numberValue(now.Add(inboundTTL).Unix())

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.name),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("repository: MarkInbound: %w", err)
	}
	return nil
}

func itemToConversation(phone string, item map[string]types.AttributeValue) (*domain.Conversation, error) {
	state, err := strAttr(item, "state")
	if err != nil {
		return nil, err
	}
	version, err := int64Attr(item, "version")
	if err != nil {
		return nil, err
	}
	kind := domain.KindNone
	if k, err := strAttr(item, "dataKind"); err == nil && k != "" {
		kind = domain.DataKind(k)
	}
	data, err := decodeStateData(kind, item["data"])
	if err != nil {
		return nil, err
	}

	conv := &domain.Conversation{
		Phone:     phone,
		Version:   version,
		Persisted: true,
	}
	if last, err := timeAttr(item, "lastInteraction"); err == nil {
		conv.LastInteraction = last
	}
	if err := conv.Set(domain.State(state), data); err != nil {
		return nil, err
	}
	return conv, nil
}

func decodeStateData(kind domain.DataKind, av types.AttributeValue) (domain.StateData, error) {
	switch kind {
	case domain.KindNone:
		return domain.NoData{}, nil
	case domain.KindEmail:
		return decodeAs[domain.EmailData](kind, av)
	case domain.KindCandidates:
		return decodeAs[domain.CandidatesData](kind, av)
	case domain.KindResolved:
		return decodeAs[domain.ResolvedData](kind, av)
	case domain.KindCharges:
		return decodeAs[domain.ChargesData](kind, av)
	case domain.KindVoucher:
		return decodeAs[domain.VoucherData](kind, av)
	case domain.KindDocuments:
		return decodeAs[domain.DocumentsData](kind, av)
	}
	return nil, fmt.Errorf("repository: unknown data kind %q", kind)
}

func decodeAs[T domain.StateData](kind domain.DataKind, av types.AttributeValue) (domain.StateData, error) {
	if av == nil {
		return nil, fmt.Errorf("repository: missing data for kind %q", kind)
	}
	var d T
	if err := attributevalue.UnmarshalWithOptions(av, &d, jsonTagsDecode); err != nil {
		return nil, fmt.Errorf("repository: decode %s data: %w", kind, err)
	}
	return d, nil
}
