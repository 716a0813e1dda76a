package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"condo-assistant/internal/domain"
)

const (
	pkUnregistered = "AUDIT#UNREGISTERED"
	skPrefixMsg    = "MSG#"
)

// AuditLog appends immutable message records partitioned by tenant.
type AuditLog struct {
	table
}

// NewAuditLog creates an AuditLog over the given table.
func NewAuditLog(api dynamodbAPI, tableName string) (*AuditLog, error) {
	t, err := newTable(api, tableName)
	if err != nil {
		return nil, err
	}
	return &AuditLog{table: t}, nil
}

// auditPK returns the tenant's private partition for registered records and
// the shared unregistered partition otherwise.
func auditPK(rec domain.AuditRecord) string {
	if rec.Registered {
		return "AUDIT#TENANT#" + rec.TenantID + "#PROPERTY#" + rec.PropertyID
	}
	return pkUnregistered
}

func auditSK(rec domain.AuditRecord) string {
	return skPrefixMsg + rec.Timestamp.UTC().Format(time.RFC3339Nano) + "#" + rec.ID
}

// Append writes one record. Existing records are never overwritten.
func (l *AuditLog) Append(ctx context.Context, rec domain.AuditRecord) error {
	if rec.ID == "" {
		return errors.New("repository: Append: record id is required")
	}
	item, err := marshalItem(rec, auditPK(rec), auditSK(rec))
	if err != nil {
		return fmt.Errorf("repository: Append encode: %w", err)
	}
	_, err = l.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.name),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}
