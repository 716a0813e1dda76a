package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"condo-assistant/internal/domain"
)

const (
	// MaxResolveBatch is the largest batch Resolve accepts: each row needs a
	// delete and a put inside one 100-action transaction.
	MaxResolveBatch = 50
	purgeChunk      = 25
)

// DeletionStore keeps the sweeper's bookkeeping rows. Rows live in one
// partition per status and sort by deadline, so due and expired rows are
// plain key-range queries.
type DeletionStore struct {
	table
}

// NewDeletionStore creates a DeletionStore over the given table.
func NewDeletionStore(api dynamodbAPI, tableName string) (*DeletionStore, error) {
	t, err := newTable(api, tableName)
	if err != nil {
		return nil, err
	}
	return &DeletionStore{table: t}, nil
}

func deletionPK(status domain.DeletionStatus) string {
	return "STATUS#" + string(status)
}

func deletionSK(d domain.ScheduledDeletion) string {
	return d.Deadline.UTC().Format(time.RFC3339) + "#" + d.ID
}

// Schedule stores a new pending deletion.
func (s *DeletionStore) Schedule(ctx context.Context, d domain.ScheduledDeletion) error {
	if d.ID == "" || d.ObjectPath == "" || d.Bucket == "" {
		return errors.New("repository: Schedule: id, object path and bucket are required")
	}
	d.Status = domain.DeletionPending
	item, err := marshalItem(d, deletionPK(d.Status), deletionSK(d))
	if err != nil {
		return fmt.Errorf("repository: Schedule encode: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.name),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: Schedule: %w", err)
	}
	return nil
}

// DuePending returns at most limit pending rows whose deadline is at or
// before now, oldest first.
func (s *DeletionStore) DuePending(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledDeletion, error) {
	// "~" sorts after every id character, so rows due exactly now are included.
	upper := now.UTC().Format(time.RFC3339) + "#~"
	items, err := s.rangeQuery(ctx, domain.DeletionPending, upper, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: DuePending query: %w", err)
	}
	return decodeList[domain.ScheduledDeletion](items, "DuePending")
}

// Expired returns at most limit rows in the given status whose deadline is
// before cutoff.
func (s *DeletionStore) Expired(ctx context.Context, status domain.DeletionStatus, cutoff time.Time, limit int) ([]domain.ScheduledDeletion, error) {
	items, err := s.rangeQuery(ctx, status, cutoff.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("repository: Expired query: %w", err)
	}
	return decodeList[domain.ScheduledDeletion](items, "Expired")
}

func (s *DeletionStore) rangeQuery(ctx context.Context, status domain.DeletionStatus, upper string, limit int) ([]map[string]types.AttributeValue, error) {
	if limit <= 0 {
		return nil, nil
	}
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.name),
		KeyConditionExpression: aws.String("PK = :pk AND SK <= :upper"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":    &types.AttributeValueMemberS{Value: deletionPK(status)},
			":upper": &types.AttributeValueMemberS{Value: upper},
		},
		ScanIndexForward: aws.Bool(true),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return out.Items, nil
}

// Resolve commits the final status of a batch of previously pending rows in
// one transaction: either every row leaves the pending partition or none do.
func (s *DeletionStore) Resolve(ctx context.Context, rows []domain.ScheduledDeletion) error {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) > MaxResolveBatch {
		return fmt.Errorf("repository: Resolve: batch of %d exceeds %d", len(rows), MaxResolveBatch)
	}

	actions := make([]types.TransactWriteItem, 0, 2*len(rows))
	for _, row := range rows {
		if row.Status == domain.DeletionPending || row.Status == "" {
			return fmt.Errorf("repository: Resolve: row %s has no final status", row.ID)
		}
		item, err := marshalItem(row, deletionPK(row.Status), deletionSK(row))
		if err != nil {
			return fmt.Errorf("repository: Resolve encode: %w", err)
		}
		actions = append(actions,
			types.TransactWriteItem{
				Delete: &types.Delete{
					TableName:           aws.String(s.name),
					Key:                 key(deletionPK(domain.DeletionPending), deletionSK(row)),
					ConditionExpression: aws.String("attribute_exists(PK)"),
				},
			},
			types.TransactWriteItem{
				Put: &types.Put{
					TableName: aws.String(s.name),
					Item:      item,
				},
			},
		)
	}

	_, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: actions})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("repository: Resolve: %w", ErrConflict)
		}
		return fmt.Errorf("repository: Resolve: %w", err)
	}
	return nil
}

// Purge deletes bookkeeping rows in chunks of 25 and returns how many were
// removed. Rows DynamoDB reports as unprocessed are not counted.
func (s *DeletionStore) Purge(ctx context.Context, rows []domain.ScheduledDeletion) (int, error) {
	deleted := 0
	for start := 0; start < len(rows); start += purgeChunk {
		end := min(start+purgeChunk, len(rows))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, row := range rows[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key(deletionPK(row.Status), deletionSK(row))},
			})
		}
		out, err := s.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.name: reqs},
		})
		if err != nil {
			return deleted, fmt.Errorf("repository: Purge: %w", err)
		}
		unprocessed := 0
		if out != nil {
			unprocessed = len(out.UnprocessedItems[s.name])
		}
		deleted += len(reqs) - unprocessed
	}
	return deleted, nil
}
