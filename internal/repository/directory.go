package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"condo-assistant/internal/domain"
)

const (
	skProperty      = "PROPERTY"
	skPrefixUser    = "USER#"
	skPrefixCharge  = "CHARGE#"
	skPrefixPayment = "PAYMENT#"
	skPrefixVoucher = "VOUCHER#"
)

// Directory reads the multi-tenant directory: tenants own properties, which
// own users, and each user owns charges, payments and vouchers.
type Directory struct {
	table
	lookupIndex string
}

// NewDirectory creates a Directory. lookupIndex is the GSI keyed by the
// normalized phone|email|unit lookup key with recordPath as range key.
func NewDirectory(api dynamodbAPI, tableName, lookupIndex string) (*Directory, error) {
	t, err := newTable(api, tableName)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(lookupIndex) == "" {
		return nil, errors.New("repository: lookup index must not be empty")
	}
	return &Directory{table: t, lookupIndex: lookupIndex}, nil
}

func propertyPK(tenantID, propertyID string) string {
	return "TENANT#" + tenantID + "#PROPERTY#" + propertyID
}

func userPK(tenantID, propertyID, userID string) string {
	return propertyPK(tenantID, propertyID) + "#USER#" + userID
}

// LookupKey joins already normalized identity fields into the value indexed
// by the lookup GSI.
func LookupKey(phone, email, unit string) string {
	return phone + "|" + email + "|" + unit
}

// FindUsers returns every user record whose lookup key matches exactly,
// ordered by record path.
func (d *Directory) FindUsers(ctx context.Context, lookupKey string) ([]domain.Match, error) {
	items, err := queryAll(ctx, d.api, &dynamodb.QueryInput{
		TableName:              aws.String(d.name),
		IndexName:              aws.String(d.lookupIndex),
		KeyConditionExpression: aws.String("lookupKey = :k"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: lookupKey},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: FindUsers query: %w", err)
	}

	matches := make([]domain.Match, 0, len(items))
	for _, item := range items {
		m, err := itemToMatch(item)
		if err != nil {
			return nil, fmt.Errorf("repository: FindUsers unmarshal: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func itemToMatch(item map[string]types.AttributeValue) (domain.Match, error) {
	tenantID, err := strAttr(item, "tenantId")
	if err != nil {
		return domain.Match{}, err
	}
	propertyID, err := strAttr(item, "propertyId")
	if err != nil {
		return domain.Match{}, err
	}
	userID, err := strAttr(item, "userId")
	if err != nil {
		return domain.Match{}, err
	}
	path, _ := strAttr(item, "recordPath")
	if path == "" {
		path = userPK(tenantID, propertyID, userID)
	}
	name, _ := strAttr(item, "name") // optional
	return domain.Match{
		TenantID:   tenantID,
		PropertyID: propertyID,
		UserID:     userID,
		UserName:   name,
		Path:       path,
	}, nil
}

type propertyRecord struct {
	Name      string            `json:"name"`
	Documents map[string]string `json:"documents"`
}

func (d *Directory) property(ctx context.Context, tenantID, propertyID string) (*propertyRecord, error) {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.name),
		Key:       key(propertyPK(tenantID, propertyID), skProperty),
	})
	if err != nil {
		return nil, err
	}
	if out == nil || len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var rec propertyRecord
	if err := unmarshalItem(out.Item, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// PropertyName returns the display name of a property.
func (d *Directory) PropertyName(ctx context.Context, tenantID, propertyID string) (string, error) {
	rec, err := d.property(ctx, tenantID, propertyID)
	if err != nil {
		return "", fmt.Errorf("repository: PropertyName: %w", err)
	}
	return rec.Name, nil
}

// DocumentCatalog returns the property's published documents keyed by
// catalog key. A property without a record has an empty catalog.
func (d *Directory) DocumentCatalog(ctx context.Context, tenantID, propertyID string) (map[domain.DocumentKey]string, error) {
	rec, err := d.property(ctx, tenantID, propertyID)
	if errors.Is(err, ErrNotFound) {
		return map[domain.DocumentKey]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repository: DocumentCatalog: %w", err)
	}
	catalog := make(map[domain.DocumentKey]string, len(rec.Documents))
	for k, ref := range rec.Documents {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		catalog[domain.DocumentKey(k)] = ref
	}
	return catalog, nil
}

// UnpaidCharges returns the user's charges still flagged as unpaid, ordered
// by charge key.
func (d *Directory) UnpaidCharges(ctx context.Context, tenantID, propertyID, userID string) ([]domain.Charge, error) {
	items, err := queryAll(ctx, d.api, &dynamodb.QueryInput{
		TableName:              aws.String(d.name),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		FilterExpression:       aws.String("#paid = :false"),
		ExpressionAttributeNames: map[string]string{
			"#paid": "paid",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(tenantID, propertyID, userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixCharge},
			":false":  &types.AttributeValueMemberBOOL{Value: false},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: UnpaidCharges query: %w", err)
	}
	return decodeList[domain.Charge](items, "UnpaidCharges")
}

// Charges returns every charge of the user.
func (d *Directory) Charges(ctx context.Context, tenantID, propertyID, userID string) ([]domain.Charge, error) {
	items, err := d.queryUser(ctx, userPK(tenantID, propertyID, userID), skPrefixCharge)
	if err != nil {
		return nil, fmt.Errorf("repository: Charges query: %w", err)
	}
	return decodeList[domain.Charge](items, "Charges")
}

// Payments returns every payment of the user.
func (d *Directory) Payments(ctx context.Context, tenantID, propertyID, userID string) ([]domain.Payment, error) {
	items, err := d.queryUser(ctx, userPK(tenantID, propertyID, userID), skPrefixPayment)
	if err != nil {
		return nil, fmt.Errorf("repository: Payments query: %w", err)
	}
	return decodeList[domain.Payment](items, "Payments")
}

func (d *Directory) queryUser(ctx context.Context, pk, prefix string) ([]map[string]types.AttributeValue, error) {
	return queryAll(ctx, d.api, &dynamodb.QueryInput{
		TableName:              aws.String(d.name),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		},
		ScanIndexForward: aws.Bool(true),
	})
}

// CreateVoucher appends a payment voucher under the user record.
func (d *Directory) CreateVoucher(ctx context.Context, v domain.Voucher) error {
	if v.ID == "" || v.TenantID == "" || v.PropertyID == "" || v.UserID == "" {
		return errors.New("repository: CreateVoucher: id, tenant, property and user are required")
	}
	sk := skPrefixVoucher + v.CreatedAt.UTC().Format(time.RFC3339Nano) + "#" + v.ID
	item, err := marshalItem(v, userPK(v.TenantID, v.PropertyID, v.UserID), sk)
	if err != nil {
		return fmt.Errorf("repository: CreateVoucher encode: %w", err)
	}
	_, err = d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.name),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: CreateVoucher: %w", err)
	}
	return nil
}

func decodeList[T any](items []map[string]types.AttributeValue, op string) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := unmarshalItem(item, &v); err != nil {
			return nil, fmt.Errorf("repository: %s unmarshal: %w", op, err)
		}
		out = append(out, v)
	}
	return out, nil
}
