package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"condo-assistant/internal/domain"
)

func mustContextStore(t *testing.T, db *fakeDynamo) *ContextStore {
	t.Helper()
	s, err := NewContextStore(db, "state")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

// itemFromUpdate rebuilds the stored item the way DynamoDB would after Save.
func itemFromUpdate(in *dynamodb.UpdateItemInput) map[string]types.AttributeValue {
	v := in.ExpressionAttributeValues
	return map[string]types.AttributeValue{
		"PK":              in.Key["PK"],
		"SK":              in.Key["SK"],
		"state":           v[":state"],
		"dataKind":        v[":kind"],
		"data":            v[":data"],
		"version":         v[":next"],
		"lastInteraction": v[":now"],
	}
}

func TestNewContextStore_Validates(t *testing.T) {
	_, err := NewContextStore(nil, "state")
	require.Error(t, err)
	_, err = NewContextStore(&fakeDynamo{}, " ")
	require.Error(t, err)
}

func TestGet_MissingReturnsFreshInitial(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	s := mustContextStore(t, db)

	conv, err := s.Get(context.Background(), "5512345678")
	require.NoError(t, err)
	require.Equal(t, domain.StateInitial, conv.State)
	require.False(t, conv.Persisted)
	require.Equal(t, int64(0), conv.Version)
	require.True(t, *db.lastGetInput.ConsistentRead)
	require.Equal(t, "PHONE#5512345678", db.lastGetInput.Key["PK"].(*types.AttributeValueMemberS).Value)
}

func TestGet_Error(t *testing.T) {
	db := &fakeDynamo{getErr: errors.New("boom")}
	s := mustContextStore(t, db)
	_, err := s.Get(context.Background(), "5512345678")
	require.ErrorContains(t, err, "Get context")
}

func TestSaveThenGet_RoundTripsTaggedData(t *testing.T) {
	db := &fakeDynamo{}
	s := mustContextStore(t, db)

	conv := domain.NewConversation("5512345678")
	require.NoError(t, conv.Set(domain.StatePaymentAwaitingChargeSelection, domain.ChargesData{
		Identity: domain.Identity{
			Email: "ana@example.com",
			Unit:  "101",
			Match: domain.Match{TenantID: "t1", PropertyID: "p1", UserID: "u1", PropertyName: "Torre Norte", Path: "x"},
		},
		Charges: []domain.PendingCharge{{Index: 1, ID: "c1", Concept: "Mantenimiento", Amount: 150000}},
	}))
	require.NoError(t, s.Save(context.Background(), conv))
	require.Equal(t, int64(1), conv.Version)
	require.True(t, conv.Persisted)

	in := db.lastUpdateInput
	require.Equal(t, "attribute_not_exists(PK) OR #version = :expected", *in.ConditionExpression)
	require.Equal(t, "0", in.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN).Value)
	require.Contains(t, *in.UpdateExpression, "if_not_exists(createdAt, :now)")

	db.getOut = &dynamodb.GetItemOutput{Item: itemFromUpdate(in)}
	loaded, err := s.Get(context.Background(), "5512345678")
	require.NoError(t, err)
	require.Equal(t, domain.StatePaymentAwaitingChargeSelection, loaded.State)
	require.Equal(t, int64(1), loaded.Version)
	data, ok := loaded.Data.(domain.ChargesData)
	require.True(t, ok)
	require.Equal(t, "Torre Norte", data.Identity.Match.PropertyName)
	require.Len(t, data.Charges, 1)
	require.Equal(t, int64(150000), data.Charges[0].Amount)
}

func TestSave_ConflictMapsToErrConflict(t *testing.T) {
	db := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{}}
	s := mustContextStore(t, db)
	conv := domain.NewConversation("5512345678")

	err := s.Save(context.Background(), conv)
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, int64(0), conv.Version)
}

func TestSave_RequiresPhone(t *testing.T) {
	s := mustContextStore(t, &fakeDynamo{})
	require.Error(t, s.Save(context.Background(), &domain.Conversation{}))
}

func TestGet_RejectsCorruptShape(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":       sAttr("PHONE#1"),
		"SK":       sAttr(skContext),
		"state":    sAttr(string(domain.StatePaymentAwaitingEmail)),
		"dataKind": sAttr(string(domain.KindEmail)),
		"data":     &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{"email": sAttr("a@b.co")}},
		"version":  &types.AttributeValueMemberN{Value: "3"},
	}}}
	s := mustContextStore(t, db)
	_, err := s.Get(context.Background(), "1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not accept")
}

func TestMarkInbound(t *testing.T) {
	db := &fakeDynamo{}
	s := mustContextStore(t, db)
	require.NoError(t, s.MarkInbound(context.Background(), "wamid.1"))
	require.Equal(t, "INBOUND#wamid.1", db.lastPutInput.Item["PK"].(*types.AttributeValueMemberS).Value)
	require.NotNil(t, db.lastPutInput.Item["ttl"])

	db.putErr = &types.ConditionalCheckFailedException{}
	require.ErrorIs(t, s.MarkInbound(context.Background(), "wamid.1"), ErrDuplicate)

	db.putErr = errors.New("throttled")
	err := s.MarkInbound(context.Background(), "wamid.2")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicate)
}
