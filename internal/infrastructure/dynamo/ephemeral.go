package dynamo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// EphemeralStore keeps short-lived flow state (pending signups, OTPs).
// PK: state_key. expires_at is the table's TTL attribute; DynamoDB deletes
// expired items lazily, so reads also check it.
type EphemeralStore struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

func NewEphemeralStore(client *dynamodb.Client, tableName string) *EphemeralStore {
	return &EphemeralStore{client: client, tableName: tableName, now: time.Now}
}

func (s *EphemeralStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := s.now().Add(ttl).Unix()
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			attrStateKey:  &types.AttributeValueMemberS{Value: key},
			attrValue:     &types.AttributeValueMemberB{Value: value},
			attrExpiresAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("put ephemeral state: %w", err)
	}
	return nil
}

// Get returns found=false for keys that were never set or have expired.
func (s *EphemeralStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey(attrStateKey, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, fmt.Errorf("get ephemeral state: %w", err)
	}
	return decodeEphemeral(out.Item, s.now())
}

func (s *EphemeralStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       strKey(attrStateKey, key),
	})
	if err != nil {
		return fmt.Errorf("delete ephemeral state: %w", err)
	}
	return nil
}

func decodeEphemeral(item map[string]types.AttributeValue, now time.Time) ([]byte, bool, error) {
	if item == nil {
		return nil, false, nil
	}
	exp, ok := item[attrExpiresAt].(*types.AttributeValueMemberN)
	if !ok {
		return nil, false, fmt.Errorf("ephemeral item missing %s", attrExpiresAt)
	}
	expiresAt, err := strconv.ParseInt(exp.Value, 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", attrExpiresAt, err)
	}
	if expiresAt <= now.Unix() {
		return nil, false, nil
	}
	val, ok := item[attrValue].(*types.AttributeValueMemberB)
	if !ok {
		return nil, false, fmt.Errorf("ephemeral item missing %s", attrValue)
	}
	return val.Value, true, nil
}
