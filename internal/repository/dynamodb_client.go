package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"wechat-bridge/internal/domain"
)

const (
	skPrefixTurn = "MSG#"
	skRecord     = "REC#"
	ttlDuration  = 30 * 24 * time.Hour // housekeeping TTL on ledger items
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Ledger defines the conversation store operations consumed by the pipeline.
type Ledger interface {
	Append(ctx context.Context, messageID int64, userID, topicID, request, response string, elapsed time.Duration) error
	GetByMessageID(ctx context.Context, messageID int64) (string, error)
	GetRecent(ctx context.Context, userID, topicID string, limit int) ([]domain.ConversationTurn, error)
}

// Client wraps a DynamoDB table holding the conversation ledger. Each turn
// is stored once under its conversation partition for history queries and
// once under its message id for duplicate-delivery lookups.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new ledger Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// convPK returns the partition key for a (user, topic) conversation.
func convPK(userID, topicID string) string {
	return "CONV#" + userID + "#" + topicID
}

// msgPK returns the partition key for the message-id lookup item.
func msgPK(messageID int64) string {
	return "MSGID#" + strconv.FormatInt(messageID, 10)
}

// turnSK returns the sort key for a turn using the given UTC timestamp.
func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(time.RFC3339Nano)
}

// ttlValue returns a Unix timestamp one housekeeping window in the future.
func ttlValue(now time.Time) int64 {
	return now.Add(ttlDuration).Unix()
}

// Append durably records one turn: the conversation item and the
// message-id lookup item are written in a single transaction. The lookup
// item is written with attribute_not_exists, so a second append for the
// same message id fails at the store.
func (c *Client) Append(ctx context.Context, messageID int64, userID, topicID, request, response string, elapsed time.Duration) error {
	now := time.Now()
	payload, err := json.Marshal(domain.ConversationTurn{Request: request, Response: response})
	if err != nil {
		return fmt.Errorf("repository: Append marshal turn: %w", err)
	}

	_, err = c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item: map[string]types.AttributeValue{
						"PK":        &types.AttributeValueMemberS{Value: convPK(userID, topicID)},
						"SK":        &types.AttributeValueMemberS{Value: turnSK(now)},
						"messageId": &types.AttributeValueMemberN{Value: strconv.FormatInt(messageID, 10)},
						"turn":      &types.AttributeValueMemberS{Value: string(payload)},
						"elapsedMs": &types.AttributeValueMemberN{Value: strconv.FormatInt(elapsed.Milliseconds(), 10)},
						"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(ttlValue(now), 10)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item: map[string]types.AttributeValue{
						"PK":       &types.AttributeValueMemberS{Value: msgPK(messageID)},
						"SK":       &types.AttributeValueMemberS{Value: skRecord},
						"response": &types.AttributeValueMemberS{Value: response},
						"ttl":      &types.AttributeValueMemberN{Value: strconv.FormatInt(ttlValue(now), 10)},
					},
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: Append: %w", err)
	}
	return nil
}

// GetByMessageID returns the persisted response text for a message id, or
// domain.ErrNotFound when no record exists yet.
func (c *Client) GetByMessageID(ctx context.Context, messageID int64) (string, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: msgPK(messageID)},
			"SK": &types.AttributeValueMemberS{Value: skRecord},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("repository: GetByMessageID get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", domain.ErrNotFound
	}

	response, err := strAttr(out.Item, "response")
	if err != nil {
		return "", fmt.Errorf("repository: GetByMessageID decode: %w", err)
	}
	return response, nil
}

// GetRecent queries the most recent limit turns for a conversation and
// returns them in ascending chronological order.
func (c *Client) GetRecent(ctx context.Context, userID, topicID string, limit int) ([]domain.ConversationTurn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(userID, topicID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		// Read newest first so LIMIT keeps the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetRecent query: %w", err)
	}

	turns := make([]domain.ConversationTurn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetRecent unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	// Reverse to chronological order before prompt assembly.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// itemToTurn converts a DynamoDB attribute map to a ConversationTurn.
func itemToTurn(item map[string]types.AttributeValue) (domain.ConversationTurn, error) {
	raw, err := strAttr(item, "turn")
	if err != nil {
		return domain.ConversationTurn{}, err
	}
	var turn domain.ConversationTurn
	if err := json.Unmarshal([]byte(raw), &turn); err != nil {
		return domain.ConversationTurn{}, fmt.Errorf("decode turn payload: %w", err)
	}
	return turn, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}
