package race

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wolfman30/solarbill-ai-platform/pkg/logging"
)

const (
	journalTTL = 7 * 24 * time.Hour
	// DefaultPendingIndex is a GSI keyed by outcome (hash) and deadlineAt (range).
	DefaultPendingIndex = "outcome-deadline-index"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoJournal persists races in DynamoDB. Conditional writes make Armed
// insert-only and Resolve first-writer-wins across instances.
type DynamoJournal struct {
	client    dynamoAPI
	tableName string
	indexName string
	logger    *logging.Logger
}

var _ Journal = (*DynamoJournal)(nil)

// NewDynamoJournal builds a journal backed by the provided DynamoDB client.
func NewDynamoJournal(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoJournal {
	if client == nil {
		panic("race: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("race: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoJournal{
		client:    client,
		tableName: tableName,
		indexName: DefaultPendingIndex,
		logger:    logger,
	}
}

func (j *DynamoJournal) Armed(ctx context.Context, rec Record) error {
	rec.Outcome = Pending.String()
	rec.DeadlineAt = deadlineSeconds(rec.Deadline)
	if rec.ExpiresAt == 0 {
		rec.ExpiresAt = rec.Deadline.Add(journalTTL).Unix()
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("race: failed to marshal record: %w", err)
	}
	_, err = j.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(j.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(raceId)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("race: failed to persist race %s: %w", rec.RaceID, err)
	}
	return nil
}

func (j *DynamoJournal) Resolve(ctx context.Context, id ID, outcome Outcome, at time.Time) (bool, error) {
	if outcome == Pending {
		return false, fmt.Errorf("race: cannot resolve %s to pending", id)
	}
	_, err := j.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(j.tableName),
		Key: map[string]types.AttributeValue{
			"raceId": &types.AttributeValueMemberS{Value: string(id)},
		},
		UpdateExpression:    aws.String("SET #outcome = :outcome, resolvedAt = :resolved"),
		ConditionExpression: aws.String("#outcome = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#outcome": "outcome",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":outcome":  &types.AttributeValueMemberS{Value: outcome.String()},
			":pending":  &types.AttributeValueMemberS{Value: Pending.String()},
			":resolved": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			j.logger.Debug("race already resolved in journal", "race_id", id, "outcome", outcome.String())
			return false, nil
		}
		return false, fmt.Errorf("race: failed to resolve race %s: %w", id, err)
	}
	return true, nil
}

func (j *DynamoJournal) Expired(ctx context.Context, now time.Time, limit int) ([]Record, error) {
	var (
		out   []Record
		start map[string]types.AttributeValue
	)
	for {
		input := &dynamodb.QueryInput{
			TableName:              aws.String(j.tableName),
			IndexName:              aws.String(j.indexName),
			KeyConditionExpression: aws.String("#outcome = :pending AND deadlineAt <= :now"),
			ExpressionAttributeNames: map[string]string{
				"#outcome": "outcome",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pending": &types.AttributeValueMemberS{Value: Pending.String()},
				":now":     &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
			},
			ExclusiveStartKey: start,
		}
		if limit > 0 {
			input.Limit = aws.Int32(int32(limit - len(out)))
		}
		page, err := j.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("race: failed to query expired races: %w", err)
		}
		var recs []Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("race: failed to decode races: %w", err)
		}
		out = append(out, recs...)
		if len(page.LastEvaluatedKey) == 0 || (limit > 0 && len(out) >= limit) {
			return out, nil
		}
		start = page.LastEvaluatedKey
	}
}

// deadlineSeconds rounds up so the index never reports a race as expired
// before its deadline.
func deadlineSeconds(deadline time.Time) int64 {
	secs := deadline.Unix()
	if deadline.After(time.Unix(secs, 0)) {
		secs++
	}
	return secs
}

func (j *DynamoJournal) Lookup(ctx context.Context, id ID) (Record, error) {
	rec, err := j.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return *rec, nil
}

// Get fetches one record.
func (j *DynamoJournal) Get(ctx context.Context, id ID) (*Record, error) {
	out, err := j.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(j.tableName),
		Key: map[string]types.AttributeValue{
			"raceId": &types.AttributeValueMemberS{Value: string(id)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("race: failed to fetch race %s: %w", id, err)
	}
	if out.Item == nil {
		return nil, ErrRaceNotFound
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("race: failed to decode race: %w", err)
	}
	return &rec, nil
}
