package requests

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-procurement-workflow/internal/aws"
	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

// DynamoStore keeps requests in a DynamoDB table keyed by request_id.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	newID     func() string
}

// NewDynamoStore creates a DynamoStore on tableName.
func NewDynamoStore(client aws.DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		nowFunc:   func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

var _ Store = (*DynamoStore)(nil)

// Create assigns an id and writes the request, refusing to overwrite an existing item.
func (s *DynamoStore) Create(ctx context.Context, req *procurement.ProcurementRequest) (string, error) {
	req.ID = s.newID()
	now := s.nowFunc()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}

	item, err := attributevalue.MarshalMap(toRecord(*req))
	if err != nil {
		return "", fmt.Errorf("marshal request item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(request_id)"),
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return "", fmt.Errorf("request id %s already exists: %w", req.ID, err)
		}
		return "", fmt.Errorf("put item: %w", err)
	}
	return req.ID, nil
}

// Get fetches a request by id. Returns (nil, nil) if not found.
func (s *DynamoStore) Get(ctx context.Context, id string) (*procurement.ProcurementRequest, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            requestKey(id),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec requestRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	return fromRecord(rec)
}

// List scans the whole table in one consistent pass and sorts newest first.
func (s *DynamoStore) List(ctx context.Context) ([]procurement.ProcurementRequest, error) {
	var out []procurement.ProcurementRequest
	var startKey map[string]types.AttributeValue
	for {
		page, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: startKey,
			ConsistentRead:    awsBool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var recs []requestRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal requests: %w", err)
		}
		for _, rec := range recs {
			r, err := fromRecord(rec)
			if err != nil {
				return nil, err
			}
			out = append(out, *r)
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		startKey = page.LastEvaluatedKey
	}
	sortNewestFirst(out)
	return out, nil
}

// UpdateStatus conditionally moves the stored status from expected to next.Status and
// appends next's latest history entry. Returns ErrStatusMismatch if the condition failed.
func (s *DynamoStore) UpdateStatus(ctx context.Context, id string, expected procurement.Status, next procurement.ProcurementRequest) error {
	change, err := lastChange(next)
	if err != nil {
		return err
	}
	entry, err := attributevalue.Marshal([]historyRecord{toHistoryRecord(change)})
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	updatedAt, err := attributevalue.Marshal(next.UpdatedAt)
	if err != nil {
		return fmt.Errorf("marshal updated_at: %w", err)
	}

	input := &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      requestKey(id),
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua, status_history = list_append(if_not_exists(status_history, :empty), :change)"),
		ConditionExpression:      awsString("#s = :expected"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: string(next.Status)},
			":expected": &types.AttributeValueMemberS{Value: string(expected)},
			":ua":       updatedAt,
			":change":   entry,
			":empty":    &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
		},
	}

	_, err = s.client.UpdateItem(ctx, input)
	if err != nil {
		var sc *types.ConditionalCheckFailedException
		if errors.As(err, &sc) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func requestKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"request_id": &types.AttributeValueMemberS{Value: id},
	}
}

func sortNewestFirst(reqs []procurement.ProcurementRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
	})
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
