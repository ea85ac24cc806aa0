// Package store implements the request store on DynamoDB. Conditional
// writes keyed on the expected current status are the system's only
// concurrency control: a write whose precondition no longer holds is
// rejected by DynamoDB and surfaces as an InvalidStateTransitionError.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore persists requests in a DynamoDB table keyed by RequestId.
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore creates a store backed by the given table.
func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) key(requestID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"RequestId": &types.AttributeValueMemberS{Value: requestID},
	}
}

// Create persists a new request, rejecting duplicate ids.
func (s *DynamoStore) Create(ctx context.Context, req *domain.Request) error {
	item, err := attributevalue.MarshalMap(req)
	if err != nil {
		return fmt.Errorf("marshal request %s: %w", req.RequestID, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(RequestId)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.ErrInvalidStateTransition("request %s already exists", req.RequestID)
		}
		return fmt.Errorf("put request %s: %w", req.RequestID, err)
	}
	return nil
}

// Get returns the request with a strongly-consistent read.
func (s *DynamoStore) Get(ctx context.Context, requestID string) (*domain.Request, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(requestID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", requestID, err)
	}
	if len(out.Item) == 0 {
		return nil, domain.ErrNotFound("request %s not found", requestID)
	}
	var req domain.Request
	if err := attributevalue.UnmarshalMap(out.Item, &req); err != nil {
		return nil, fmt.Errorf("unmarshal request %s: %w", requestID, err)
	}
	return &req, nil
}

// List returns every stored request.
func (s *DynamoStore) List(ctx context.Context) ([]domain.Request, error) {
	var requests []domain.Request
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan requests: %w", err)
		}
		var page []domain.Request
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal requests: %w", err)
		}
		requests = append(requests, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return requests, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// UpdateStatus applies a status transition conditioned on the record's
// current status. DynamoDB rejects the write when the precondition does
// not hold; that rejection maps to InvalidStateTransitionError without
// any mutation having happened.
func (s *DynamoStore) UpdateStatus(ctx context.Context, requestID string, expect domain.Status, upd domain.StatusUpdate) (*domain.Request, error) {
	update := expression.Set(expression.Name("Status"), expression.Value(string(upd.To)))
	if upd.ApproverEmail != nil {
		update = update.Set(expression.Name("ApproverEmail"), expression.Value(*upd.ApproverEmail))
	}
	if upd.ApprovalComments != nil {
		update = update.Set(expression.Name("ApprovalComments"), expression.Value(*upd.ApprovalComments))
	}
	if upd.ApprovedAt != nil {
		update = update.Set(expression.Name("ApprovedAt"), expression.Value(upd.ApprovedAt.Unix()))
	}
	if upd.GrantedAt != nil {
		update = update.Set(expression.Name("GrantedAt"), expression.Value(upd.GrantedAt.Unix()))
	}
	if upd.AssignmentRequestID != nil {
		update = update.Set(expression.Name("AssignmentRequestId"), expression.Value(*upd.AssignmentRequestID))
	}
	if upd.RevokedAt != nil {
		update = update.Set(expression.Name("RevokedAt"), expression.Value(upd.RevokedAt.Unix()))
	}
	if upd.RevokedBy != nil {
		update = update.Set(expression.Name("RevokedBy"), expression.Value(*upd.RevokedBy))
	}
	if upd.RevocationType != nil {
		update = update.Set(expression.Name("RevocationType"), expression.Value(string(*upd.RevocationType)))
	}
	if upd.ErrorDetail != nil {
		update = update.Set(expression.Name("ErrorDetail"), expression.Value(*upd.ErrorDetail))
	}
	if upd.ClearScheduleRef {
		update = update.Remove(expression.Name("ScheduleRef"))
	}

	cond := expression.And(
		expression.Name("RequestId").AttributeExists(),
		expression.Name("Status").Equal(expression.Value(string(expect))),
	)
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("build update expression for %s: %w", requestID, err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.key(requestID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, domain.ErrInvalidStateTransition(
				"request %s is not %s", requestID, expect)
		}
		return nil, fmt.Errorf("update request %s: %w", requestID, err)
	}
	var req domain.Request
	if err := attributevalue.UnmarshalMap(out.Attributes, &req); err != nil {
		return nil, fmt.Errorf("unmarshal updated request %s: %w", requestID, err)
	}
	return &req, nil
}

// SetScheduleRef records the pending trigger reference. Not conditioned on
// status: scheduling happens after the ACTIVE transition and a lost ref
// only costs a best-effort cancellation later.
func (s *DynamoStore) SetScheduleRef(ctx context.Context, requestID, ref string) error {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(expression.Name("ScheduleRef"), expression.Value(ref))).
		WithCondition(expression.Name("RequestId").AttributeExists()).
		Build()
	if err != nil {
		return fmt.Errorf("build schedule-ref expression for %s: %w", requestID, err)
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.key(requestID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return domain.ErrNotFound("request %s not found", requestID)
		}
		return fmt.Errorf("set schedule ref for %s: %w", requestID, err)
	}
	return nil
}
