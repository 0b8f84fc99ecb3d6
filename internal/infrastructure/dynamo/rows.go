package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-budget-api/internal/infrastructure/rowstore"
)

// API is the subset of *dynamodb.Client the row backend uses.
type API interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// rowItem is one stored row. All collections share a table:
// PK collection, SK row_id.
type rowItem struct {
	Collection string   `dynamodbav:"collection"`
	RowID      string   `dynamodbav:"row_id"`
	Cells      []string `dynamodbav:"cells"`
}

// RowRepo implements rowstore.Backend on a single DynamoDB table.
type RowRepo struct {
	client    API
	tableName string
}

func NewRowRepo(client API, tableName string) *RowRepo {
	return &RowRepo{client: client, tableName: tableName}
}

func (r *RowRepo) EnsureCollection(ctx context.Context, name string, header []string) error {
	err := r.put(ctx, rowItem{Collection: name, RowID: headerRowID, Cells: header}, "attribute_not_exists(row_id)")
	if isConditionFailed(err) {
		return nil
	}
	return err
}

func (r *RowRepo) Append(ctx context.Context, name string, row rowstore.Row) error {
	return r.put(ctx, rowItem{Collection: name, RowID: row.ID, Cells: row.Cells}, "")
}

func (r *RowRepo) Rows(ctx context.Context, name string) ([]rowstore.Row, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("#p = :p AND #s > :h"),
		ExpressionAttributeNames: map[string]string{
			"#p": fieldCollection,
			"#s": fieldRowID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: name},
			":h": &types.AttributeValueMemberS{Value: headerRowID},
		},
		ConsistentRead: aws.Bool(true),
	}
	var rows []rowstore.Row
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var items []rowItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, err
		}
		for _, it := range items {
			rows = append(rows, rowstore.Row{ID: it.RowID, Cells: it.Cells})
		}
		if len(out.LastEvaluatedKey) == 0 {
			return rows, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *RowRepo) SetCells(ctx context.Context, name, rowID string, cells map[int]string) error {
	ue, err := buildCellUpdate(cells)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       rowKey(name, rowID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(row_id)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return rowstore.ErrRowNotFound
	}
	return err
}

func (r *RowRepo) Delete(ctx context.Context, name, rowID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 rowKey(name, rowID),
		ConditionExpression: aws.String("attribute_exists(row_id)"),
	})
	if isConditionFailed(err) {
		return rowstore.ErrRowNotFound
	}
	return err
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (r *RowRepo) Close() error { return nil }

func (r *RowRepo) put(ctx context.Context, it rowItem, condition string) error {
	item, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}
	if condition != "" {
		in.ConditionExpression = aws.String(condition)
	}
	_, err = r.client.PutItem(ctx, in)
	return err
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
