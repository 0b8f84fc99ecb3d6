package dynamo

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-budget-api/internal/infrastructure/rowstore"
	"github.com/go-budget-api/internal/infrastructure/rowstore/rowstoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTable understands exactly the requests RowRepo sends. Query pages are
// two items long so pagination is exercised.
type fakeTable struct {
	mu      sync.Mutex
	items   map[string]map[string]map[string]types.AttributeValue // collection -> row_id -> item
	queries int
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: make(map[string]map[string]map[string]types.AttributeValue)}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeTable) lookup(key map[string]types.AttributeValue) (map[string]types.AttributeValue, bool) {
	it, ok := f.items[str(key[fieldCollection])][str(key[fieldRowID])]
	return it, ok
}

func (f *fakeTable) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	coll := str(in.ExpressionAttributeValues[":p"])
	after := str(in.ExpressionAttributeValues[":h"])
	if in.ExclusiveStartKey != nil {
		after = str(in.ExclusiveStartKey[fieldRowID])
	}
	var ids []string
	for id := range f.items[coll] {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := &dynamodb.QueryOutput{}
	for i, id := range ids {
		if i == 2 {
			out.LastEvaluatedKey = rowKey(coll, ids[1])
			break
		}
		out.Items = append(out.Items, f.items[coll][id])
	}
	return out, nil
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	coll, id := str(in.Item[fieldCollection]), str(in.Item[fieldRowID])
	if _, exists := f.items[coll][id]; exists && aws.ToString(in.ConditionExpression) == "attribute_not_exists(row_id)" {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if f.items[coll] == nil {
		f.items[coll] = make(map[string]map[string]types.AttributeValue)
	}
	f.items[coll][id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

var setCell = regexp.MustCompile(`#c\[(\d+)\] = (:v\d+)`)

func (f *fakeTable) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	it, ok := f.lookup(in.Key)
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	list := it[fieldCells].(*types.AttributeValueMemberL)
	for _, m := range setCell.FindAllStringSubmatch(aws.ToString(in.UpdateExpression), -1) {
		col, _ := strconv.Atoi(m[1])
		if col >= len(list.Value) {
			list.Value = append(list.Value, in.ExpressionAttributeValues[m[2]])
			continue
		}
		list.Value[col] = in.ExpressionAttributeValues[m[2]]
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeTable) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.lookup(in.Key); !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	delete(f.items[str(in.Key[fieldCollection])], str(in.Key[fieldRowID]))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestRowRepo_Conformance(t *testing.T) {
	rowstoretest.Run(t, func(t *testing.T) rowstore.Backend {
		return NewRowRepo(newFakeTable(), "sheet_rows")
	})
}

func TestRowRepo_HeaderStoredButNotListed(t *testing.T) {
	fake := newFakeTable()
	repo := NewRowRepo(fake, "sheet_rows")
	ctx := context.Background()

	require.NoError(t, repo.EnsureCollection(ctx, "Users", []string{"Email", "Login Count"}))
	require.NoError(t, repo.EnsureCollection(ctx, "Users", []string{"changed"}))

	hdr, ok := fake.items["Users"][headerRowID]
	require.True(t, ok)
	cells := hdr[fieldCells].(*types.AttributeValueMemberL)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "Email"}, cells.Value[0])

	rows, err := repo.Rows(ctx, "Users")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRowRepo_RowsFollowsPagination(t *testing.T) {
	fake := newFakeTable()
	repo := NewRowRepo(fake, "sheet_rows")
	ctx := context.Background()

	for _, id := range []string{"01A", "01B", "01C", "01D", "01E"} {
		require.NoError(t, repo.Append(ctx, "Bills", rowstore.Row{ID: id, Cells: []string{id}}))
	}

	rows, err := repo.Rows(ctx, "Bills")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "01A", rows[0].ID)
	assert.Equal(t, "01E", rows[4].Cell(0))
	assert.Equal(t, 3, fake.queries)
}
