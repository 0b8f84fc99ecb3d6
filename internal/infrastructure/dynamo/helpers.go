package dynamo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// compositeKey builds a DynamoDB primary key with two string attributes (PK + SK).
func compositeKey(pkName, pkValue, skName, skValue string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		pkName: &types.AttributeValueMemberS{Value: pkValue},
		skName: &types.AttributeValueMemberS{Value: skValue},
	}
}

func rowKey(collection, rowID string) map[string]types.AttributeValue {
	return compositeKey(fieldCollection, collection, fieldRowID, rowID)
}

type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildCellUpdate converts column->value pairs into a SET expression on
// elements of the cells list. Columns are emitted in ascending order so the
// expression is deterministic.
func buildCellUpdate(cells map[int]string) (updateExpr, error) {
	if len(cells) == 0 {
		return updateExpr{}, fmt.Errorf("no fields to update")
	}
	cols := make([]int, 0, len(cells))
	for c := range cells {
		if c < 0 {
			return updateExpr{}, fmt.Errorf("negative column %d", c)
		}
		cols = append(cols, c)
	}
	sort.Ints(cols)

	ue := updateExpr{
		Names:  map[string]string{"#c": fieldCells},
		Values: make(map[string]types.AttributeValue, len(cols)),
	}
	parts := make([]string, 0, len(cols))
	for i, c := range cols {
		valueKey := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(cells[c])
		if err != nil {
			return updateExpr{}, fmt.Errorf("marshal column %d: %w", c, err)
		}
		ue.Values[valueKey] = av
		parts = append(parts, fmt.Sprintf("#c[%d] = %s", c, valueKey))
	}
	ue.Expr = "SET " + strings.Join(parts, ", ")
	return ue, nil
}
