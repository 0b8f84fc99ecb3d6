package dynamo

// DynamoDB attribute names used in key conditions and update expressions.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldCollection = "collection"
	fieldRowID      = "row_id"
	fieldCells      = "cells"

	// headerRowID sorts before every ULID, so the header item never shows up
	// in a "row_id > headerRowID" range query.
	headerRowID = "#header"
)
