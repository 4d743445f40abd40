package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/entity"
	"procura/internal/core/id"
	"procura/internal/core/types"
)

type sampleDoc struct {
	entity.BaseDocument
	Department string      `db:"department"`
	Total      types.Money `db:"total"`
	Lines      []string    `db:"-"`
}

func TestExtractDBColumnsFlattensBaseDocument(t *testing.T) {
	cols := ExtractDBColumns[sampleDoc]()

	assert.Equal(t, []string{
		"id", "number", "deletion_mark", "version", "created_at", "updated_at", "created_by", "updated_by",
		"department", "total",
	}, cols)
	assert.Equal(t, cols, ExtractDBColumns[*sampleDoc]())
}

func TestStructToMap(t *testing.T) {
	doc := &sampleDoc{
		BaseDocument: entity.NewBaseDocument("alice"),
		Department:   "maths",
		Total:        types.MustMoney("12.50"),
		Lines:        []string{"skipped"},
	}
	doc.Number = "REQ-2026-00001"

	m := StructToMap(doc)
	require.Len(t, m, 10)
	assert.Equal(t, doc.ID, m["id"])
	assert.Equal(t, "REQ-2026-00001", m["number"])
	assert.Equal(t, 1, m["version"])
	assert.Equal(t, "alice", m["created_by"])
	assert.Equal(t, "maths", m["department"])
	assert.NotContains(t, m, "lines")

	var nilDoc *sampleDoc
	assert.Nil(t, StructToMap(nilDoc))
}

func TestRowValuesFollowsColumnOrder(t *testing.T) {
	lineID := id.New()
	row := RowValues(struct {
		ID   id.ID  `db:"id"`
		Name string `db:"name"`
	}{ID: lineID, Name: "n"}, []string{"name", "id", "missing"})

	assert.Equal(t, []any{"n", lineID, nil}, row)
}
