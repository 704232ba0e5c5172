package converters

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/textract-csv/internal/models"
	"github.com/feichai0017/textract-csv/internal/table"
)

func childOf(ids ...string) []models.Relationship {
	return []models.Relationship{{Type: models.RelationshipChild, IDs: ids}}
}

func TestConvertEmptyDocument(t *testing.T) {
	out, err := NewCSVConverter().Convert(table.Reconstruct(nil))

	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestConvertSinglePage(t *testing.T) {
	blocks := []models.Block{
		{ID: "c1", Type: models.BlockTypeCell, Page: 1, RowIndex: 1, ColumnIndex: 1, Relationships: childOf("w1")},
		{ID: "c2", Type: models.BlockTypeCell, Page: 1, RowIndex: 1, ColumnIndex: 2, Relationships: childOf("w2")},
		{ID: "w1", Type: models.BlockTypeWord, Text: "Total"},
		{ID: "w2", Type: models.BlockTypeWord, Text: "42"},
	}

	out, err := NewCSVConverter().Convert(table.Reconstruct(blocks))

	require.NoError(t, err)
	assert.Equal(t, "--- Page 1 ---\nTotal,42\n", string(out))
}

func TestConvertSeparatesPages(t *testing.T) {
	blocks := []models.Block{
		{ID: "c2", Type: models.BlockTypeCell, Page: 2, RowIndex: 1, ColumnIndex: 1, Relationships: childOf("w2")},
		{ID: "c1", Type: models.BlockTypeCell, Page: 1, RowIndex: 1, ColumnIndex: 1, Relationships: childOf("w1")},
		{ID: "w1", Type: models.BlockTypeWord, Text: "A"},
		{ID: "w2", Type: models.BlockTypeWord, Text: "B"},
	}

	out, err := NewCSVConverter().Convert(table.Reconstruct(blocks))

	require.NoError(t, err)
	assert.Equal(t, "--- Page 1 ---\nA\n\n--- Page 2 ---\nB\n", string(out))
}

func TestConvertGapsAndQuoting(t *testing.T) {
	doc := table.NewDocument()
	doc.Set(1, 1, 1, "1,000.00")
	doc.Set(1, 1, 3, `say "hi"`)
	doc.Set(1, 2, 2, "line\nbreak")

	out, err := NewCSVConverter().Convert(doc)

	require.NoError(t, err)
	assert.Equal(t, "--- Page 1 ---\n\"1,000.00\",,\"say \"\"hi\"\"\"\n\"line\nbreak\"\n", string(out))
}

func TestConvertKeepsEmptySingleColumnRow(t *testing.T) {
	doc := table.NewDocument()
	doc.Set(1, 1, 1, "Header")
	doc.Set(1, 2, 1, "")
	doc.Set(1, 3, 1, "Footer")
	doc.Set(2, 1, 1, "B")

	out, err := NewCSVConverter().Convert(doc)

	require.NoError(t, err)
	assert.Equal(t, "--- Page 1 ---\nHeader\n\"\"\nFooter\n\n--- Page 2 ---\nB\n", string(out))

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"--- Page 1 ---"}, {"Header"}, {""}, {"Footer"},
		{"--- Page 2 ---"}, {"B"},
	}, records)
}

func TestConvertIsByteStable(t *testing.T) {
	doc := table.NewDocument()
	for p := 1; p <= 3; p++ {
		for r := 1; r <= 5; r++ {
			for c := 1; c <= 4; c++ {
				doc.Set(p, r, c, PageHeader(p*100+r*10+c))
			}
		}
	}

	conv := NewCSVConverter()
	first, err := conv.Convert(doc)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := conv.Convert(doc)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, ContentTypeCSV, conv.ContentType())
}
