package table

import "github.com/feichai0017/textract-csv/internal/models"

// Reconstruct builds the Document for one job from every block fetched for
// it. Blocks must be in fetch order: when two cells claim the same
// coordinate the later one wins.
func Reconstruct(blocks []models.Block) *Document {
	idx := BuildIndex(blocks)
	doc := NewDocument()

	for _, b := range blocks {
		if b.Type != models.BlockTypeCell {
			continue
		}
		page := b.Page
		if page == 0 {
			// synchronous analysis responses omit the page number
			page = 1
		}
		doc.Set(page, b.RowIndex, b.ColumnIndex, ResolveCellText(b, idx))
	}

	return doc
}
