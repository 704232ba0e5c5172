package table

import (
	"strings"

	"github.com/feichai0017/textract-csv/internal/models"
)

// ResolveCellText joins the WORD children of cell, in relationship order,
// with single spaces. Unknown ids and non-word children are skipped.
func ResolveCellText(cell models.Block, idx Index) string {
	if len(cell.Relationships) == 0 {
		return ""
	}

	var text strings.Builder
	for _, rel := range cell.Relationships {
		if rel.Type != models.RelationshipChild {
			continue
		}
		for _, id := range rel.IDs {
			child, ok := idx.Lookup(id)
			if !ok || child.Type != models.BlockTypeWord {
				continue
			}
			text.WriteString(child.Text)
			text.WriteString(" ")
		}
	}

	return strings.TrimSpace(text.String())
}
