package textract

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/feichai0017/textract-csv/internal/models"
)

// ConvertBlock maps an SDK block onto the pipeline's block model. Absent
// pointers become zero values.
func ConvertBlock(b types.Block) models.Block {
	out := models.Block{
		ID:          aws.ToString(b.Id),
		Type:        models.BlockType(b.BlockType),
		Page:        int(aws.ToInt32(b.Page)),
		RowIndex:    int(aws.ToInt32(b.RowIndex)),
		ColumnIndex: int(aws.ToInt32(b.ColumnIndex)),
		Text:        aws.ToString(b.Text),
	}
	if len(b.Relationships) > 0 {
		out.Relationships = make([]models.Relationship, 0, len(b.Relationships))
		for _, rel := range b.Relationships {
			out.Relationships = append(out.Relationships, models.Relationship{
				Type: models.RelationshipType(rel.Type),
				IDs:  append([]string(nil), rel.Ids...),
			})
		}
	}
	return out
}
