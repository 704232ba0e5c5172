package models

// BlockType is the kind of a detected layout element.
type BlockType string

const (
	BlockTypePage  BlockType = "PAGE"
	BlockTypeLine  BlockType = "LINE"
	BlockTypeWord  BlockType = "WORD"
	BlockTypeTable BlockType = "TABLE"
	BlockTypeCell  BlockType = "CELL"
)

// RelationshipType names how a block refers to others.
type RelationshipType string

const (
	RelationshipChild RelationshipType = "CHILD"
	RelationshipValue RelationshipType = "VALUE"
)

// Relationship lists the ids of related blocks in the order the analysis
// service returned them.
type Relationship struct {
	Type RelationshipType `json:"type"`
	IDs  []string         `json:"ids"`
}

// Block is one layout element returned by the document-analysis service.
// Page, RowIndex and ColumnIndex are 1-based; zero means absent.
type Block struct {
	ID            string         `json:"id"`
	Type          BlockType      `json:"blockType"`
	Page          int            `json:"page,omitempty"`
	RowIndex      int            `json:"rowIndex,omitempty"`
	ColumnIndex   int            `json:"columnIndex,omitempty"`
	Text          string         `json:"text,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
}
