// Package table rebuilds page-scoped cell grids from the flat block list
// returned by the document-analysis service.
package table

import "github.com/feichai0017/textract-csv/internal/models"

// Index maps block ids to blocks for one job. It is read-only once built.
type Index map[string]models.Block

// BuildIndex indexes blocks by id. A later block with a duplicate id replaces
// the earlier one.
func BuildIndex(blocks []models.Block) Index {
	idx := make(Index, len(blocks))
	for _, b := range blocks {
		idx[b.ID] = b
	}
	return idx
}

// Lookup returns the block for id. Missing ids are expected when the source
// pages were incomplete; callers treat them as contributing nothing.
func (idx Index) Lookup(id string) (models.Block, bool) {
	b, ok := idx[id]
	return b, ok
}
