package table

import (
	"slices"
)

// PageGrid holds the resolved text of one page, keyed by row then column.
type PageGrid map[int]map[int]string

// Document is every page grid of one analysis job.
type Document struct {
	pages map[int]PageGrid
	cells int
}

func NewDocument() *Document {
	return &Document{pages: make(map[int]PageGrid)}
}

// Set stores text at (page, row, col), replacing any earlier value.
func (d *Document) Set(page, row, col int, text string) {
	grid, ok := d.pages[page]
	if !ok {
		grid = make(PageGrid)
		d.pages[page] = grid
	}
	cols, ok := grid[row]
	if !ok {
		cols = make(map[int]string)
		grid[row] = cols
	}
	if _, exists := cols[col]; !exists {
		d.cells++
	}
	cols[col] = text
}

// Get returns the text at (page, row, col).
func (d *Document) Get(page, row, col int) (string, bool) {
	text, ok := d.pages[page][row][col]
	return text, ok
}

// Pages returns the page numbers in ascending order.
func (d *Document) Pages() []int {
	var keys []int
	for k := range d.pages {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Rows returns the row indices of page in ascending order.
func (d *Document) Rows(page int) []int {
	var keys []int
	for k := range d.pages[page] {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Row renders one row from its smallest to its largest column index.
// Columns missing inside that range come back as empty strings.
func (d *Document) Row(page, row int) []string {
	cols := d.pages[page][row]
	if len(cols) == 0 {
		return nil
	}

	lo, hi := 0, 0
	first := true
	for c := range cols {
		if first || c < lo {
			lo = c
		}
		if first || c > hi {
			hi = c
		}
		first = false
	}

	out := make([]string, 0, hi-lo+1)
	for c := lo; c <= hi; c++ {
		out = append(out, cols[c])
	}
	return out
}

func (d *Document) PageCount() int {
	return len(d.pages)
}

// CellCount is the number of distinct (page, row, col) coordinates.
func (d *Document) CellCount() int {
	return d.cells
}
