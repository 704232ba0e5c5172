package converters

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/feichai0017/textract-csv/internal/table"
)

// ContentTypeCSV is declared to the object store for converted output.
const ContentTypeCSV = "text/csv"

// DocumentConverter turns a reconstructed document into an output artifact.
type DocumentConverter interface {
	Convert(doc *table.Document) ([]byte, error)
	ContentType() string
}

// CSVConverter writes every page grid into one CSV document. Each page starts
// with a "--- Page N ---" record, and pages after the first are preceded by
// an empty record.
type CSVConverter struct{}

func NewCSVConverter() *CSVConverter {
	return &CSVConverter{}
}

func (c *CSVConverter) ContentType() string {
	return ContentTypeCSV
}

func (c *CSVConverter) Convert(doc *table.Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Write(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *CSVConverter) Write(w io.Writer, doc *table.Document) error {
	writer := csv.NewWriter(w)

	for i, page := range doc.Pages() {
		if i > 0 {
			if err := writer.Write([]string{}); err != nil {
				return fmt.Errorf("failed to write page separator: %w", err)
			}
		}
		if err := writer.Write([]string{PageHeader(page)}); err != nil {
			return fmt.Errorf("failed to write page header: %w", err)
		}
		for _, row := range doc.Rows(page) {
			if err := writeRecord(w, writer, doc.Row(page, row)); err != nil {
				return fmt.Errorf("failed to write row %d of page %d: %w", row, page, err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// writeRecord writes a lone empty field as "" so the row does not collapse
// into a blank line, which readers skip and which matches the page separator.
func writeRecord(w io.Writer, writer *csv.Writer, record []string) error {
	if len(record) != 1 || record[0] != "" {
		return writer.Write(record)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\"\n")
	return err
}

// PageHeader is the single-field record that opens each page.
func PageHeader(page int) string {
	return fmt.Sprintf("--- Page %d ---", page)
}
