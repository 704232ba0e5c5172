package preflight

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/textract-csv/pkg/logger"
)

// buildPDF assembles a minimal PDF with a valid xref table.
func buildPDF(pages int) []byte {
	var kids []string
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"",
	}
	for i := 0; i < pages; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", i+3))
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestCheckAcceptsValidPDF(t *testing.T) {
	c := NewChecker(0, logger.NewTestLogger())
	doc := buildPDF(2)

	info, err := c.Check(context.Background(), bytes.NewReader(doc))

	require.NoError(t, err)
	assert.Equal(t, 2, info.Pages)
	assert.Equal(t, int64(len(doc)), info.Size)
	assert.Len(t, info.Hash, 64)
}

func TestCheckRejects(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int64
		body    []byte
		want    error
	}{
		{name: "empty", body: nil, want: ErrEmpty},
		{name: "zero pages", body: buildPDF(0), want: ErrNoPages},
		{name: "too large", maxSize: 16, body: buildPDF(1), want: ErrTooLarge},
		{name: "not a pdf", body: []byte(strings.Repeat("Date,Amount\n", 20))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(tt.maxSize, logger.NewTestLogger())
			_, err := c.Check(context.Background(), bytes.NewReader(tt.body))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCheckHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChecker(0, logger.NewNop()).Check(ctx, bytes.NewReader(buildPDF(1)))
	assert.ErrorIs(t, err, context.Canceled)
}
