package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	v := NewUploadValidator(nil)

	tests := []struct {
		name        string
		filename    string
		contentType string
		wantCodes   []string
	}{
		{"valid pdf", "statement.pdf", "application/pdf", nil},
		{"upper case extension", "Statement.PDF", "application/pdf", nil},
		{"content type with params", "a.pdf", "application/pdf; charset=binary", nil},
		{"empty", "   ", "application/pdf", []string{"EMPTY_FILENAME", "INVALID_FILE_TYPE"}},
		{"slash", "../etc/passwd.pdf", "application/pdf", []string{"INVALID_FILENAME"}},
		{"backslash", `a\b.pdf`, "application/pdf", []string{"INVALID_FILENAME"}},
		{"control char", "a\nb.pdf", "application/pdf", []string{"INVALID_FILENAME"}},
		{"too long", strings.Repeat("a", 300) + ".pdf", "application/pdf", []string{"FILENAME_TOO_LONG"}},
		{"wrong extension", "notes.txt", "text/plain", []string{"INVALID_FILE_TYPE"}},
		{"wrong content type", "a.pdf", "image/png", []string{"INVALID_MIME_TYPE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(tt.filename, tt.contentType)

			var codes []string
			for _, e := range result.Errors {
				codes = append(codes, e.Code)
			}
			assert.Equal(t, tt.wantCodes, codes)
			assert.Equal(t, len(tt.wantCodes) == 0, result.IsValid)
		})
	}
}

func TestValidationResultError(t *testing.T) {
	result := NewUploadValidator(nil).Validate("a/b.txt", "text/plain")

	assert.False(t, result.IsValid)
	assert.Equal(t, `filename must not contain path separators; file type ".txt" is not allowed`, result.Error())
}

func TestCustomAllowedTypes(t *testing.T) {
	v := NewUploadValidator(&ValidatorConfig{
		MaxFilenameLength: 10,
		AllowedTypes:      map[string][]string{".png": {"image/png"}},
	})

	assert.True(t, v.Validate("scan.png", "image/png").IsValid)
	assert.False(t, v.Validate("scan.pdf", "application/pdf").IsValid)
	assert.False(t, v.Validate("longname12.png", "image/png").IsValid)
}
