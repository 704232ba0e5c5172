// internal/utils/validator/upload.go
package validator

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidatorConfig controls what an upload request may name.
type ValidatorConfig struct {
	MaxFilenameLength int                 // longest accepted filename, in bytes
	AllowedTypes      map[string][]string // extension -> allowed content types
}

// ValidationResult lists every problem found, not only the first.
type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// Error joins the messages of all failures.
func (r *ValidationResult) Error() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// UploadValidator checks filenames and content types before a URL is issued.
type UploadValidator struct {
	config *ValidatorConfig
}

func DefaultConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxFilenameLength: 255,
		AllowedTypes: map[string][]string{
			".pdf": {"application/pdf"},
		},
	}
}

func NewUploadValidator(config *ValidatorConfig) *UploadValidator {
	if config == nil {
		config = DefaultConfig()
	}
	return &UploadValidator{config: config}
}

// Validate checks one filename/content type pair.
func (v *UploadValidator) Validate(filename, contentType string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if errs := v.validateFilename(filename); len(errs) > 0 {
		result.Errors = append(result.Errors, errs...)
	}
	if errs := v.validateContentType(filename, contentType); len(errs) > 0 {
		result.Errors = append(result.Errors, errs...)
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

func (v *UploadValidator) validateFilename(filename string) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(filename) == "" {
		return []ValidationError{{
			Code:    "EMPTY_FILENAME",
			Message: "filename must not be empty",
			Field:   "filename",
		}}
	}

	if len(filename) > v.config.MaxFilenameLength {
		errors = append(errors, ValidationError{
			Code:    "FILENAME_TOO_LONG",
			Message: fmt.Sprintf("filename exceeds %d bytes", v.config.MaxFilenameLength),
			Field:   "filename",
		})
	}

	if strings.ContainsAny(filename, `/\`) || filename == "." || filename == ".." {
		errors = append(errors, ValidationError{
			Code:    "INVALID_FILENAME",
			Message: "filename must not contain path separators",
			Field:   "filename",
		})
	}

	if !utf8.ValidString(filename) || strings.IndexFunc(filename, unicode.IsControl) >= 0 {
		errors = append(errors, ValidationError{
			Code:    "INVALID_FILENAME",
			Message: "filename contains invalid characters",
			Field:   "filename",
		})
	}

	return errors
}

func (v *UploadValidator) validateContentType(filename, contentType string) []ValidationError {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed, ok := v.config.AllowedTypes[ext]
	if !ok {
		return []ValidationError{{
			Code:    "INVALID_FILE_TYPE",
			Message: fmt.Sprintf("file type %q is not allowed", ext),
			Field:   "filename",
		}}
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, mime := range allowed {
		if mime == mediaType {
			return nil
		}
	}

	return []ValidationError{{
		Code:    "INVALID_MIME_TYPE",
		Message: fmt.Sprintf("content type %q is not allowed for %s files", contentType, ext),
		Field:   "contentType",
	}}
}
