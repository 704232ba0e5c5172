// Package preflight opens an uploaded PDF locally before it is sent for
// analysis, so obviously broken files fail fast instead of burning a job.
package preflight

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/textract-csv/pkg/logger"
)

// DefaultMaxSize caps how much of an object is read into memory.
const DefaultMaxSize = 50 * 1024 * 1024

var (
	ErrEmpty    = errors.New("document is empty")
	ErrTooLarge = errors.New("document exceeds preflight size limit")
	ErrNoPages  = errors.New("document has no pages")
)

// Info describes a document that passed the check.
type Info struct {
	Pages int
	Size  int64
	Hash  string
	Title string
}

type Checker struct {
	maxSize int64
	logger  logger.Logger
}

func NewChecker(maxSize int64, log logger.Logger) *Checker {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Checker{
		maxSize: maxSize,
		logger:  log.Named("preflight"),
	}
}

// Check reads r fully and parses it as a PDF. Unreadable files, files with
// zero pages and files over the size limit are rejected.
func (c *Checker) Check(ctx context.Context, r io.Reader) (Info, error) {
	content, err := io.ReadAll(io.LimitReader(r, c.maxSize+1))
	if err != nil {
		return Info{}, fmt.Errorf("failed to read document: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	if len(content) == 0 {
		return Info{}, ErrEmpty
	}
	if int64(len(content)) > c.maxSize {
		return Info{}, ErrTooLarge
	}

	reader := bytes.NewReader(content)
	pdfReader, err := open(reader)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return Info{}, ErrNoPages
	}

	hash := sha256.Sum256(content)
	info := Info{
		Pages: numPages,
		Size:  int64(len(content)),
		Hash:  hex.EncodeToString(hash[:]),
	}

	trailer := pdfReader.Trailer()
	if !trailer.IsNull() {
		if title := trailer.Key("Info").Key("Title"); !title.IsNull() {
			info.Title = title.Text()
		}
	}

	c.logger.Debug("PDF preflight passed",
		logger.Int("pages", info.Pages),
		logger.Int64("size", info.Size),
	)
	return info, nil
}

// open guards against the parser panicking on malformed input.
func open(r *bytes.Reader) (pr *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()
	return pdf.NewReader(r, r.Size())
}
