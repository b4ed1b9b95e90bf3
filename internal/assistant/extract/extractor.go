// Package extract turns uploaded documents into plain text.
package extract

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/docqa-assistant/server/internal/assistant/model"
	errx "github.com/docqa-assistant/server/internal/core/error"
)

// Extractor reads one document format.
type Extractor interface {
	// Extract reads the whole stream and returns its text content.
	Extract(ctx context.Context, r io.Reader) (*Result, error)
}

// Result contains the extracted text and metadata.
type Result struct {
	Text string
	Kind model.DocumentKind
	// Units is the number of pages (PDF) or sheets (spreadsheet).
	Units int
}

// SupportedExtensions lists the upload extensions accepted by the service.
var SupportedExtensions = []string{".pdf", ".xlsx"}

// KindForFilename maps a file name onto a document kind by extension.
func KindForFilename(name string) (model.DocumentKind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return model.KindPDF, nil
	case ".xlsx":
		return model.KindSpreadsheet, nil
	default:
		return "", errx.Validation("Unsupported file type. Please upload a .pdf or .xlsx file.")
	}
}

// DocumentExtractor dispatches to the extractor registered for a file's kind.
type DocumentExtractor struct {
	byKind map[model.DocumentKind]Extractor
}

// NewDocumentExtractor returns a DocumentExtractor for PDF and XLSX files.
func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{
		byKind: map[model.DocumentKind]Extractor{
			model.KindPDF:         NewPDFExtractor(),
			model.KindSpreadsheet: NewSpreadsheetExtractor(),
		},
	}
}

// Extract picks the extractor from filename's extension and runs it over r.
func (d *DocumentExtractor) Extract(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	kind, err := KindForFilename(filename)
	if err != nil {
		return nil, err
	}
	ex, ok := d.byKind[kind]
	if !ok {
		return nil, errx.Validation("Unsupported file type. Please upload a .pdf or .xlsx file.")
	}
	res, err := ex.Extract(ctx, r)
	if err != nil {
		return nil, err
	}
	res.Kind = kind
	return res, nil
}
