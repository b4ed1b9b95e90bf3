package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docqa-assistant/server/internal/assistant/model"
	errx "github.com/docqa-assistant/server/internal/core/error"
	logx "github.com/docqa-assistant/server/pkg/logger"
)

type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract concatenates the plain text of every page in page order. Pages without
// text contribute nothing.
func (e *PDFExtractor) Extract(ctx context.Context, r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		logx.Error().Err(err).Msg("failed to read PDF upload")
		return nil, errx.Extraction(err, "Error processing PDF file")
	}

	text, pages, err := pdfText(ctx, data)
	if errors.Is(err, errx.ErrCanceled) {
		return nil, err
	}
	if err != nil {
		logx.Error().Err(err).Int("bytes", len(data)).Msg("error extracting PDF")
		return nil, errx.Extraction(err, fmt.Sprintf("Error processing PDF file: %v", err))
	}

	logx.Debug().Int("pages", pages).Int("chars", len(text)).Msg("PDF text extracted")
	return &Result{Text: text, Kind: model.KindPDF, Units: pages}, nil
}

func pdfText(ctx context.Context, data []byte) (text string, pages int, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	pages = reader.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, errx.Canceled(err)
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(pageText)
	}
	return b.String(), pages, nil
}
