package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/xuri/excelize/v2"

	"github.com/docqa-assistant/server/internal/assistant/model"
	errx "github.com/docqa-assistant/server/internal/core/error"
	logx "github.com/docqa-assistant/server/pkg/logger"
)

type SpreadsheetExtractor struct{}

func NewSpreadsheetExtractor() *SpreadsheetExtractor {
	return &SpreadsheetExtractor{}
}

// SheetHeader is the line that introduces each sheet in the extracted text.
func SheetHeader(name string) string {
	return fmt.Sprintf("\n--- Sheet: %s ---\n", name)
}

// Extract renders every sheet, in workbook order, as a header line followed by a
// plain-text table. The first row of a sheet is its column header.
func (e *SpreadsheetExtractor) Extract(ctx context.Context, r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		logx.Error().Err(err).Msg("error extracting Excel")
		return nil, errx.Extraction(err, fmt.Sprintf("Error processing Excel file: %v", err))
	}
	defer func() {
		if err := f.Close(); err != nil {
			logx.Warn().Err(err).Msg("failed to close workbook")
		}
	}()

	sheets := f.GetSheetList()
	var b strings.Builder
	for _, name := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, errx.Canceled(err)
		}
		rows, err := f.GetRows(name)
		if err != nil {
			logx.Error().Err(err).Str("sheet", name).Msg("error reading sheet")
			return nil, errx.Extraction(err, fmt.Sprintf("Error processing Excel file: %v", err))
		}
		b.WriteString(SheetHeader(name))
		b.WriteString(renderRows(rows))
	}

	logx.Debug().Int("sheets", len(sheets)).Int("chars", b.Len()).Msg("spreadsheet text extracted")
	return &Result{Text: b.String(), Kind: model.KindSpreadsheet, Units: len(sheets)}, nil
}

// renderRows lays rows out as borderless, left-aligned columns.
func renderRows(rows [][]string) string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return ""
	}

	// tablewriter expects every row to be as wide as the header
	padded := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, width)
		copy(cells, row)
		padded[i] = cells
	}

	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	table.SetHeader(padded[0])
	table.AppendBulk(padded[1:])
	table.Render()
	return sb.String()
}
