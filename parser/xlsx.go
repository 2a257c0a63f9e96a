package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser handles spreadsheet requirement matrices: one section per
// sheet, rows rendered as pipe-delimited lines so cell values remain
// verbatim quotable.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx", "xlsm"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var sections []Section

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		var content strings.Builder
		for _, row := range rows {
			if isEmptyRow(row) {
				continue
			}
			content.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		if content.Len() == 0 {
			continue
		}

		sections = append(sections, Section{
			Heading: sheet,
			Content: content.String(),
			Level:   1,
		})
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("no data found in XLSX")
	}

	return &ParseResult{Sections: sections}, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
