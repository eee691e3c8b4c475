package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/shipops/docsearch/internal/document"
)

// excelExtractor handles .xlsx workbooks: one "[Sheet: name]" section per
// worksheet with cell values joined row by row.
type excelExtractor struct{}

func (e *excelExtractor) Extract(blob []byte) (string, []document.PageEntry, error) {
	f, err := excelize.OpenReader(bytes.NewReader(blob))
	if err != nil {
		return "", nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var parts []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("[Sheet: %s]", sheet))
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				cell = strings.TrimSpace(cell)
				if cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) > 0 {
				parts = append(parts, strings.Join(cells, " | "))
			}
		}
	}
	return strings.Join(parts, "\n"), nil, nil
}
