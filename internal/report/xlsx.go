package report

/*
adscheck — ads.txt / app-ads.txt validation tool in Go
Copyright (C) 2026  adscheck authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"adscheck/internal/adstxt"
)

const resultsSheet = "Results"

// resultFill maps a classification to the Excel fill/font colors used in
// its cell, the green/yellow/red convention operators expect.
func resultFill(r adstxt.Result) (fill, font string) {
	switch r {
	case adstxt.ResultValid:
		return "C6EFCE", "006100"
	case adstxt.ResultPartial:
		return "FFEB9C", "9C6500"
	case adstxt.ResultNotFound:
		return "D9D9D9", "404040"
	default: // Error, System Error
		return "FFC7CE", "9C0006"
	}
}

// WriteXLSX renders outcomes to w as a single-sheet workbook with a bold
// header row, per-result cell coloring, and a trailing summary block.
func WriteXLSX(w io.Writer, outcomes []adstxt.Outcome) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for col, name := range Header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(resultsSheet, cell, name); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(resultsSheet, "A1", endHeader, headerStyle); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	// One style per classification, created lazily.
	styles := map[adstxt.Result]int{}
	styleFor := func(r adstxt.Result) (int, error) {
		if id, ok := styles[r]; ok {
			return id, nil
		}
		fill, font := resultFill(r)
		id, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Color: font},
			Fill: excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
		})
		if err != nil {
			return 0, err
		}
		styles[r] = id
		return id, nil
	}

	rows := Sorted(outcomes)
	for i, o := range rows {
		rowNum := i + 2
		values := []interface{}{o.URL, o.File, string(o.Result), o.Details, o.Reference}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			if err := f.SetCellValue(resultsSheet, cell, v); err != nil {
				return fmt.Errorf("writing row %d: %w", rowNum, err)
			}
		}
		styleID, err := styleFor(o.Result)
		if err != nil {
			return fmt.Errorf("creating result style: %w", err)
		}
		resultCell, _ := excelize.CoordinatesToCellName(3, rowNum)
		if err := f.SetCellStyle(resultsSheet, resultCell, resultCell, styleID); err != nil {
			return fmt.Errorf("styling row %d: %w", rowNum, err)
		}
	}

	// Summary block two rows under the table.
	s := Summarize(outcomes)
	base := len(rows) + 3
	summary := [][2]interface{}{
		{"Valid", s.Valid},
		{"Partially matched", s.Partial},
		{"Not found", s.NotFound},
		{"Errors", s.Errors},
		{"Total", s.Total},
	}
	for i, kv := range summary {
		labelCell, _ := excelize.CoordinatesToCellName(1, base+i)
		valueCell, _ := excelize.CoordinatesToCellName(2, base+i)
		if err := f.SetCellValue(resultsSheet, labelCell, kv[0]); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
		if err := f.SetCellValue(resultsSheet, valueCell, kv[1]); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}

	// Readable default widths for the text-heavy columns.
	_ = f.SetColWidth(resultsSheet, "A", "A", 32)
	_ = f.SetColWidth(resultsSheet, "B", "C", 16)
	_ = f.SetColWidth(resultsSheet, "D", "E", 44)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// SaveXLSX writes outcomes to path atomically.
func SaveXLSX(path string, outcomes []adstxt.Outcome) error {
	return writeAtomic(path, func(w io.Writer) error {
		return WriteXLSX(w, outcomes)
	})
}
