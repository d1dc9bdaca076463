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
	"encoding/csv"
	"fmt"
	"io"

	"adscheck/internal/adstxt"
)

// WriteCSV renders outcomes to w in report order with the standard
// header row.
func WriteCSV(w io.Writer, outcomes []adstxt.Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, o := range Sorted(outcomes) {
		record := []string{o.URL, o.File, string(o.Result), o.Details, o.Reference}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes outcomes to path atomically.
func SaveCSV(path string, outcomes []adstxt.Outcome) error {
	return writeAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, outcomes)
	})
}
