/*
Package report renders the outcome rows of a validation run. It offers a
CSV form for pipelines, an XLSX workbook for operators, and an aggregate
summary for terminal output. All file writes go through a temp-file and
rename so a crashed run never leaves a truncated report behind.
*/
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
	"sort"

	"adscheck/internal/adstxt"
)

// Header is the stable column order of every tabular rendering.
var Header = []string{"URL", "File", "Result", "Details", "Reference"}

// Summary aggregates a run's outcomes the way operators read them:
// errors of both classes fold into one count.
type Summary struct {
	Valid    int
	Partial  int
	NotFound int
	Errors   int
	Total    int
}

// Summarize counts outcomes per classification bucket.
func Summarize(outcomes []adstxt.Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Result {
		case adstxt.ResultValid:
			s.Valid++
		case adstxt.ResultPartial:
			s.Partial++
		case adstxt.ResultNotFound:
			s.NotFound++
		default:
			s.Errors++
		}
		s.Total++
	}
	return s
}

// String renders the summary as a single operator-facing line.
func (s Summary) String() string {
	return fmt.Sprintf("valid=%d partially_matched=%d not_found=%d errors=%d total=%d",
		s.Valid, s.Partial, s.NotFound, s.Errors, s.Total)
}

// Sorted returns a copy of outcomes in report order: by target, then
// file, then reference. The engine collects rows in completion order,
// which varies run to run; reports should not.
func Sorted(outcomes []adstxt.Outcome) []adstxt.Outcome {
	rows := make([]adstxt.Outcome, len(outcomes))
	copy(rows, outcomes)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].URL != rows[j].URL {
			return rows[i].URL < rows[j].URL
		}
		if rows[i].File != rows[j].File {
			return rows[i].File < rows[j].File
		}
		return rows[i].Reference < rows[j].Reference
	})
	return rows
}
