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
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"adscheck/internal/adstxt"
)

var sampleOutcomes = []adstxt.Outcome{
	{URL: "b.example", File: "ads.txt", Result: adstxt.ResultNotFound, Details: "No matching Domain+ID pair found", Reference: "x.com, 2"},
	{URL: "a.example", File: "app-ads.txt", Result: adstxt.ResultValid, Details: "Full match", Reference: "google.com, pub-1, DIRECT"},
	{URL: "a.example", File: "ads.txt", Result: adstxt.ResultPartial, Details: "Type mismatch: found RESELLER, expected DIRECT", Reference: "google.com, pub-1, DIRECT"},
	{URL: "c.example", File: "-", Result: adstxt.ResultSystemError, Details: "Unexpected fault: boom", Reference: "-"},
	{URL: "b.example", File: "ads.txt", Result: adstxt.ResultError, Details: "File not accessible", Reference: "google.com, pub-1, DIRECT"},
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	s := Summarize(sampleOutcomes)
	want := Summary{Valid: 1, Partial: 1, NotFound: 1, Errors: 2, Total: 5}
	if s != want {
		t.Errorf("Summarize() = %+v, want %+v", s, want)
	}
	if got := s.String(); !strings.Contains(got, "errors=2") || !strings.Contains(got, "total=5") {
		t.Errorf("String() = %q", got)
	}
}

func TestSortedIsDeterministic(t *testing.T) {
	t.Parallel()

	a := Sorted(sampleOutcomes)
	b := Sorted(sampleOutcomes)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two sorts of the same input differ")
	}
	if a[0].URL != "a.example" || a[0].File != "ads.txt" {
		t.Errorf("first row = %+v", a[0])
	}
	// Input untouched.
	if sampleOutcomes[0].URL != "b.example" {
		t.Error("Sorted mutated its input")
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleOutcomes); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading back CSV: %v", err)
	}
	if len(records) != len(sampleOutcomes)+1 {
		t.Fatalf("got %d records, want %d", len(records), len(sampleOutcomes)+1)
	}
	if !reflect.DeepEqual(records[0], Header) {
		t.Errorf("header = %q", records[0])
	}
	// Rows are in report order; first data row is a.example/ads.txt.
	if records[1][0] != "a.example" || records[1][2] != "Partially matched" {
		t.Errorf("first data row = %q", records[1])
	}
}

func TestSaveCSVAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out", "report.csv")
	if err := SaveCSV(path, sampleOutcomes); err != nil {
		t.Fatalf("SaveCSV: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report missing: %v", err)
	}
	if !strings.HasPrefix(string(data), "URL,File,Result,Details,Reference") {
		t.Errorf("unexpected file head: %q", string(data[:40]))
	}

	// No temp droppings left next to the report.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		for _, e := range entries {
			t.Logf("leftover: %s", e.Name())
		}
		t.Errorf("%d entries in report dir, want 1", len(entries))
	}
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleOutcomes); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reading back workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(resultsSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) < len(sampleOutcomes)+1 {
		t.Fatalf("got %d rows, want at least %d", len(rows), len(sampleOutcomes)+1)
	}
	if !reflect.DeepEqual(rows[0], Header) {
		t.Errorf("header row = %q", rows[0])
	}
	if rows[1][0] != "a.example" {
		t.Errorf("first data row = %q", rows[1])
	}

	// Summary block present below the table.
	found := false
	for _, row := range rows {
		if len(row) >= 2 && row[0] == "Total" && row[1] == "5" {
			found = true
		}
	}
	if !found {
		t.Error("summary block missing Total=5")
	}
}

func TestSaveXLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := SaveXLSX(path, sampleOutcomes); err != nil {
		t.Fatalf("SaveXLSX: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("saved workbook unreadable: %v", err)
	}
	f.Close()
}

func TestWriteCSVEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(Header, ",") {
		t.Errorf("empty report = %q", got)
	}
}
