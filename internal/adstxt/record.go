/*
Package adstxt implements the ads.txt / app-ads.txt line grammar and the
reference matching algorithm.

The grammar shared by authoriation files and operator-supplied reference
lines is:

	domain "," id ["," type ["," cert]]

Fields are trimmed, a comment suffix starting at '#' is stripped before
splitting, and a leading byte-order mark is removed. Domain and id are
compared case-insensitively (lowercased at parse time), the relationship
type case-insensitively via uppercasing. The certification-authority id
(4th field) is parsed and carried but never validated.
*/
package adstxt

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
	"strings"
)

// The two authorization file names defined by the IAB specs.
const (
	FileAds    = "ads.txt"
	FileAppAds = "app-ads.txt"
)

// IsValidFilename reports whether name is one of the supported
// authorization file names.
func IsValidFilename(name string) bool {
	return name == FileAds || name == FileAppAds
}

// FileRecord is one parsed line from a fetched authorization file.
// Type and Cert are empty when the line did not carry them.
// Records are ephemeral: created per fetch, discarded after matching.
type FileRecord struct {
	Domain string // advertising system domain, lowercased
	ID     string // publisher account id, lowercased
	Type   string // DIRECT / RESELLER, uppercased, "" when absent
	Cert   string // certification authority id, lowercased, "" when absent
}

// ReferenceTuple is one operator-supplied expectation. It embeds the same
// normalized fields as FileRecord and additionally preserves the verbatim
// input line for reporting. Tuples are immutable once parsed and shared
// read-only across all target tasks.
type ReferenceTuple struct {
	FileRecord
	Original string
}

// splitFields strips the BOM and comment suffix, then splits the remaining
// line on commas with per-field trimming. Returns nil for lines that are
// empty after cleanup.
func splitFields(line string) []string {
	line = strings.TrimPrefix(line, "\ufeff")
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// ParseRecord parses a single authorization file line into a FileRecord.
// Lines with fewer than two fields (including comment-only and blank
// lines) yield ok=false and are meant to be dropped silently by the
// caller. ParseRecord never fails loudly; malformed input is not an error.
func ParseRecord(line string) (FileRecord, bool) {
	fields := splitFields(line)
	if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
		return FileRecord{}, false
	}

	rec := FileRecord{
		Domain: strings.ToLower(fields[0]),
		ID:     strings.ToLower(fields[1]),
	}
	if len(fields) > 2 {
		rec.Type = strings.ToUpper(fields[2])
	}
	if len(fields) > 3 {
		rec.Cert = strings.ToLower(fields[3])
	}
	return rec, true
}

// ParseReference parses an operator-supplied reference line. The grammar
// matches ParseRecord, but the untouched input line is retained for
// reporting. Lines with fewer than two fields yield ok=false; callers are
// expected to report such lines back to the operator rather than drop them
// silently.
func ParseReference(line string) (ReferenceTuple, bool) {
	rec, ok := ParseRecord(line)
	if !ok {
		return ReferenceTuple{}, false
	}
	return ReferenceTuple{FileRecord: rec, Original: line}, true
}

// ParseFile parses the full text of a fetched authorization file in file
// order. Malformed lines are skipped.
func ParseFile(content string) []FileRecord {
	if content == "" {
		return nil
	}
	var records []FileRecord
	for _, line := range strings.Split(content, "\n") {
		if rec, ok := ParseRecord(line); ok {
			records = append(records, rec)
		}
	}
	return records
}

// ParseReferences parses raw reference lines, returning the usable tuples
// and the verbatim lines that were rejected. Blank lines are neither
// parsed nor reported.
func ParseReferences(lines []string) (refs []ReferenceTuple, skipped []string) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		ref, ok := ParseReference(line)
		if !ok {
			skipped = append(skipped, line)
			continue
		}
		refs = append(refs, ref)
	}
	return refs, skipped
}
