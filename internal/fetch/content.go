package fetch

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
	"mime"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// IsHTML reports whether a 200 response is actually an HTML page rather
// than a plain-text authorization file. Parked domains and catch-all
// redirect targets commonly serve their landing page for any path with
// status 200. The declared Content-Type decides when present; otherwise
// the body is sniffed.
func IsHTML(contentType string, body []byte) bool {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "text/html", "application/xhtml+xml":
			return true
		case "text/plain":
			// Trust an explicit plain-text declaration even when the
			// body opens with markup-looking text.
			return false
		}
	}
	sniffed := http.DetectContentType(body)
	return strings.HasPrefix(sniffed, "text/html")
}

// PageTitle extracts the <title> of an HTML body for log diagnostics.
// Returns "" when the body has no title or cannot be parsed.
func PageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// DecodeBody converts raw bytes to a UTF-8 string honoring the charset
// parameter of the Content-Type header. Bodies without a declared charset
// (or with an unknown one) pass through unchanged; a UTF-8 BOM is
// stripped either way.
func DecodeBody(raw []byte, contentType string) (string, error) {
	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}

	if label != "" && !strings.EqualFold(label, "utf-8") {
		if enc, _ := charset.Lookup(label); enc != nil {
			decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
			if err != nil {
				return "", err
			}
			raw = decoded
		}
	}

	raw, _, _ = transform.Bytes(unicode.UTF8BOM.NewDecoder(), raw)
	return string(raw), nil
}
