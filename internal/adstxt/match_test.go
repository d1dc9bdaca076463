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

import "testing"

func mustRef(t *testing.T, line string) ReferenceTuple {
	t.Helper()
	ref, ok := ParseReference(line)
	if !ok {
		t.Fatalf("bad reference fixture %q", line)
	}
	return ref
}

func TestMatchReference(t *testing.T) {
	t.Parallel()

	records := ParseFile(
		"google.com, pub-1, DIRECT\n" +
			"google.com, pub-1, RESELLER\n" + // later duplicate must never win
			"appnexus.com, 42\n" +
			"rubicon.com, 77, RESELLER\n",
	)

	tests := []struct {
		name       string
		ref        string
		policy     MatchPolicy
		wantResult Result
		wantDetail string
	}{
		{
			name:       "full match",
			ref:        "google.com, pub-1, DIRECT",
			wantResult: ResultValid,
			wantDetail: "Full match",
		},
		{
			name:       "reference without type",
			ref:        "google.com, pub-1",
			wantResult: ResultValid,
			wantDetail: "Matched by Domain + ID (Type not specified)",
		},
		{
			name:       "record without type",
			ref:        "appnexus.com, 42, DIRECT",
			wantResult: ResultValid,
			wantDetail: "Matched (type missing in file)",
		},
		{
			name:       "type mismatch strict",
			ref:        "rubicon.com, 77, DIRECT",
			wantResult: ResultPartial,
			wantDetail: "Type mismatch: found RESELLER, expected DIRECT",
		},
		{
			name:       "type mismatch lenient",
			ref:        "rubicon.com, 77, DIRECT",
			policy:     PolicyLenient,
			wantResult: ResultValid,
			wantDetail: "Type mismatch: found RESELLER, expected DIRECT",
		},
		{
			name:       "no domain+id pair",
			ref:        "google.com, pub-999, DIRECT",
			wantResult: ResultNotFound,
			wantDetail: "No matching Domain+ID pair found",
		},
		{
			name:       "case-insensitive lookup",
			ref:        "GOOGLE.COM, PUB-1, direct",
			wantResult: ResultValid,
			wantDetail: "Full match",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ref := mustRef(t, tc.ref)
			got := MatchReference(records, ref, "example.com", FileAds, tc.policy)
			if got.Result != tc.wantResult {
				t.Errorf("Result = %q, want %q", got.Result, tc.wantResult)
			}
			if got.Details != tc.wantDetail {
				t.Errorf("Details = %q, want %q", got.Details, tc.wantDetail)
			}
			if got.URL != "example.com" || got.File != FileAds {
				t.Errorf("row identity = %q/%q", got.URL, got.File)
			}
			if got.Reference != tc.ref {
				t.Errorf("Reference = %q, want verbatim %q", got.Reference, tc.ref)
			}
		})
	}
}

func TestMatchReferenceFirstMatchWins(t *testing.T) {
	t.Parallel()

	// Same Domain+ID twice with conflicting types: the earlier line decides.
	records := ParseFile("x.com, 1, RESELLER\nx.com, 1, DIRECT\n")
	ref := mustRef(t, "x.com, 1, DIRECT")

	got := MatchReference(records, ref, "pub.example", FileAppAds, PolicyStrict)
	if got.Result != ResultPartial {
		t.Errorf("Result = %q, want %q (first record must win)", got.Result, ResultPartial)
	}
}

func TestMatchReferenceEmptyFile(t *testing.T) {
	t.Parallel()

	ref := mustRef(t, "google.com, pub-1")
	got := MatchReference(nil, ref, "example.com", FileAds, PolicyStrict)
	if got.Result != ResultNotFound {
		t.Errorf("Result = %q, want %q", got.Result, ResultNotFound)
	}
}

func TestMatchAllOrder(t *testing.T) {
	t.Parallel()

	records := ParseFile("a.com, 1, DIRECT\n")
	refs, _ := ParseReferences([]string{
		"a.com, 1, DIRECT",
		"b.com, 2",
	})

	outcomes := MatchAll(records, refs, "example.com", FileAds, PolicyStrict)
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Result != ResultValid || outcomes[1].Result != ResultNotFound {
		t.Errorf("outcomes out of order: %+v", outcomes)
	}
}

func TestParseMatchPolicy(t *testing.T) {
	t.Parallel()

	if p, err := ParseMatchPolicy("strict"); err != nil || p != PolicyStrict {
		t.Errorf("strict: %v, %v", p, err)
	}
	if p, err := ParseMatchPolicy("lenient"); err != nil || p != PolicyLenient {
		t.Errorf("lenient: %v, %v", p, err)
	}
	if _, err := ParseMatchPolicy("fuzzy"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
