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

import "fmt"

// Result classifies one reference check against one fetched file.
type Result string

const (
	ResultValid       Result = "Valid"
	ResultPartial     Result = "Partially matched"
	ResultNotFound    Result = "Not found"
	ResultError       Result = "Error"
	ResultSystemError Result = "System Error"
)

// MatchPolicy decides how a Domain+ID match with a conflicting
// relationship type is classified.
type MatchPolicy int

const (
	// PolicyStrict classifies a type conflict as Partially matched.
	PolicyStrict MatchPolicy = iota
	// PolicyLenient classifies a type conflict as Valid, keeping the
	// mismatch visible in the detail text.
	PolicyLenient
)

func (p MatchPolicy) String() string {
	switch p {
	case PolicyStrict:
		return "strict"
	case PolicyLenient:
		return "lenient"
	default:
		return fmt.Sprintf("MatchPolicy(%d)", int(p))
	}
}

// ParseMatchPolicy maps a flag value to a policy.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch s {
	case "strict":
		return PolicyStrict, nil
	case "lenient":
		return PolicyLenient, nil
	default:
		return PolicyStrict, fmt.Errorf("unknown match policy %q (want strict or lenient)", s)
	}
}

// Outcome is one row of the final report: a single reference checked
// against a single file on a single target.
type Outcome struct {
	URL       string // target domain as supplied by the operator
	File      string // ads.txt or app-ads.txt
	Result    Result
	Details   string // human-readable classification detail
	Reference string // verbatim reference line, "-" for target-level failures
}

// MatchReference checks one reference tuple against the parsed records of
// one file. The first record agreeing on Domain and ID decides the
// outcome; later records never override it.
func MatchReference(records []FileRecord, ref ReferenceTuple, target, file string, policy MatchPolicy) Outcome {
	out := Outcome{
		URL:       target,
		File:      file,
		Reference: ref.Original,
	}

	for _, rec := range records {
		if rec.Domain != ref.Domain || rec.ID != ref.ID {
			continue
		}
		switch {
		case ref.Type == "":
			out.Result = ResultValid
			out.Details = "Matched by Domain + ID (Type not specified)"
		case rec.Type == "":
			out.Result = ResultValid
			out.Details = "Matched (type missing in file)"
		case rec.Type == ref.Type:
			out.Result = ResultValid
			out.Details = "Full match"
		default:
			out.Details = fmt.Sprintf("Type mismatch: found %s, expected %s", rec.Type, ref.Type)
			if policy == PolicyLenient {
				out.Result = ResultValid
			} else {
				out.Result = ResultPartial
			}
		}
		return out
	}

	out.Result = ResultNotFound
	out.Details = "No matching Domain+ID pair found"
	return out
}

// MatchAll evaluates every reference against one file's records,
// producing one Outcome per reference in reference order.
func MatchAll(records []FileRecord, refs []ReferenceTuple, target, file string, policy MatchPolicy) []Outcome {
	outcomes := make([]Outcome, 0, len(refs))
	for _, ref := range refs {
		outcomes = append(outcomes, MatchReference(records, ref, target, file, policy))
	}
	return outcomes
}
