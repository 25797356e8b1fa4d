// Package normalize holds the pure text rules that clean raw extract
// strings before canonical matching. Same input always yields the same
// output; nothing here touches external state.
package normalize

import (
	"regexp"
	"strings"

	"github.com/daseme/ctv-bookedbiz-db-sub002/internal/model"
)

// productionSuffixes are administrative markers the traffic system appends
// to some bill codes. Stripped case-sensitively and only when they are the
// terminal whitespace-separated token.
var productionSuffixes = []string{"PRODUCTION", "PROD"}

// Delimiter separates agency segments from the customer segment in a
// compound bill code ("AgencyOne:AgencyTwo:Customer").
const Delimiter = ":"

// DefaultMaxSegments bounds how many delimited segments a bill code may
// carry before the split is considered ambiguous.
const DefaultMaxSegments = 3

// suffixClasses maps business-suffix variants (uppercased, punctuation
// already stripped) to one canonical spelling, so "Inc", "Inc." and
// "Incorporated" all produce the same match key. The suffix stays part of
// the key: "Acme" and "Acme Inc" remain distinct names.
var suffixClasses = map[string]string{
	"INC":          "INC",
	"INCORPORATED": "INC",
	"CORP":         "CORP",
	"CORPORATION":  "CORP",
	"LLC":          "LLC",
	"LTD":          "LTD",
	"LIMITED":      "LTD",
	"LP":           "LP",
	"LLP":          "LLP",
	"CO":           "CO",
	"COMPANY":      "CO",
	"DBA":          "DBA",
	"D/B/A":        "DBA",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// Candidate is the structured output of splitting one raw bill code.
type Candidate struct {
	// AgencyCandidate is the compound agency string (all segments before
	// the final one, joined in order). Empty when the code has no agency
	// prefix.
	AgencyCandidate string
	// CustomerCandidate is the final segment, with the administrative
	// suffix stripped.
	CustomerCandidate string
	// CleanedRaw is the full input after suffix stripping and whitespace
	// normalization, kept for audit display.
	CleanedRaw string
}

// StripProductionSuffix removes a trailing administrative marker token.
// "Acme Corp PRODUCTION" becomes "Acme Corp"; "Production House" is left
// alone because the marker is not terminal and matching is case-sensitive.
func StripProductionSuffix(s string) string {
	trimmed := strings.TrimRight(s, " \t")
	for _, suffix := range productionSuffixes {
		if trimmed == suffix {
			continue // a bare marker is a name, not a suffix
		}
		if strings.HasSuffix(trimmed, " "+suffix) {
			return strings.TrimRight(strings.TrimSuffix(trimmed, suffix), " \t")
		}
	}
	return trimmed
}

// SplitBillCode applies the fixed rule order: strip the administrative
// suffix, then split on the reserved delimiter. With more than one segment
// the final segment is the customer candidate and all preceding segments
// form the compound agency candidate. maxSegments <= 0 uses
// DefaultMaxSegments; exceeding it returns AmbiguousSplitError.
func SplitBillCode(raw string, maxSegments int) (Candidate, error) {
	if maxSegments <= 0 {
		maxSegments = DefaultMaxSegments
	}

	cleaned := collapseSpaces(StripProductionSuffix(strings.TrimSpace(raw)))

	segments := strings.Split(cleaned, Delimiter)
	if len(segments) > maxSegments {
		return Candidate{}, &model.AmbiguousSplitError{
			Raw:         raw,
			Segments:    len(segments),
			MaxSegments: maxSegments,
		}
	}

	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}

	c := Candidate{CleanedRaw: cleaned}
	if len(segments) == 1 {
		c.CustomerCandidate = segments[0]
		return c, nil
	}
	c.CustomerCandidate = segments[len(segments)-1]
	c.AgencyCandidate = strings.Join(segments[:len(segments)-1], Delimiter)
	return c, nil
}

// CleanForMatching standardizes a name for canonical-map and direct-entity
// matching: uppercase, punctuation stripped, "&" folded to "AND",
// whitespace collapsed, and a terminal business-suffix variant rewritten to
// its canonical spelling. The stored raw text is never altered by this.
func CleanForMatching(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"&", "AND",
		"-", " ",
	).Replace(name)

	name = collapseSpaces(name)

	if i := strings.LastIndexByte(name, ' '); i >= 0 {
		if class, ok := suffixClasses[name[i+1:]]; ok {
			name = name[:i+1] + class
		}
	}
	return name
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}
