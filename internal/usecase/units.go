package usecase

import (
	"regexp"
	"strings"
)

// unitVariants maps the spellings customers and price sheets use to the canonical unit set
var unitVariants = map[string]string{
	// Weight
	"kg": "kg", "kgs": "kg", "kilo": "kg", "kilos": "kg", "kilogram": "kg", "kilograms": "kg",
	"ton": "ton", "tons": "ton", "tonne": "ton", "tonnes": "ton",
	"quintal": "quintal", "quintals": "quintal",

	// Count
	"piece": "piece", "pieces": "piece", "pc": "piece", "pcs": "piece", "nos": "piece",
	"bag": "bag", "bags": "bag",
	"bundle": "bundle", "bundles": "bundle",
	"box": "box", "boxes": "box",
	"roll": "roll", "rolls": "roll",
	"sheet": "sheet", "sheets": "sheet",
	"packet": "packet", "packets": "packet", "pkt": "packet", "pkts": "packet",
	"dozen": "dozen", "dozens": "dozen",
	"set": "set", "sets": "set",
	"coil": "coil", "coils": "coil",
	"drum": "drum", "drums": "drum",
	"tin": "tin", "tins": "tin",

	// Length, area, volume
	"ft": "ft", "feet": "ft", "foot": "ft", "rft": "ft",
	"metre": "metre", "metres": "metre", "meter": "metre", "meters": "metre", "mtr": "metre", "mtrs": "metre",
	"sq.ft": "sq.ft", "sqft": "sq.ft", "sft": "sq.ft",
	"cu.ft": "cu.ft", "cft": "cu.ft", "cuft": "cu.ft",
	"brass": "brass",
	"litre": "litre", "litres": "litre", "liter": "litre", "liters": "litre", "ltr": "litre", "ltrs": "litre",
	"truckload": "truckload", "truckloads": "truckload",
}

// Multi-word and dotted spellings are rewritten before the single-token pass
var unitPhrases = []struct {
	pattern *regexp.Regexp
	unit    string
}{
	{regexp.MustCompile(`\bsq(?:uare)?\.?\s*(?:ft|feet|foot)\b\.?`), "sq.ft"},
	{regexp.MustCompile(`\bcu(?:bic)?\.?\s*(?:ft|feet|foot)\b\.?`), "cu.ft"},
	{regexp.MustCompile(`\bno\.s\b\.?|\bnos\.`), "nos"},
	{regexp.MustCompile(`\bpcs\.`), "pcs"},
	{regexp.MustCompile(`\btruck\s+loads?\b`), "truckload"},
}

var (
	wordTokenRegex  = regexp.MustCompile(`\b[a-z]+\b`)
	numberWordRegex = regexp.MustCompile(`\b(one|two|three|four|five|six|seven|eight|nine|ten)\b`)
)

var numberWords = map[string]string{
	"one": "1", "two": "2", "three": "3", "four": "4", "five": "5",
	"six": "6", "seven": "7", "eight": "8", "nine": "9", "ten": "10",
}

// CanonicalUnit reports the canonical form of a unit token
func CanonicalUnit(token string) (string, bool) {
	unit, ok := unitVariants[strings.ToLower(strings.TrimSpace(token))]
	return unit, ok
}

// canonicalizeUnits rewrites unit spellings in lower-cased text to the canonical set.
// "10bags" is left alone here; the segmenter splits attached suffixes itself.
func canonicalizeUnits(s string) string {
	for _, p := range unitPhrases {
		s = p.pattern.ReplaceAllString(s, p.unit)
	}
	return wordTokenRegex.ReplaceAllStringFunc(s, func(word string) string {
		if unit, ok := unitVariants[word]; ok {
			return unit
		}
		return word
	})
}

// canonicalUnitLabel normalizes a catalog unit cell ("Bags", "Sq Ft") for storage and comparison
func canonicalUnitLabel(unit string) string {
	unit = strings.ToLower(strings.Join(strings.Fields(unit), " "))
	if unit == "" {
		return ""
	}
	return canonicalizeUnits(unit)
}
