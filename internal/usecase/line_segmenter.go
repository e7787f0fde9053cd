package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/materialquote/backend/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// "5", "2.5", "2,000", "1,20,000" (lakh grouping) and "2000.50"
	quantityRegex = regexp.MustCompile(`^(?:\d{1,3}(?:,\d{2,3})+|\d+)(?:\.\d+)?$`)

	// quantity with a unit glued on, e.g. "10bags", "50kg", "100sq.ft"
	attachedUnitRegex = regexp.MustCompile(`^((?:\d{1,3}(?:,\d{2,3})+|\d+)(?:\.\d+)?)([a-z][a-z.]*)$`)

	// "5x" and "x5" multiplier forms
	multiplierSuffixRegex = regexp.MustCompile(`^(\d[\d,]*(?:\.\d+)?)x$`)
	multiplierPrefixRegex = regexp.MustCompile(`^x(\d[\d,]*(?:\.\d+)?)$`)

	// numbered list markers: "1." "2)" "(3)"
	listMarkerRegex = regexp.MustCompile(`^\(?\d{1,2}[.)]$`)

	tokenPunctuation = strings.NewReplacer(":", " ", "(", " ", ")", " ", "\"", " ", "!", " ", "?", " ", "[", " ", "]", " ", "=", " ")
)

// fillerWords are conversational words that never name a material
var fillerWords = map[string]bool{
	"need": true, "needs": true, "needed": true, "want": true, "wanted": true,
	"require": true, "required": true, "requirement": true, "get": true,
	"please": true, "pls": true, "plz": true, "kindly": true, "send": true, "give": true,
	"me": true, "us": true, "i": true, "we": true, "my": true, "our": true,
	"the": true, "a": true, "an": true, "of": true, "for": true, "and": true, "&": true,
	"more": true, "also": true, "later": true, "another": true, "additional": true,
	"extra": true, "plus": true, "some": true, "about": true, "around": true,
	"approx": true, "approximately": true, "total": true, "with": true, "to": true,
	"price": true, "prices": true, "rate": true, "rates": true, "quote": true,
	"quotation": true, "cost": true, "list": true, "what": true, "is": true, "are": true,
	"how": true, "much": true, "hi": true, "hello": true, "hey": true, "sir": true,
	"madam": true, "thanks": true, "thank": true, "you": true, "ok": true, "okay": true,
	"x": true,
}

// conjunctions split a fragment only when a quantity follows them
var conjunctions = map[string]bool{"and": true, "&": true, "plus": true}

// LineSegmenter splits normalized request text into material mentions
type LineSegmenter struct{}

// NewLineSegmenter creates a new line segmenter
func NewLineSegmenter() *LineSegmenter {
	return &LineSegmenter{}
}

type segmentToken struct {
	text     string
	quantity *decimal.Decimal
	unit     string
}

func (t segmentToken) isQuantity() bool { return t.quantity != nil }
func (t segmentToken) isUnit() bool     { return t.unit != "" }

// Segment returns the mentions in order of appearance. Repeated materials are kept
// as separate mentions. Empty input yields an empty slice.
func (s *LineSegmenter) Segment(normalized string) []domain.Mention {
	mentions := make([]domain.Mention, 0)
	for _, fragment := range splitFragments(normalized) {
		if m, ok := parseFragment(fragment); ok {
			mentions = append(mentions, m)
		}
	}
	return mentions
}

// splitFragments breaks text on line breaks, bullets, semicolons and list commas
func splitFragments(text string) []string {
	var fragments []string
	for _, line := range strings.Split(text, "\n") {
		for _, part := range splitSeparators(line) {
			for _, piece := range splitConjunctions(part) {
				if strings.TrimSpace(piece) != "" {
					fragments = append(fragments, piece)
				}
			}
		}
	}
	return fragments
}

// splitSeparators splits on ';', '*' and ',' except a comma inside a number like "2,000"
func splitSeparators(line string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case ';', '*':
		case ',':
			if isDigitGroupComma(line, i) {
				continue
			}
		default:
			continue
		}
		parts = append(parts, line[start:i])
		start = i + 1
	}
	return append(parts, line[start:])
}

// isDigitGroupComma reports whether the comma at i separates digit groups of one number
func isDigitGroupComma(s string, i int) bool {
	if i == 0 || !isASCIIDigit(s[i-1]) {
		return false
	}
	n := 0
	for j := i + 1; j < len(s) && isASCIIDigit(s[j]); j++ {
		n++
	}
	return n == 2 || n == 3
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// splitConjunctions splits "5 bag cement and 2 ton sand" but leaves "nuts and bolts" intact
func splitConjunctions(fragment string) []string {
	words := strings.Fields(fragment)
	var parts []string
	start := 0
	for i := 1; i < len(words)-1; i++ {
		if conjunctions[words[i]] && startsWithQuantity(words[i+1]) {
			parts = append(parts, strings.Join(words[start:i], " "))
			start = i + 1
		}
	}
	return append(parts, strings.Join(words[start:], " "))
}

func startsWithQuantity(word string) bool {
	return quantityRegex.MatchString(word) || attachedUnitRegex.MatchString(word) ||
		multiplierSuffixRegex.MatchString(word)
}

// tokenizeFragment classifies the words of a fragment into quantities, units and text
func tokenizeFragment(fragment string) []segmentToken {
	words := strings.Fields(fragment)
	if len(words) > 1 && listMarkerRegex.MatchString(words[0]) {
		words = words[1:]
	}
	words = strings.Fields(tokenPunctuation.Replace(strings.Join(words, " ")))

	tokens := make([]segmentToken, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".-'`,/")
		if w == "" {
			continue
		}
		if m := multiplierSuffixRegex.FindStringSubmatch(w); m != nil {
			w = m[1]
		} else if m := multiplierPrefixRegex.FindStringSubmatch(w); m != nil {
			w = m[1]
		}

		if q, ok := parseQuantity(w); ok {
			tokens = append(tokens, segmentToken{text: w, quantity: q})
			continue
		}
		if m := attachedUnitRegex.FindStringSubmatch(w); m != nil {
			if unit, ok := CanonicalUnit(strings.TrimRight(m[2], ".")); ok {
				if q, ok := parseQuantity(m[1]); ok {
					tokens = append(tokens,
						segmentToken{text: m[1], quantity: q},
						segmentToken{text: unit, unit: unit})
					continue
				}
			}
		}
		if unit, ok := CanonicalUnit(w); ok {
			tokens = append(tokens, segmentToken{text: w, unit: unit})
			continue
		}
		tokens = append(tokens, segmentToken{text: w})
	}
	return tokens
}

// parseQuantity accepts non-negative numbers. A stated zero stays a quantity so the
// assembler can ask about it instead of billing one unit.
func parseQuantity(w string) (*decimal.Decimal, bool) {
	if !quantityRegex.MatchString(w) {
		return nil, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(w, ",", ""))
	if err != nil || d.IsNegative() {
		return nil, false
	}
	return &d, true
}

// parseFragment picks the quantity and unit of a fragment and returns the rest as the mention
func parseFragment(fragment string) (domain.Mention, bool) {
	tokens := tokenizeFragment(fragment)
	if len(tokens) == 0 {
		return domain.Mention{}, false
	}

	qi, ui := pickQuantity(tokens)

	rest := make([]segmentToken, 0, len(tokens))
	for i, t := range tokens {
		if i == qi || i == ui {
			continue
		}
		rest = append(rest, t)
	}
	rest = trimFillers(rest)
	if !hasMaterialText(rest) {
		return domain.Mention{}, false
	}

	words := make([]string, len(rest))
	for i, t := range rest {
		words[i] = t.text
	}

	m := domain.Mention{RawMention: strings.Join(words, " ")}
	if qi >= 0 {
		m.Quantity = tokens[qi].quantity
	}
	if ui >= 0 {
		m.Unit = tokens[ui].unit
	}
	return m, true
}

// pickQuantity prefers a number with an adjacent unit, then a leading number,
// then a trailing number (taking a unit written just before it).
// It returns -1 for whichever index is absent.
func pickQuantity(tokens []segmentToken) (qi, ui int) {
	for i, t := range tokens {
		if !t.isQuantity() {
			continue
		}
		if j := nextNonFiller(tokens, i); j >= 0 && tokens[j].isUnit() {
			return i, j
		}
	}

	if first := nextNonFiller(tokens, -1); first >= 0 && tokens[first].isQuantity() {
		return first, -1
	}

	if last := prevNonFiller(tokens, len(tokens)); last >= 0 && tokens[last].isQuantity() {
		if j := prevNonFiller(tokens, last); j >= 0 && tokens[j].isUnit() && j != 0 {
			return last, j
		}
		return last, -1
	}

	return -1, -1
}

func nextNonFiller(tokens []segmentToken, from int) int {
	for i := from + 1; i < len(tokens); i++ {
		if !fillerWords[tokens[i].text] {
			return i
		}
	}
	return -1
}

func prevNonFiller(tokens []segmentToken, from int) int {
	for i := from - 1; i >= 0; i-- {
		if !fillerWords[tokens[i].text] {
			return i
		}
	}
	return -1
}

func trimFillers(tokens []segmentToken) []segmentToken {
	start, end := 0, len(tokens)
	for start < end && fillerWords[tokens[start].text] {
		start++
	}
	for end > start && fillerWords[tokens[end-1].text] {
		end--
	}
	return tokens[start:end]
}

// hasMaterialText reports whether any token could name a material: not a number,
// not a bare unit, not a filler word, and containing a letter
func hasMaterialText(tokens []segmentToken) bool {
	for _, t := range tokens {
		if t.isQuantity() || t.isUnit() || fillerWords[t.text] {
			continue
		}
		for _, r := range t.text {
			if unicode.IsLetter(r) {
				return true
			}
		}
	}
	return false
}
