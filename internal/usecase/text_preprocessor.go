package usecase

import (
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// punctuationMap folds unicode punctuation to the ASCII forms the segmenter understands
var punctuationMap = map[rune]rune{
	'‘': '\'', '’': '\'', '‛': '\'', '′': '\'',
	'“': '"', '”': '"', '„': '"', '″': '"',
	'‐': '-', '‑': '-', '‒': '-', '–': '-', '—': '-', '―': '-', '−': '-',
	'×': 'x', '✕': 'x', '✖': 'x',
	'•': '*', '◦': '*', '▪': '*', '▫': '*', '●': '*', '○': '*',
	'■': '*', '□': '*', '‣': '*', '⁃': '*', '∙': '*', '·': '*',
	'➤': '*', '►': '*', '▶': '*', '✓': '*', '✔': '*',
	'،': ',', '、': ',', '؛': ';',
}

// TextPreprocessor cleans raw request text (typed, transcribed or read from an image)
type TextPreprocessor struct {
	logger zerolog.Logger
}

// NewTextPreprocessor creates a new text preprocessor
func NewTextPreprocessor(logger zerolog.Logger) *TextPreprocessor {
	return &TextPreprocessor{logger: logger}
}

// Normalize lower-cases the text, folds unicode punctuation, collapses whitespace,
// canonicalizes unit spellings and spells out "one".."ten" as digits.
// It never fails; unknown tokens pass through unchanged.
func (p *TextPreprocessor) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	original := text

	// Step 1: unify line endings so \r never survives as a separator
	cleaned := strings.ReplaceAll(text, "\r\n", "\n")
	cleaned = strings.ReplaceAll(cleaned, "\r", "\n")

	// Step 2: compatibility-normalize, fold punctuation and drop control characters
	cleaned = foldUnicode(cleaned)

	// Step 3: lower-case and collapse whitespace
	cleaned = collapseWhitespace(strings.ToLower(cleaned))

	// Step 4: canonical unit spellings
	cleaned = canonicalizeUnits(cleaned)

	// Step 5: small cardinals to digits
	cleaned = numberWordRegex.ReplaceAllStringFunc(cleaned, func(w string) string {
		return numberWords[w]
	})

	p.logger.Debug().Str("input", original).Str("output", cleaned).Msg("preprocessed request text")

	return cleaned
}

func foldUnicode(s string) string {
	t := transform.Chain(
		norm.NFKC,
		runes.Map(func(r rune) rune {
			if mapped, ok := punctuationMap[r]; ok {
				return mapped
			}
			return r
		}),
		runes.Remove(runes.Predicate(func(r rune) bool {
			return unicode.IsControl(r) && r != '\n' && r != '\t'
		})),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// collapseWhitespace joins words on each line with single spaces and drops blank lines
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 {
			kept = append(kept, strings.Join(fields, " "))
		}
	}
	return strings.Join(kept, "\n")
}
