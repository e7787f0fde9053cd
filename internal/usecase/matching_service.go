package usecase

import (
	"strings"
	"unicode"

	"github.com/materialquote/backend/internal/domain"
)

// Scoring constants
const (
	defaultMatchThreshold = 0.6  // Minimum score for a mention to resolve
	containmentBase       = 0.9  // Word-aligned substring match floor
	containmentSpan       = 0.1  // Added in proportion to how much of the longer string is covered
	minContainmentLength  = 3    // Shorter side must be at least this long to count as contained
	tokenMatchRatio       = 0.8  // Two tokens are "the same word" at this edit ratio
	scoreEpsilon          = 1e-9 // Scores closer than this are ties
	minCategoryHintLength = 3    // Category words shorter than this are not hints
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	MinConfidenceThreshold float64
}

// MatchResult is the outcome of matching one mention against a catalog
type MatchResult struct {
	EntryIndex int // position in catalog order, -1 when the catalog is empty
	EntryID    int
	Score      float64
	Matched    bool // Score reached the threshold
}

// MatchingService resolves material mentions to catalog entries by fuzzy similarity.
// It holds no mutable state and is safe for concurrent use.
type MatchingService struct {
	minConfidenceThreshold float64
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	threshold := config.MinConfidenceThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultMatchThreshold
	}

	return &MatchingService{
		minConfidenceThreshold: threshold,
	}
}

// Threshold returns the acceptance threshold in use
func (s *MatchingService) Threshold() float64 {
	return s.minConfidenceThreshold
}

// FindBestMatch scores the mention against every entry's name and aliases and picks the winner.
// Ties go to the entry whose category is hinted in the mention, then to the shorter
// canonical name, then to the entry that comes first in catalog order.
func (s *MatchingService) FindBestMatch(mention string, catalog *domain.Catalog) MatchResult {
	best := MatchResult{EntryIndex: -1}

	key := matchKey(mention)
	if key == "" || catalog.IsEmpty() {
		return best
	}
	mentionTokens := strings.Fields(key)

	bestHint := false
	bestNameLen := 0

	for i := 0; i < catalog.Len(); i++ {
		entry := catalog.At(i)
		score := entryScore(key, entry)
		hint := hasCategoryHint(mentionTokens, entry.Category)
		nameLen := len([]rune(entry.Name))

		if best.EntryIndex >= 0 && !betterCandidate(score, hint, nameLen, best.Score, bestHint, bestNameLen) {
			continue
		}

		best = MatchResult{EntryIndex: i, EntryID: entry.ID, Score: score}
		bestHint = hint
		bestNameLen = nameLen
	}

	best.Matched = best.Score >= s.minConfidenceThreshold
	return best
}

// betterCandidate reports whether a challenger beats the current best.
// Equal candidates never win, which keeps the first entry in catalog order.
func betterCandidate(score float64, hint bool, nameLen int, bestScore float64, bestHint bool, bestNameLen int) bool {
	if score > bestScore+scoreEpsilon {
		return true
	}
	if score < bestScore-scoreEpsilon {
		return false
	}
	if hint != bestHint {
		return hint
	}
	return nameLen < bestNameLen
}

// entryScore is the best similarity across an entry's canonical name and aliases
func entryScore(mentionKey string, entry domain.CatalogEntry) float64 {
	score := similarity(mentionKey, matchKey(entry.Name))
	for _, alias := range entry.Aliases {
		if score >= 1 {
			break
		}
		if s := similarity(mentionKey, matchKey(alias)); s > score {
			score = s
		}
	}
	return score
}

// hasCategoryHint reports whether any word of the category appears in the mention
func hasCategoryHint(mentionTokens []string, category string) bool {
	if category == "" {
		return false
	}
	for _, word := range strings.Fields(matchKey(category)) {
		if len(word) < minCategoryHintLength {
			continue
		}
		for _, t := range mentionTokens {
			if t == word {
				return true
			}
		}
	}
	return false
}

// matchKey lower-cases, canonicalizes units and reduces punctuation to single spaces
// so that "M-Sand", "m sand" and "M Sand" compare equal
func matchKey(s string) string {
	s = canonicalizeUnits(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// similarity scores two match keys in [0,1].
//   - identical strings score 1
//   - word-aligned containment of the shorter in the longer scores close to 1
//   - otherwise the better of the edit ratio and the mean of token overlap and edit ratio
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) >= minContainmentLength && containsWords(long, short) {
		return containmentBase + containmentSpan*float64(len(short))/float64(len(long))
	}

	edit := editRatio(a, b)
	overlap := tokenDice(strings.Fields(a), strings.Fields(b))
	return max(edit, (overlap+edit)/2)
}

// containsWords reports whether needle occurs in haystack starting on a word boundary
// and ending on one, allowing a plural "s"/"es" on the last word
func containsWords(haystack, needle string) bool {
	for offset := 0; offset <= len(haystack)-len(needle); {
		idx := strings.Index(haystack[offset:], needle)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(needle)
		if (start == 0 || haystack[start-1] == ' ') && wordEndsAt(haystack, end) {
			return true
		}
		offset = start + 1
	}
	return false
}

func wordEndsAt(s string, end int) bool {
	rest := s[end:]
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		rest = rest[:i]
	}
	return rest == "" || rest == "s" || rest == "es"
}

// tokenDice is the Dice coefficient over tokens, counting near-identical words as equal
func tokenDice(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := countFuzzyMatches(a, b) + countFuzzyMatches(b, a)
	return float64(matched) / float64(len(a)+len(b))
}

// countFuzzyMatches counts tokens of from that have a near-identical token in to
func countFuzzyMatches(from, to []string) int {
	n := 0
	for _, f := range from {
		for _, t := range to {
			if f == t || editRatio(f, t) >= tokenMatchRatio {
				n++
				break
			}
		}
	}
	return n
}

// editRatio is 1 - levenshtein/maxLen, in runes
func editRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(a, b))/float64(longest)
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len([]rune(s2))
	}
	if len(s2) == 0 {
		return len([]rune(s1))
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Use two rows instead of full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
