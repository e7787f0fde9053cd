package usecase

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/materialquote/backend/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Canonical column names
const (
	columnName        = "name"
	columnPrice       = "price"
	columnUnit        = "unit"
	columnCategory    = "category"
	columnDescription = "description"
	columnAliases     = "aliases"
)

// columnSynonyms maps header spellings seen in shop price sheets to canonical columns
var columnSynonyms = map[string]string{
	"name": columnName, "item": columnName, "item name": columnName, "material": columnName,
	"material name": columnName, "product": columnName, "product name": columnName,

	"price": columnPrice, "rate": columnPrice, "cost": columnPrice, "mrp": columnPrice,
	"unit price": columnPrice, "price per unit": columnPrice, "selling price": columnPrice,

	"unit": columnUnit, "units": columnUnit, "uom": columnUnit, "unit of measure": columnUnit,
	"per": columnUnit,

	"category": columnCategory, "type": columnCategory, "group": columnCategory,

	"description": columnDescription, "details": columnDescription,
	"notes": columnDescription, "remarks": columnDescription,

	"aliases": columnAliases, "alias": columnAliases, "synonyms": columnAliases,
	"also known as": columnAliases, "other names": columnAliases, "keywords": columnAliases,
}

var (
	headerParenRegex   = regexp.MustCompile(`\(.*?\)|\[.*?\]`)
	currencyTokenRegex = regexp.MustCompile(`(?i)\b(?:rs|inr|usd|eur|gbp)\.?|[₹$€£]`)
	perUnitSuffixRegex = regexp.MustCompile(`(?i)\s*(?:/|\bper\b)\s*[a-z][a-z.\s]*$`)
	aliasSeparators    = regexp.MustCompile(`[,;|\n]`)
)

// Row rejection reasons
const (
	reasonEmptyName     = "empty name"
	reasonEmptyUnit     = "empty unit"
	reasonEmptyPrice    = "empty price"
	reasonInvalidPrice  = "price is not a number"
	reasonNegativePrice = "price is negative"
	reasonPriceTooLarge = "price is too large"
)

// RowRejection records why one upload row was skipped
type RowRejection struct {
	Row    int    `json:"row"` // 1-based data row, header excluded
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// Err wraps the rejection as a domain.ErrRowRejected error
func (r RowRejection) Err() error {
	return fmt.Errorf("%w: row %d: %s", domain.ErrRowRejected, r.Row, r.Reason)
}

// NormalizeResult reports what an upload produced
type NormalizeResult struct {
	Accepted   int             `json:"accepted"`
	Rejected   int             `json:"rejected"`
	Replaced   int             `json:"replaced"` // accepted rows that overwrote an earlier row with the same name
	Rejections []RowRejection  `json:"rejections"`
	Catalog    *domain.Catalog `json:"-"`
}

// RejectionsErr combines all row rejections into one error, or nil
func (r *NormalizeResult) RejectionsErr() error {
	var err error
	for _, rej := range r.Rejections {
		err = multierr.Append(err, rej.Err())
	}
	return err
}

// NormalizeOptions describes the snapshot being built
type NormalizeOptions struct {
	Version  int64
	Currency string
	Source   string
	Now      time.Time
}

// CatalogNormalizer turns raw spreadsheet rows into a validated catalog snapshot
type CatalogNormalizer struct{}

// NewCatalogNormalizer creates a new catalog normalizer
func NewCatalogNormalizer() *CatalogNormalizer {
	return &CatalogNormalizer{}
}

// NormalizeCatalog validates every row and builds a new catalog with replace-all semantics.
// Bad rows are skipped and reported; if no row survives, domain.ErrCatalogEmpty is returned
// together with the result so callers can still show the rejections.
func (n *CatalogNormalizer) NormalizeCatalog(rows []domain.RawRow, opts NormalizeOptions) (*NormalizeResult, error) {
	result := &NormalizeResult{Rejections: []RowRejection{}}

	entries := make([]domain.CatalogEntry, 0, len(rows))
	position := make(map[string]int, len(rows))

	for i, raw := range rows {
		entry, err := normalizeRow(raw)
		if err != nil {
			result.Rejected++
			result.Rejections = append(result.Rejections, RowRejection{
				Row:    i + 1,
				Name:   entry.Name,
				Reason: err.Error(),
			})
			continue
		}
		result.Accepted++

		key := strings.ToLower(entry.Name)
		if idx, seen := position[key]; seen {
			entries[idx] = entry
			result.Replaced++
			continue
		}
		position[key] = len(entries)
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return result, fmt.Errorf("%w: %d of %d rows rejected", domain.ErrCatalogEmpty, result.Rejected, len(rows))
	}

	for i := range entries {
		entries[i].ID = i + 1
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	result.Catalog = domain.NewCatalog(opts.Version, opts.Currency, opts.Source, now, entries)

	return result, nil
}

// normalizeRow applies the per-row rules. On failure the returned entry still
// carries the cleaned name (if any) for reporting.
func normalizeRow(raw domain.RawRow) (domain.CatalogEntry, error) {
	row := canonicalColumns(raw)

	entry := domain.CatalogEntry{
		Name:        collapse(row[columnName]),
		Unit:        canonicalUnitLabel(row[columnUnit]),
		Category:    collapse(row[columnCategory]),
		Description: collapse(row[columnDescription]),
	}

	price, err := parsePrice(row[columnPrice])
	if err != nil {
		return entry, err
	}
	entry.Price = price

	if entry.Name == "" {
		return entry, errors.New(reasonEmptyName)
	}
	if entry.Unit == "" {
		return entry, errors.New(reasonEmptyUnit)
	}

	entry.Aliases = splitAliases(row[columnAliases], entry.Name)
	return entry, nil
}

// canonicalColumns renames headers to canonical columns. Headers that are already
// canonical are read before synonyms; the first non-empty value for a column wins.
func canonicalColumns(raw domain.RawRow) map[string]string {
	headers := make([]string, 0, len(raw))
	for h := range raw {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	out := make(map[string]string, len(raw))
	for _, exactPass := range []bool{true, false} {
		for _, h := range headers {
			key := normalizeHeader(h)
			canonical, ok := columnSynonyms[key]
			if !ok || (key == canonical) != exactPass {
				continue
			}
			if strings.TrimSpace(out[canonical]) == "" {
				out[canonical] = raw[h]
			}
		}
	}
	return out
}

// normalizeHeader lower-cases a header and drops decorations like "Price (₹)" or "unit_price"
func normalizeHeader(h string) string {
	h = headerParenRegex.ReplaceAllString(strings.ToLower(h), " ")
	h = strings.NewReplacer("_", " ", "-", " ", ".", " ", ":", " ").Replace(h)
	return collapse(h)
}

// parsePrice strips currency marks, grouping and "/-" or "/bag" suffixes, then parses
// a decimal and returns it in minor units
func parsePrice(raw string) (int64, error) {
	s := collapse(raw)
	s = strings.TrimSuffix(s, "/-")
	s = currencyTokenRegex.ReplaceAllString(s, "")
	s = perUnitSuffixRegex.ReplaceAllString(s, "")
	s = strings.NewReplacer(",", "", " ", "", "'", "").Replace(s)
	s = strings.Trim(s, ".")

	if s == "" {
		return 0, errors.New(reasonEmptyPrice)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.New(reasonInvalidPrice)
	}
	if d.IsNegative() {
		return 0, errors.New(reasonNegativePrice)
	}
	minor, err := domain.MinorUnits(d)
	if err != nil {
		return 0, errors.New(reasonPriceTooLarge)
	}
	return minor, nil
}

// splitAliases returns the distinct, lower-cased aliases other than the canonical name
func splitAliases(raw, name string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	lowerName := strings.ToLower(name)
	seen := make(map[string]bool)
	var aliases []string
	for _, part := range aliasSeparators.Split(raw, -1) {
		alias := strings.ToLower(collapse(part))
		if alias == "" || alias == lowerName || seen[alias] {
			continue
		}
		seen[alias] = true
		aliases = append(aliases, alias)
	}
	return aliases
}

// collapse trims and collapses internal whitespace
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
