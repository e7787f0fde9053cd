package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// CatalogEntry is one priced material in the shop's catalog
type CatalogEntry struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Price       int64    `json:"price"` // minor units (paise, cents)
	Unit        string   `json:"unit"`
	Category    string   `json:"category,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Catalog is an immutable, versioned snapshot of catalog entries built from one upload.
// A published Catalog is shared read-only by every in-flight quote request.
type Catalog struct {
	version   int64
	currency  string
	source    string
	createdAt time.Time
	entries   []CatalogEntry
	byID      map[int]int
	digest    string
}

// NewCatalog builds a snapshot. The entries slice is copied so later
// changes by the caller cannot leak into a published catalog.
func NewCatalog(version int64, currency, source string, createdAt time.Time, entries []CatalogEntry) *Catalog {
	copied := make([]CatalogEntry, len(entries))
	byID := make(map[int]int, len(entries))
	for i, e := range entries {
		e.Aliases = append([]string(nil), e.Aliases...)
		copied[i] = e
		byID[e.ID] = i
	}

	return &Catalog{
		version:   version,
		currency:  currency,
		source:    source,
		createdAt: createdAt,
		entries:   copied,
		byID:      byID,
		digest:    contentDigest(currency, copied),
	}
}

// contentDigest hashes everything a quote is priced from. Version, source and
// upload time are left out.
func contentDigest(currency string, entries []CatalogEntry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%q\n", currency)
	for _, e := range entries {
		fmt.Fprintf(h, "%d %q %q %d %q %q %q\n", e.ID, e.Name, e.Aliases, e.Price, e.Unit, e.Category, e.Description)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EmptyCatalog returns the version-0 catalog used before the first upload
func EmptyCatalog(currency string) *Catalog {
	return NewCatalog(0, currency, "", time.Time{}, nil)
}

// Version is the snapshot number; 0 means nothing has been published
func (c *Catalog) Version() int64 {
	if c == nil {
		return 0
	}
	return c.version
}

// Digest identifies the priced content of the snapshot. Two processes that publish
// different entries under the same version number get different digests.
func (c *Catalog) Digest() string {
	if c == nil {
		return ""
	}
	return c.digest
}

// Currency is the symbol prices are rendered with
func (c *Catalog) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

func (c *Catalog) Source() string {
	if c == nil {
		return ""
	}
	return c.source
}

func (c *Catalog) CreatedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.createdAt
}

// Len returns the number of entries (nil-safe)
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// IsEmpty reports whether the catalog has no entries
func (c *Catalog) IsEmpty() bool {
	return c.Len() == 0
}

// At returns the entry at position i in catalog order
func (c *Catalog) At(i int) CatalogEntry {
	return c.entries[i]
}

// Entries returns a copy of the entries in catalog order
func (c *Catalog) Entries() []CatalogEntry {
	if c == nil {
		return nil
	}
	out := make([]CatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup finds an entry by its id
func (c *Catalog) Lookup(id int) (CatalogEntry, bool) {
	if c == nil {
		return CatalogEntry{}, false
	}
	idx, ok := c.byID[id]
	if !ok {
		return CatalogEntry{}, false
	}
	return c.entries[idx], true
}

// FindByName finds an entry by case-insensitive canonical name
func (c *Catalog) FindByName(name string) (CatalogEntry, bool) {
	if c == nil {
		return CatalogEntry{}, false
	}
	for _, e := range c.entries {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return CatalogEntry{}, false
}
