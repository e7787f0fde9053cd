package domain

import (
	"context"
	"time"
)

// RawRow is one spreadsheet row keyed by header name, as produced by a SheetParser
type RawRow map[string]string

// CacheRepository defines the interface for caching rendered quotes
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CatalogStore persists published catalog snapshots
type CatalogStore interface {
	SaveCatalog(ctx context.Context, catalog *Catalog) error
	LatestCatalog(ctx context.Context) (*Catalog, error)
}

// SheetParser turns an uploaded spreadsheet or document into raw rows
type SheetParser interface {
	Parse(data []byte, fileName string) ([]RawRow, error)
}

// Transcriber converts a voice note into text
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (string, error)
}

// TextExtractor reads text from an image of a material list
type TextExtractor interface {
	ExtractText(ctx context.Context, mediaURL string) (string, error)
}

// Resolver turns free-form request text into a quote against a catalog snapshot.
// Implementations must be pure: the same text and catalog always yield the same quote.
type Resolver interface {
	Resolve(text string, catalog *Catalog) *Quote
}
