package usecase

import (
	"time"

	"github.com/materialquote/backend/internal/domain"
)

// Upload results reported to Metrics
const (
	UploadPublished   = "published"
	UploadEmpty       = "empty"
	UploadParseFailed = "parse_failed"
	UploadStoreFailed = "store_failed"
)

// Metrics receives service-level observations
type Metrics interface {
	ObserveCatalogUpload(result string, entries int)
	ObserveQuote(outcome domain.QuoteOutcome, unmatched int, elapsed time.Duration)
	ObserveInbound(kind domain.MediaKind, ok bool)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCatalogUpload(string, int)                     {}
func (noopMetrics) ObserveQuote(domain.QuoteOutcome, int, time.Duration) {}
func (noopMetrics) ObserveInbound(domain.MediaKind, bool)                {}
