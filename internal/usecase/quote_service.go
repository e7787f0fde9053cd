package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/materialquote/backend/internal/domain"
	"github.com/rs/zerolog"
)

// CatalogSource provides the active catalog snapshot
type CatalogSource interface {
	Current() *domain.Catalog
}

// QuoteServiceConfig holds configuration for the quote service
type QuoteServiceConfig struct {
	CacheTTL time.Duration
}

// QuoteService answers quote requests against the current catalog snapshot
type QuoteService struct {
	catalogs CatalogSource
	resolver domain.Resolver
	cache    domain.CacheRepository // nil disables caching
	metrics  Metrics
	logger   zerolog.Logger
	cacheTTL time.Duration
}

// NewQuoteService creates a new quote service with dependencies
func NewQuoteService(
	catalogs CatalogSource,
	resolver domain.Resolver,
	cache domain.CacheRepository,
	metrics Metrics,
	logger zerolog.Logger,
	config QuoteServiceConfig,
) *QuoteService {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}

	return &QuoteService{
		catalogs: catalogs,
		resolver: resolver,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// Catalog returns the snapshot new requests would be resolved against
func (s *QuoteService) Catalog() *domain.Catalog {
	return s.catalogs.Current()
}

// Quote resolves request text against the snapshot current at call time.
// Flow: read snapshot -> check cache -> resolve -> cache -> return
func (s *QuoteService) Quote(ctx context.Context, text string) *domain.Quote {
	start := time.Now()
	catalog := s.catalogs.Current()
	cacheKey := generateCacheKey(catalog, text)

	if cached, err := s.getFromCache(ctx, cacheKey); err == nil {
		s.metrics.ObserveQuote(cached.Outcome, len(cached.UnmatchedMentions), time.Since(start))
		return cached
	}

	quote := s.resolver.Resolve(text, catalog)

	if quote.Outcome != domain.OutcomeCatalogUnavailable {
		if err := s.setInCache(ctx, cacheKey, quote); err != nil {
			s.logger.Warn().Err(err).Str("key", cacheKey).Msg("quote cache write failed")
		}
	}

	s.metrics.ObserveQuote(quote.Outcome, len(quote.UnmatchedMentions), time.Since(start))
	s.logger.Debug().
		Str("outcome", string(quote.Outcome)).
		Int("lines", len(quote.LineItems)).
		Int("unmatched", len(quote.UnmatchedMentions)).
		Int64("catalog_version", quote.CatalogVersion).
		Msg("quote resolved")

	return quote
}

// generateCacheKey keys quotes by catalog version, catalog digest and case-folded text.
// Versions restart at 1 in every process, so the digest keeps a shared cache from
// serving prices of another catalog. Runs of spaces collapse and blank lines drop,
// but line breaks are kept because they separate mentions.
// Format: "quote:v{version}:{digest[:16]}:{sha256}"
func generateCacheKey(catalog *domain.Catalog, text string) string {
	lines := make([]string, 0, 4)
	for _, line := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return r == '\n' || r == '\r' }) {
		if folded := strings.Join(strings.Fields(line), " "); folded != "" {
			lines = append(lines, folded)
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	digest := catalog.Digest()
	if len(digest) > 16 {
		digest = digest[:16]
	}
	return fmt.Sprintf("quote:v%d:%s:%s", catalog.Version(), digest, hex.EncodeToString(sum[:]))
}

// getFromCache retrieves a quote from cache
func (s *QuoteService) getFromCache(ctx context.Context, key string) (*domain.Quote, error) {
	if s.cache == nil {
		return nil, domain.ErrCacheMiss
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var quote domain.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		if delErr := s.cache.Delete(ctx, key); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", key).Msg("dropping corrupt cache entry failed")
		}
		return nil, domain.ErrCacheMiss
	}
	return &quote, nil
}

// setInCache stores a quote in cache
func (s *QuoteService) setInCache(ctx context.Context, key string, quote *domain.Quote) error {
	if s.cache == nil {
		return nil
	}

	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, key, data, s.cacheTTL)
}
