package usecase

import (
	"github.com/materialquote/backend/internal/domain"
	"github.com/rs/zerolog"
)

// ResolverConfig holds configuration for the request resolver
type ResolverConfig struct {
	MinConfidenceThreshold float64
	Workers                int
}

// RequestResolver is the deterministic material-request pipeline:
// preprocess, segment, match, assemble.
type RequestResolver struct {
	preprocessor *TextPreprocessor
	segmenter    *LineSegmenter
	assembler    *QuoteAssembler
	logger       zerolog.Logger
}

var _ domain.Resolver = (*RequestResolver)(nil)

// NewRequestResolver wires the pipeline stages
func NewRequestResolver(config ResolverConfig, logger zerolog.Logger) *RequestResolver {
	matcher := NewMatchingService(MatchConfig{MinConfidenceThreshold: config.MinConfidenceThreshold})
	return &RequestResolver{
		preprocessor: NewTextPreprocessor(logger),
		segmenter:    NewLineSegmenter(),
		assembler:    NewQuoteAssembler(matcher, config.Workers),
		logger:       logger,
	}
}

// Resolve turns request text into a quote. It is total: any string input yields a quote,
// and an empty catalog yields the catalog-unavailable quote.
func (r *RequestResolver) Resolve(text string, catalog *domain.Catalog) *domain.Quote {
	if catalog.IsEmpty() {
		return &domain.Quote{
			Outcome:           domain.OutcomeCatalogUnavailable,
			LineItems:         []domain.QuoteLine{},
			UnmatchedMentions: []string{},
			UnpricedMentions:  []string{},
			ResponseText:      msgCatalogUnavailable,
			CatalogVersion:    catalog.Version(),
			Currency:          catalog.Currency(),
		}
	}

	normalized := r.preprocessor.Normalize(text)
	mentions := r.segmenter.Segment(normalized)

	r.logger.Debug().
		Int("mentions", len(mentions)).
		Int64("catalog_version", catalog.Version()).
		Msg("segmented request")

	return r.assembler.Assemble(mentions, catalog)
}
