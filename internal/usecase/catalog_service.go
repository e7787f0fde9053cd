package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/materialquote/backend/internal/domain"
	"github.com/rs/zerolog"
)

// CatalogServiceConfig holds configuration for the catalog service
type CatalogServiceConfig struct {
	CurrencySymbol string
}

// CatalogService owns the published catalog snapshot. Uploads are serialized;
// readers get the snapshot through an atomic pointer and never see a half-built catalog.
type CatalogService struct {
	normalizer *CatalogNormalizer
	parser     domain.SheetParser
	store      domain.CatalogStore // nil disables persistence
	metrics    Metrics
	logger     zerolog.Logger
	currency   string
	now        func() time.Time

	uploadMu sync.Mutex
	current  atomic.Pointer[domain.Catalog]
}

// NewCatalogService creates a catalog service holding an empty version-0 catalog
func NewCatalogService(
	parser domain.SheetParser,
	store domain.CatalogStore,
	metrics Metrics,
	logger zerolog.Logger,
	config CatalogServiceConfig,
) *CatalogService {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	s := &CatalogService{
		normalizer: NewCatalogNormalizer(),
		parser:     parser,
		store:      store,
		metrics:    metrics,
		logger:     logger,
		currency:   config.CurrencySymbol,
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.current.Store(domain.EmptyCatalog(config.CurrencySymbol))

	return s
}

// Current returns the active snapshot; never nil
func (s *CatalogService) Current() *domain.Catalog {
	return s.current.Load()
}

// Restore loads the most recent persisted snapshot, if any
func (s *CatalogService) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	catalog, err := s.store.LatestCatalog(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrCatalogNotFound) {
			s.logger.Info().Msg("no persisted catalog; waiting for first upload")
			return nil
		}
		return fmt.Errorf("restore catalog: %w", err)
	}

	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()
	s.current.Store(catalog)

	s.logger.Info().
		Int64("version", catalog.Version()).
		Int("entries", catalog.Len()).
		Str("source", catalog.Source()).
		Msg("restored catalog")

	return nil
}

// Upload parses an uploaded file and publishes it as the new catalog
func (s *CatalogService) Upload(ctx context.Context, data []byte, fileName string) (*NormalizeResult, error) {
	if s.parser == nil {
		return nil, fmt.Errorf("%w: no sheet parser", domain.ErrUnsupportedFormat)
	}

	rows, err := s.parser.Parse(data, fileName)
	if err != nil {
		s.metrics.ObserveCatalogUpload(UploadParseFailed, 0)
		return nil, err
	}

	return s.Publish(ctx, rows, fileName)
}

// Publish normalizes rows into a new snapshot, persists it and swaps it in.
// On any failure the previous snapshot stays active.
func (s *CatalogService) Publish(ctx context.Context, rows []domain.RawRow, source string) (*NormalizeResult, error) {
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	previous := s.current.Load()

	result, err := s.normalizer.NormalizeCatalog(rows, NormalizeOptions{
		Version:  previous.Version() + 1,
		Currency: s.currency,
		Source:   source,
		Now:      s.now(),
	})
	if err != nil {
		s.metrics.ObserveCatalogUpload(UploadEmpty, previous.Len())
		s.logger.Warn().
			Err(err).
			Str("source", source).
			Int("rejected", result.Rejected).
			Msg("catalog upload rejected")
		return result, err
	}

	if s.store != nil {
		if err := s.store.SaveCatalog(ctx, result.Catalog); err != nil {
			s.metrics.ObserveCatalogUpload(UploadStoreFailed, previous.Len())
			return result, fmt.Errorf("persist catalog: %w", err)
		}
	}

	s.current.Store(result.Catalog)
	s.metrics.ObserveCatalogUpload(UploadPublished, result.Catalog.Len())

	event := s.logger.Info().
		Int64("version", result.Catalog.Version()).
		Int("accepted", result.Accepted).
		Int("rejected", result.Rejected).
		Int("replaced", result.Replaced).
		Str("source", source)
	if rejErr := result.RejectionsErr(); rejErr != nil {
		event = event.AnErr("rejections", rejErr)
	}
	event.Msg("catalog published")

	return result, nil
}
