package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/materialquote/backend/internal/domain"
	"github.com/materialquote/backend/internal/infrastructure/sheet"
	"github.com/materialquote/backend/internal/infrastructure/store"
	"github.com/materialquote/backend/internal/usecase"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newQuoteCommand(opts *globalOptions) *cobra.Command {
	var (
		catalogFile string
		storePath   string
		threshold   float64
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "quote <text|->",
		Short: "Price a free-text material request",
		Example: `  quotectl quote --catalog prices.csv "need 5 cement bags, 2 ton sand"
  echo "10 bags cement" | quotectl quote --store ./data/catalog.db -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read request from stdin: %w", err)
				}
				text = string(data)
			}

			log := opts.logger(cmd)
			catalog, err := loadCatalog(cmd.Context(), opts, catalogFile, storePath, log)
			if err != nil {
				return err
			}

			resolver := usecase.NewRequestResolver(usecase.ResolverConfig{MinConfidenceThreshold: threshold}, log)
			quote := resolver.Resolve(text, catalog)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(quote)
			}
			fmt.Fprintln(out, quote.ResponseText)
			return nil
		},
	}

	cmd.Flags().StringVar(&catalogFile, "catalog", "", "Price sheet to quote against")
	cmd.Flags().StringVar(&storePath, "store", "", "SQLite catalog store to quote against")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.6, "Minimum match confidence (0-1]")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full quote as JSON")
	cmd.MarkFlagsMutuallyExclusive("catalog", "store")
	cmd.MarkFlagsOneRequired("catalog", "store")
	return cmd
}

// loadCatalog builds a version-1 catalog from a sheet or reads the latest stored one
func loadCatalog(ctx context.Context, opts *globalOptions, catalogFile, storePath string, log zerolog.Logger) (*domain.Catalog, error) {
	if storePath != "" {
		sqliteStore, err := store.NewSQLiteStore(storePath)
		if err != nil {
			return nil, fmt.Errorf("open catalog store: %w", err)
		}
		defer sqliteStore.Close()

		catalog, err := sqliteStore.LatestCatalog(ctx)
		if errors.Is(err, domain.ErrCatalogNotFound) {
			return nil, fmt.Errorf("%w in %s; publish one with quotectl normalize --store", err, storePath)
		}
		return catalog, err
	}

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return nil, fmt.Errorf("read price sheet: %w", err)
	}
	rows, err := sheet.NewParser().Parse(data, catalogFile)
	if err != nil {
		return nil, err
	}

	result, err := usecase.NewCatalogNormalizer().NormalizeCatalog(rows, usecase.NormalizeOptions{
		Version:  1,
		Currency: opts.currency,
		Source:   filepath.Base(catalogFile),
	})
	if err != nil {
		return nil, err
	}
	if result.Rejected > 0 {
		log.Warn().Err(result.RejectionsErr()).Int("rejected", result.Rejected).Msg("some price rows were skipped")
	}
	return result.Catalog, nil
}
