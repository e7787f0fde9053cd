package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/materialquote/backend/internal/domain"
	"github.com/materialquote/backend/internal/infrastructure/sheet"
	"github.com/materialquote/backend/internal/infrastructure/store"
	"github.com/materialquote/backend/internal/usecase"
	"github.com/spf13/cobra"
)

func newNormalizeCommand(opts *globalOptions) *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "normalize <file>",
		Short: "Validate a price sheet and optionally publish it to a catalog store",
		Example: `  quotectl normalize prices.xlsx
  quotectl normalize prices.csv --store ./data/catalog.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read price sheet: %w", err)
			}

			var catalogStore domain.CatalogStore
			if storePath != "" {
				sqliteStore, err := store.NewSQLiteStore(storePath)
				if err != nil {
					return fmt.Errorf("open catalog store: %w", err)
				}
				defer sqliteStore.Close()
				catalogStore = sqliteStore
			}

			log := opts.logger(cmd)
			catalogs := usecase.NewCatalogService(sheet.NewParser(), catalogStore, nil, log,
				usecase.CatalogServiceConfig{CurrencySymbol: opts.currency})
			if err := catalogs.Restore(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			result, err := catalogs.Upload(cmd.Context(), data, filepath.Base(args[0]))
			if result != nil {
				printNormalizeResult(out, result)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(out)
			printEntries(out, result.Catalog)

			if storePath != "" {
				fmt.Fprintf(out, "\nPublished version %d to %s\n", result.Catalog.Version(), storePath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "SQLite catalog store to publish the sheet into")
	return cmd
}

func printNormalizeResult(out io.Writer, result *usecase.NormalizeResult) {
	fmt.Fprintf(out, "Accepted: %d  Rejected: %d  Replaced: %d\n", result.Accepted, result.Rejected, result.Replaced)
	for _, r := range result.Rejections {
		name := r.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(out, "  row %d (%s): %s\n", r.Row, name, r.Reason)
	}
}

func printEntries(out io.Writer, catalog *domain.Catalog) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tUNIT\tCATEGORY")
	for _, e := range catalog.Entries() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			e.ID, e.Name, domain.FormatMoney(catalog.Currency(), e.Price), e.Unit, e.Category)
	}
	w.Flush()
}
