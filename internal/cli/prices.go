package cli

import (
	"errors"
	"fmt"

	"github.com/materialquote/backend/internal/domain"
	"github.com/materialquote/backend/internal/infrastructure/store"
	"github.com/spf13/cobra"
)

func newPricesCommand(opts *globalOptions) *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "prices",
		Short: "List the catalog held in a store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sqliteStore, err := store.NewSQLiteStore(storePath)
			if err != nil {
				return fmt.Errorf("open catalog store: %w", err)
			}
			defer sqliteStore.Close()

			catalog, err := sqliteStore.LatestCatalog(cmd.Context())
			if errors.Is(err, domain.ErrCatalogNotFound) {
				fmt.Fprintln(cmd.OutOrStdout(), "No catalog published yet.")
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version %d from %s (%s), %d entries\n\n",
				catalog.Version(), catalog.Source(), catalog.CreatedAt().Format("2006-01-02 15:04"), catalog.Len())
			printEntries(out, catalog)
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "SQLite catalog store to read")
	_ = cmd.MarkFlagRequired("store")
	return cmd
}
