package cli

import (
	"fmt"
	"os"

	"github.com/materialquote/backend/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	currency string
	logLevel string
}

// NewRootCommand builds the quotectl command tree
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Work with building-material price lists from the command line",
		Long: `quotectl validates shop price sheets, publishes them to a catalog store
and prices free-text material requests the same way the chat service does.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.PersistentFlags().StringVar(&opts.currency, "currency", "₹", "Currency symbol used when building a catalog")
	root.PersistentFlags().StringVarP(&opts.logLevel, "loglevel", "l", "warn", "Set log level. Available: debug, info, warn, error")

	root.AddCommand(
		newNormalizeCommand(opts),
		newQuoteCommand(opts),
		newPricesCommand(opts),
	)
	return root
}

// Execute runs quotectl and exits non-zero on error
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}

func (o *globalOptions) logger(cmd *cobra.Command) zerolog.Logger {
	return logger.New(logger.Options{
		ServiceName: "quotectl",
		Level:       o.logLevel,
		Format:      "console",
		Output:      cmd.ErrOrStderr(),
	})
}
