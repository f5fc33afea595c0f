package cli

import (
	"context"
	"fmt"
	"os"

	"facture-workflow/internal/adapters/http/handlers"
	"facture-workflow/internal/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "facture",
	Short: "Supplier invoice validation workflow",
	Long: `facture runs the supplier invoice workflow API.

Invoices move from draft through two validation levels to treasury
payment. Without a subcommand the HTTP server is started.`,
	Version:       handlers.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	defer logger.Sync()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.L().Error("command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
