package cli

import (
	"fmt"

	"facture-workflow/internal/core/services"
	"facture-workflow/internal/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Send due date reminders once and exit",
	Long: `Sweep the pending invoices and notify whoever currently holds each
invoice that is due within the urgency threshold or already overdue.
Invoices reminded earlier the same day are skipped.`,
	RunE: runRemind,
}

func init() {
	rootCmd.AddCommand(remindCmd)
}

func runRemind(cmd *cobra.Command, _ []string) error {
	rt, err := bootstrap(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer rt.close()

	svc := services.NewContainer(rt.db, rt.cache, rt.cfg)
	report, err := svc.Reminders.Run(cmd.Context())
	if err != nil {
		return err
	}

	logger.L().Info("reminder sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d sent=%d skipped=%d failed=%d\n",
		report.Scanned, report.Sent, report.Skipped, report.Failed)
	return nil
}
