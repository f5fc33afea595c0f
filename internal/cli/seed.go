package cli

import (
	"facture-workflow/internal/config"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the admin account and optional demo users",
	Example: `  # Admin only
  facture seed --admin-password 'change-me-now'

  # Admin plus one user per workflow role
  facture seed --admin-password 'change-me-now' --demo --demo-password 'demo1234'`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("admin-email", "admin@example.com", "Email of the admin account")
	seedCmd.Flags().String("admin-password", "", "Password of the admin account (required)")
	seedCmd.Flags().Bool("demo", false, "Also create one user per workflow role")
	seedCmd.Flags().String("demo-password", "demo1234", "Password of the demo users")
	_ = seedCmd.MarkFlagRequired("admin-password")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	adminEmail, _ := cmd.Flags().GetString("admin-email")
	adminPassword, _ := cmd.Flags().GetString("admin-password")
	demo, _ := cmd.Flags().GetBool("demo")
	demoPassword, _ := cmd.Flags().GetString("demo-password")

	rt, err := bootstrap(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer rt.close()

	return config.NewSeeder(rt.db).Run(adminEmail, adminPassword, demo, demoPassword)
}
