package cli

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rt, err := bootstrap(cmd.Context(), true)
		if err != nil {
			return err
		}
		rt.close()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
