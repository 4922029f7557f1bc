package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cleanCmd runs the local retention pass.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Apply the retention policy to local backup artifacts",
	Long: `Delete local backup artifacts older than the daily retention window,
keeping one monthly-anchor artifact per month indefinitely. Transient export
archives left in the artifact directory are removed in the same pass.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		removed, err := newBackupManager(log).Clean(retentionPolicy())
		if err != nil {
			return err
		}
		fmt.Printf("removed %d file(s)\n", len(removed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
