package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restoreRestart bool

// restoreCmd restores the datastore from a backup artifact.
var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Restore the datastore from a backup artifact",
	Long: `Stop the application stack, drop and recreate the target database, and
restore it from the given artifact. The datastore is stopped again when the
restore finishes; --restart brings the full stack back up.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		if err := newBackupManager(log).Restore(cmd.Context(), args[0], restoreRestart); err != nil {
			return err
		}
		fmt.Println("restore complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().BoolVar(&restoreRestart, "restart", false, "bring the full stack back up after the restore")
}
