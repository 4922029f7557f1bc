package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createRestart bool

// createCmd takes a new backup artifact.
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a dated backup artifact of the primary datastore",
	Long: `Stop the application stack, dump the datastore into a uniquely named
artifact in the artifact directory, and stop the datastore again.

With --restart the full stack is brought back up afterwards. If the one-shot
rebuild flag was armed (see "gridbak rebuild"), the restart rebuilds images
and the flag is reset.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		artifact, err := newBackupManager(log).Create(cmd.Context(), createRestart)
		if err != nil {
			return err
		}
		fmt.Println(artifact.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().BoolVar(&createRestart, "restart", false, "bring the full stack back up after the backup")
}
