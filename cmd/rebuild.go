package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkoopman/gridbak/internal/backup"
)

// rebuildCmd arms the one-shot rebuild flag.
var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild container images on the next restart",
	Long: `Arm the one-shot rebuild flag. The next backup or restore run with
--restart rebuilds the stack's images and resets the flag, so the rebuild
happens exactly once.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := GetConfig().Project.RebuildFlagFile
		if err := backup.ArmRebuildFlag(appFs, path); err != nil {
			return err
		}
		fmt.Println("rebuild armed for next restart")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
