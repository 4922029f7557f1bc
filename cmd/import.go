package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var importGroupID int

// importCmd rehydrates a bundle into this environment.
var importCmd = &cobra.Command{
	Use:   "import <group|database> <file>",
	Short: "Import a previously exported bundle",
	Long: `Import a bundle created by "gridbak export".

Importing a group bundle without --group creates a new workspace named after
the bundle's name marker. Importing a database bundle requires --group: the
application is imported into that existing workspace.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, file := args[0], args[1]
		if scope != scopeGroup && scope != scopeDatabase {
			return fmt.Errorf("unknown import scope %q, expected %q or %q", scope, scopeGroup, scopeDatabase)
		}
		// Usage errors are raised before any side effect.
		if scope == scopeDatabase && importGroupID == 0 {
			return fmt.Errorf("import database requires --group")
		}

		log := newLogger()
		mgr, err := newBundleManager(log)
		if err != nil {
			return err
		}

		if scope == scopeDatabase {
			if err := mgr.ImportApplication(cmd.Context(), file, importGroupID); err != nil {
				return err
			}
			fmt.Printf("imported into group %d\n", importGroupID)
			return nil
		}

		groupID, err := mgr.ImportGroup(cmd.Context(), file, importGroupID)
		if err != nil {
			return err
		}
		fmt.Printf("imported into group %d\n", groupID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().IntVar(&importGroupID, "group", 0, "target workspace id (required for database imports)")
}
