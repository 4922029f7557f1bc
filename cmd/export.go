package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

const (
	scopeGroup    = "group"
	scopeDatabase = "database"
)

// exportCmd packages an application or workspace into a portable bundle.
var exportCmd = &cobra.Command{
	Use:   "export <group|database> <id>",
	Short: "Export a workspace or a single application as a portable bundle",
	Long: `Export the data and binary assets of a single application ("database")
or of every application in a workspace ("group") into one bundle archive in
the artifact directory. Group bundles record the workspace's display name so
an import into a fresh environment can recreate it.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := args[0]
		if scope != scopeGroup && scope != scopeDatabase {
			return fmt.Errorf("unknown export scope %q, expected %q or %q", scope, scopeGroup, scopeDatabase)
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[1], err)
		}

		log := newLogger()
		mgr, err := newBundleManager(log)
		if err != nil {
			return err
		}

		var path string
		if scope == scopeGroup {
			path, err = mgr.ExportGroup(cmd.Context(), id)
		} else {
			path, err = mgr.ExportApplication(cmd.Context(), id)
		}
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
