package cmd

import (
	"github.com/spf13/cobra"
)

// snapshotCmd runs one snapshot orchestration pass over all applications.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Prune and create per-application snapshots via the remote API",
	Long: `Visit every application once: prune its snapshots under the retention
policy, then create a snapshot for today if none exists yet. The run keeps no
cursor and is safe to repeat; the server's state decides what is missing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		orch, err := newOrchestrator(log)
		if err != nil {
			return err
		}
		return orch.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
