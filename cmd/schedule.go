package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

// scheduleCmd runs the orchestrator's tasks on cron expressions from the
// configuration, replacing the host-cron entries the tool is otherwise
// driven by. Tasks stay strictly sequential: every entry runs under one
// shared lock, so coinciding ticks of different entries queue instead of
// overlapping, and the cron runner skips a tick of an entry that is still
// running (or still queued) from its previous tick.
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run backups, snapshots and cleanups on a schedule",
	Long: `Run in the foreground and trigger "create", "snapshot" and "clean" on
the cron expressions configured under schedule.backup, schedule.snapshot and
schedule.clean. Unset entries are skipped. Stop with SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		log := newLogger()

		type entry struct {
			expr string
			task func(context.Context) error
		}
		var entries []entry
		if cfg.Schedule.Backup != "" {
			entries = append(entries, entry{cfg.Schedule.Backup, func(ctx context.Context) error {
				_, err := newBackupManager(log).Create(ctx, true)
				return err
			}})
		}
		if cfg.Schedule.Snapshot != "" {
			entries = append(entries, entry{cfg.Schedule.Snapshot, func(ctx context.Context) error {
				orch, err := newOrchestrator(log)
				if err != nil {
					return err
				}
				return orch.Run(ctx)
			}})
		}
		if cfg.Schedule.Clean != "" {
			entries = append(entries, entry{cfg.Schedule.Clean, func(ctx context.Context) error {
				_, err := newBackupManager(log).Clean(retentionPolicy())
				return err
			}})
		}
		if len(entries) == 0 {
			return fmt.Errorf("no schedule entries configured")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		var runMu sync.Mutex
		for _, e := range entries {
			task := serialized(&runMu, e.task)
			if _, err := c.AddFunc(e.expr, func() {
				if err := task(ctx); err != nil {
					log.Error().Err(err).Msg("scheduled task failed")
				}
			}); err != nil {
				return fmt.Errorf("invalid cron expression %q: %w", e.expr, err)
			}
		}

		c.Start()
		log.Info().Int("entries", len(entries)).Msg("scheduler started")
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	},
}

// serialized wraps task so that all scheduled entries share mu. The cron
// runner starts each entry in its own goroutine; without the shared lock a
// backup that is stopping the stack could run concurrently with a cleanup
// deleting its artifacts.
func serialized(mu *sync.Mutex, task func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		return task(ctx)
	}
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
