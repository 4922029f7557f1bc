// Package snapshot drives per-application snapshot creation and pruning
// against the remote API. The run is strictly sequential and keeps no
// cursor: "has today's snapshot" is re-derived from server state on every
// invocation, so a crashed run is simply re-run.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"

	"github.com/mkoopman/gridbak/internal/api"
	"github.com/mkoopman/gridbak/internal/retention"
)

// isoDateRe extracts the date a snapshot name embeds. Snapshots without one
// (operator-created, foreign naming) are never pruned.
var isoDateRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Orchestrator visits every application exactly once per run.
type Orchestrator struct {
	api        *api.Client
	policy     retention.Policy
	retry      api.RetryPolicy
	settle     time.Duration
	namePrefix string
	log        zerolog.Logger
	now        func() time.Time
	wait       api.WaitStrategy
}

func New(client *api.Client, policy retention.Policy, retry api.RetryPolicy, settle time.Duration, namePrefix string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		api:        client,
		policy:     policy,
		retry:      retry,
		settle:     settle,
		namePrefix: namePrefix,
		log:        log,
		now:        time.Now,
		wait:       time.Sleep,
	}
}

// SetClock overrides the "today" clock, for tests.
func (o *Orchestrator) SetClock(now func() time.Time) { o.now = now }

// SetWait overrides the settle sleeper, for tests.
func (o *Orchestrator) SetWait(fn api.WaitStrategy) { o.wait = fn }

// Run processes all applications. Per-application failures are logged and
// do not stop the run; only failing to list the applications is fatal.
func (o *Orchestrator) Run(ctx context.Context) error {
	apps, err := o.api.ListApplications(ctx)
	if err != nil {
		return fmt.Errorf("list applications: %w", err)
	}
	for _, app := range apps {
		o.runApplication(ctx, app)
	}
	return nil
}

func (o *Orchestrator) runApplication(ctx context.Context, app api.Application) {
	log := o.log.With().Int("application", app.ID).Str("name", app.Name).Logger()

	snaps, err := o.api.ListSnapshots(ctx, app.ID)
	if err != nil {
		log.Error().Err(err).Msg("list snapshots failed")
		return
	}

	o.prune(ctx, log, snaps)

	today := o.now().UTC().Format(retention.DateLayout)
	if hasSnapshotOn(snaps, today) {
		log.Debug().Msg("snapshot for today already exists")
		return
	}
	o.create(ctx, log, app.ID, o.namePrefix+today)
}

// prune deletes the snapshots the retention policy selects. Each delete is
// best-effort: the client handles the single re-auth retry, anything beyond
// that is logged and pruning moves on.
func (o *Orchestrator) prune(ctx context.Context, log zerolog.Logger, snaps []api.Snapshot) {
	items := make([]retention.Item, len(snaps))
	ids := make(map[string]int, len(snaps))
	for i, s := range snaps {
		id := fmt.Sprintf("%d", s.ID)
		items[i] = retention.Item{ID: id, Date: isoDateRe.FindString(s.Name)}
		ids[id] = s.ID
	}
	for _, id := range retention.SelectForDeletion(items, o.now(), o.policy) {
		if err := o.api.DeleteSnapshot(ctx, ids[id]); err != nil {
			log.Error().Str("snapshot", id).Err(err).Msg("delete snapshot failed")
			continue
		}
		log.Info().Str("snapshot", id).Msg("snapshot pruned")
	}
}

// create retries on the server's operation-limit rejection at a fixed
// interval until it accepts (or the configured attempt cap is hit); the
// quota refills on a known cadence server-side. Any other failure moves on
// to the next application. After a successful creation the orchestrator
// settles briefly so it never overlaps the server's own asynchronous
// snapshot materialization.
func (o *Orchestrator) create(ctx context.Context, log zerolog.Logger, appID int, name string) {
	attempts := 0
	for {
		attempts++
		snap, err := o.api.CreateSnapshot(ctx, appID, name)
		if err == nil {
			log.Info().Int("snapshot", snap.ID).Str("name", name).Msg("snapshot created")
			o.wait(o.settle)
			return
		}
		if errors.Is(err, api.ErrOperationLimit) {
			if o.retry.Exhausted(attempts) {
				log.Error().Int("attempts", attempts).Msg("snapshot creation still rate-limited, giving up")
				return
			}
			log.Debug().Int("attempt", attempts).Msg("operation limit hit, waiting")
			o.retry.Sleep()
			continue
		}
		log.Error().Err(err).Msg("snapshot creation failed")
		return
	}
}

func hasSnapshotOn(snaps []api.Snapshot, date string) bool {
	for _, s := range snaps {
		if s.CreatedAt.UTC().Format(retention.DateLayout) == date {
			return true
		}
	}
	return false
}
