// Package backup takes and restores consistent dumps of the primary
// datastore by driving the container stack around pg_dump/pg_restore, and
// runs the local retention pass over the resulting artifacts.
package backup

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/mkoopman/gridbak/internal/runner"
	"github.com/mkoopman/gridbak/types"
)

// readyPoll bounds the wait for the datastore to accept connections.
var readyPoll = runner.RetrySpec{Attempts: 30, Interval: 2 * time.Second}

// Manager orchestrates the backup and restore pipelines.
type Manager struct {
	fs      afero.Fs
	pipe    *runner.Pipeline
	compose types.ComposeConfig
	store   types.DatastoreConfig
	project types.ProjectConfig
	log     zerolog.Logger
	now     func() time.Time
}

func NewManager(fs afero.Fs, r runner.Runner, cfg *types.AppConfig, log zerolog.Logger) *Manager {
	return &Manager{
		fs:      fs,
		pipe:    runner.NewPipeline(r, log),
		compose: cfg.Compose,
		store:   cfg.Datastore,
		project: cfg.Project,
		log:     log,
		now:     time.Now,
	}
}

// SetClock overrides the artifact-date clock, for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// SetSleep overrides the readiness-poll sleeper, for tests.
func (m *Manager) SetSleep(fn func(time.Duration)) { m.pipe.SetSleep(fn) }

// Create stops the stack, dumps the datastore into a uniquely named artifact,
// and stops the datastore again. With restart the full stack is brought back
// up afterwards, rebuilding images if the one-shot rebuild flag was armed.
// Teardown steps are best-effort: a dangling dump beats a half-stopped stack.
func (m *Manager) Create(ctx context.Context, restart bool) (Artifact, error) {
	if err := m.fs.MkdirAll(m.project.ArtifactDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create artifact dir: %w", err)
	}
	artifact, err := NextArtifact(m.fs, m.project.ArtifactDir, m.now())
	if err != nil {
		return Artifact{}, err
	}

	db := m.compose.DatastoreService
	inContainer := path.Join("/tmp", artifact.Name())

	steps := []runner.Step{
		{Name: "stack down", Cmd: runner.Compose(m.compose.Dir, "down")},
		{Name: "start datastore", Cmd: runner.Compose(m.compose.Dir, "up", "-d", db), MustSucceed: true},
		{Name: "wait for datastore", Cmd: m.execDB("pg_isready", "-U", m.store.User), MustSucceed: true, Retry: &readyPoll},
		{Name: "dump", Cmd: m.execDB("pg_dump", "-U", m.store.User, "-Fc", "-f", inContainer, m.store.Database), MustSucceed: true},
		{Name: "copy dump out", Cmd: runner.Compose(m.compose.Dir, "cp", db+":"+inContainer, artifact.Path), MustSucceed: true},
		{Name: "remove in-container dump", Cmd: m.execDB("rm", "-f", inContainer)},
		{Name: "stop datastore", Cmd: runner.Compose(m.compose.Dir, "stop", db)},
	}
	steps = m.appendRestart(steps, restart)

	if err := m.pipe.Run(ctx, steps); err != nil {
		return Artifact{}, fmt.Errorf("backup pipeline: %w", err)
	}
	m.log.Info().Str("artifact", artifact.Path).Msg("backup created")
	return artifact, nil
}

// Restore drops and recreates the target database, then restores it from
// the given artifact. Same lifecycle and best-effort teardown as Create.
func (m *Manager) Restore(ctx context.Context, artifactPath string, restart bool) error {
	exists, err := afero.Exists(m.fs, artifactPath)
	if err != nil {
		return fmt.Errorf("check artifact %s: %w", artifactPath, err)
	}
	if !exists {
		return fmt.Errorf("artifact %s does not exist", artifactPath)
	}

	db := m.compose.DatastoreService
	inContainer := path.Join("/tmp", path.Base(artifactPath))

	steps := []runner.Step{
		{Name: "stack down", Cmd: runner.Compose(m.compose.Dir, "down")},
		{Name: "start datastore", Cmd: runner.Compose(m.compose.Dir, "up", "-d", db), MustSucceed: true},
		{Name: "wait for datastore", Cmd: m.execDB("pg_isready", "-U", m.store.User), MustSucceed: true, Retry: &readyPoll},
		{Name: "copy artifact in", Cmd: runner.Compose(m.compose.Dir, "cp", artifactPath, db+":"+inContainer), MustSucceed: true},
		{Name: "drop database", Cmd: m.execDB("dropdb", "-U", m.store.User, "--if-exists", m.store.Database), MustSucceed: true},
		{Name: "create database", Cmd: m.execDB("createdb", "-U", m.store.User, m.store.Database), MustSucceed: true},
		{Name: "restore", Cmd: m.execDB("pg_restore", "-U", m.store.User, "-Fc", "-d", m.store.Database, inContainer), MustSucceed: true},
		{Name: "remove in-container artifact", Cmd: m.execDB("rm", "-f", inContainer)},
		{Name: "stop datastore", Cmd: runner.Compose(m.compose.Dir, "stop", db)},
	}
	steps = m.appendRestart(steps, restart)

	if err := m.pipe.Run(ctx, steps); err != nil {
		return fmt.Errorf("restore pipeline: %w", err)
	}
	m.log.Info().Str("artifact", artifactPath).Msg("restore finished")
	return nil
}

func (m *Manager) appendRestart(steps []runner.Step, restart bool) []runner.Step {
	if !restart {
		return steps
	}
	args := []string{"up", "-d"}
	rebuild, err := ConsumeRebuildFlag(m.fs, m.project.RebuildFlagFile)
	if err != nil {
		m.log.Warn().Err(err).Msg("rebuild flag unreadable, restarting without rebuild")
	}
	if rebuild {
		args = append(args, "--build")
	}
	return append(steps, runner.Step{Name: "restart stack", Cmd: runner.Compose(m.compose.Dir, args...)})
}

func (m *Manager) execDB(args ...string) runner.Command {
	return runner.ComposeExec(m.compose.Dir, m.compose.DatastoreService, args...)
}
