// Package bundle packages application and workspace data into portable
// archives and rehydrates them in a target environment. A bundle pairs a
// JSON manifest with a binary-asset archive of the same base name; group
// bundles additionally carry a plain-text workspace name marker.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/mkoopman/gridbak/internal/api"
	"github.com/mkoopman/gridbak/internal/retention"
	"github.com/mkoopman/gridbak/internal/runner"
	"github.com/mkoopman/gridbak/types"
)

// ErrCorruptBundle marks a bundle missing its manifest or asset archive.
var ErrCorruptBundle = errors.New("corrupt bundle")

const (
	manifestExt = ".json"
	assetsExt   = ".zip"
	markerExt   = ".name"

	exportAppCommand   = "export_single_application"
	exportGroupCommand = "export_group_applications"
	importCommand      = "import_group_applications"
)

// Manager drives the application's own export/import management commands
// inside the backend container and packs/unpacks the resulting files.
type Manager struct {
	fs          afero.Fs
	run         runner.Runner
	api         *api.Client
	compose     types.ComposeConfig
	artifactDir string
	log         zerolog.Logger
	now         func() time.Time
}

func NewManager(fs afero.Fs, r runner.Runner, client *api.Client, cfg *types.AppConfig, log zerolog.Logger) *Manager {
	return &Manager{
		fs:          fs,
		run:         r,
		api:         client,
		compose:     cfg.Compose,
		artifactDir: cfg.Project.ArtifactDir,
		log:         log,
		now:         time.Now,
	}
}

// SetClock overrides the bundle-date clock, for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// ExportApplication exports one application into an outer bundle archive in
// the artifact directory and returns its path.
func (m *Manager) ExportApplication(ctx context.Context, id int) (string, error) {
	base := fmt.Sprintf("application_%d", id)
	var out string
	err := m.withScratch(func(scratch string) error {
		if err := m.exportToScratch(ctx, scratch, base, exportAppCommand, strconv.Itoa(id)); err != nil {
			return err
		}
		var packErr error
		out, packErr = m.pack(scratch, base)
		return packErr
	})
	return out, err
}

// ExportGroup exports every application in a workspace plus a name marker
// recording the workspace's display name, so an import into a fresh
// environment can recreate the workspace under its original name.
func (m *Manager) ExportGroup(ctx context.Context, id int) (string, error) {
	name, err := m.api.GroupName(ctx, id)
	if err != nil {
		return "", err
	}
	base := fmt.Sprintf("group_%d", id)
	var out string
	err = m.withScratch(func(scratch string) error {
		if err := m.exportToScratch(ctx, scratch, base, exportGroupCommand, strconv.Itoa(id)); err != nil {
			return err
		}
		marker := filepath.Join(scratch, base+markerExt)
		if err := afero.WriteFile(m.fs, marker, []byte(name+"\n"), 0o644); err != nil {
			return fmt.Errorf("write name marker: %w", err)
		}
		var packErr error
		out, packErr = m.pack(scratch, base)
		return packErr
	})
	return out, err
}

// exportToScratch runs the in-container export command and copies the
// manifest and asset archive into the host scratch dir.
func (m *Manager) exportToScratch(ctx context.Context, scratch, base, command, id string) error {
	cdir := path.Join("/tmp", "export-"+uuid.NewString())
	if err := m.execBackend(ctx, "mkdir", "-p", cdir); err != nil {
		return err
	}
	defer m.cleanupContainerDir(ctx, cdir)

	exportArgs := append(append([]string{}, m.compose.ManageCommand...), command, id, "--name", path.Join(cdir, base))
	if err := m.execBackend(ctx, exportArgs...); err != nil {
		return fmt.Errorf("export command: %w", err)
	}

	for _, ext := range []string{manifestExt, assetsExt} {
		src := m.compose.BackendService + ":" + path.Join(cdir, base+ext)
		if out, err := m.run.Run(ctx, m.composeCp(src, filepath.Join(scratch, base+ext))); err != nil {
			return fmt.Errorf("copy %s%s out: %w (%s)", base, ext, err, out)
		}
	}
	return nil
}

func (m *Manager) composeCp(src, dest string) runner.Command {
	return runner.Compose(m.compose.Dir, "cp", src, dest)
}

// pack wraps the scratch files into the outer archive and moves it into the
// artifact directory.
func (m *Manager) pack(scratch, base string) (string, error) {
	files := map[string]string{
		base + manifestExt: filepath.Join(scratch, base+manifestExt),
		base + assetsExt:   filepath.Join(scratch, base+assetsExt),
	}
	marker := filepath.Join(scratch, base+markerExt)
	if exists, _ := afero.Exists(m.fs, marker); exists {
		files[base+markerExt] = marker
	}

	outerName := fmt.Sprintf("%s_%s%s", base, m.now().Format(retention.DateLayout), assetsExt)
	staging := filepath.Join(scratch, outerName)
	if err := packArchive(m.fs, staging, files); err != nil {
		return "", err
	}

	if err := m.fs.MkdirAll(m.artifactDir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	dest := filepath.Join(m.artifactDir, outerName)
	if err := moveFile(m.fs, staging, dest); err != nil {
		return "", err
	}
	m.log.Info().Str("bundle", dest).Msg("export bundle written")
	return dest, nil
}

// withScratch runs fn with a scoped scratch directory that is removed on
// every exit path, so repeated operator invocations never accumulate disk.
func (m *Manager) withScratch(fn func(dir string) error) error {
	dir, err := afero.TempDir(m.fs, "", "export-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if rerr := m.fs.RemoveAll(dir); rerr != nil {
			m.log.Warn().Str("dir", dir).Err(rerr).Msg("scratch cleanup failed")
		}
	}()
	return fn(dir)
}

func (m *Manager) execBackend(ctx context.Context, args ...string) error {
	cmd := runner.ComposeExec(m.compose.Dir, m.compose.BackendService, args...)
	if out, err := m.run.Run(ctx, cmd); err != nil {
		return fmt.Errorf("%w (%s)", err, out)
	}
	return nil
}

// cleanupContainerDir is best-effort; a leftover /tmp dir inside the
// container is gone on the next container restart anyway.
func (m *Manager) cleanupContainerDir(ctx context.Context, cdir string) {
	if err := m.execBackend(ctx, "rm", "-rf", cdir); err != nil {
		m.log.Warn().Str("dir", cdir).Err(err).Msg("in-container cleanup failed")
	}
}
