package bundle

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// DefaultGroupName is used when a group bundle carries no name marker.
const DefaultGroupName = "Imported workspace"

// ErrGroupRequired is returned when an application bundle is imported
// without a target group. The CLI reports this before any side effect.
var ErrGroupRequired = errors.New("importing an application requires a target group id")

// ImportApplication rehydrates an application bundle into an existing
// group. The group id is mandatory.
func (m *Manager) ImportApplication(ctx context.Context, archivePath string, groupID int) error {
	if groupID <= 0 {
		return ErrGroupRequired
	}
	return m.withScratch(func(scratch string) error {
		base, err := m.unpackBundle(archivePath, scratch)
		if err != nil {
			return err
		}
		return m.importFromScratch(ctx, scratch, base, groupID)
	})
}

// ImportGroup rehydrates a group bundle. Without a positive groupID a new
// group is created first, named from the bundle's name marker (or
// DefaultGroupName when the marker is absent). Returns the group id
// imported into.
func (m *Manager) ImportGroup(ctx context.Context, archivePath string, groupID int) (int, error) {
	err := m.withScratch(func(scratch string) error {
		base, err := m.unpackBundle(archivePath, scratch)
		if err != nil {
			return err
		}
		if groupID <= 0 {
			name := m.readMarker(scratch, base)
			group, err := m.api.CreateGroup(ctx, name)
			if err != nil {
				return fmt.Errorf("create group %q: %w", name, err)
			}
			m.log.Info().Int("group", group.ID).Str("name", name).Msg("created group for import")
			groupID = group.ID
		}
		return m.importFromScratch(ctx, scratch, base, groupID)
	})
	return groupID, err
}

// unpackBundle extracts the outer archive and validates the bundle shape:
// exactly the manifest located by its .json extension, plus an asset
// archive with the same base name. Either one missing means the bundle is
// corrupt and the import aborts before touching remote state.
func (m *Manager) unpackBundle(archivePath, scratch string) (string, error) {
	if err := unpackArchive(m.fs, archivePath, scratch); err != nil {
		return "", err
	}

	infos, err := afero.ReadDir(m.fs, scratch)
	if err != nil {
		return "", fmt.Errorf("read scratch dir: %w", err)
	}
	base := ""
	for _, info := range infos {
		if !info.IsDir() && strings.HasSuffix(info.Name(), manifestExt) {
			base = strings.TrimSuffix(info.Name(), manifestExt)
			break
		}
	}
	if base == "" {
		return "", fmt.Errorf("%w: no manifest in %s", ErrCorruptBundle, archivePath)
	}

	assets := filepath.Join(scratch, base+assetsExt)
	if exists, _ := afero.Exists(m.fs, assets); !exists {
		return "", fmt.Errorf("%w: manifest %s%s has no matching asset archive", ErrCorruptBundle, base, manifestExt)
	}
	return base, nil
}

func (m *Manager) readMarker(scratch, base string) string {
	raw, err := afero.ReadFile(m.fs, filepath.Join(scratch, base+markerExt))
	if err != nil {
		return DefaultGroupName
	}
	name := strings.TrimSpace(string(raw))
	if name == "" {
		return DefaultGroupName
	}
	return name
}

// importFromScratch copies the bundle pieces into the backend container and
// runs the in-container import command against the target group.
func (m *Manager) importFromScratch(ctx context.Context, scratch, base string, groupID int) error {
	cdir := path.Join("/tmp", "import-"+uuid.NewString())
	if err := m.execBackend(ctx, "mkdir", "-p", cdir); err != nil {
		return err
	}
	defer m.cleanupContainerDir(ctx, cdir)

	for _, ext := range []string{manifestExt, assetsExt} {
		dest := m.compose.BackendService + ":" + path.Join(cdir, base+ext)
		cmd := m.composeCp(filepath.Join(scratch, base+ext), dest)
		if out, err := m.run.Run(ctx, cmd); err != nil {
			return fmt.Errorf("copy %s%s in: %w (%s)", base, ext, err, out)
		}
	}

	importArgs := append(append([]string{}, m.compose.ManageCommand...), importCommand, strconv.Itoa(groupID), path.Join(cdir, base))
	if err := m.execBackend(ctx, importArgs...); err != nil {
		return fmt.Errorf("import command: %w", err)
	}
	m.log.Info().Int("group", groupID).Str("bundle", base).Msg("import finished")
	return nil
}
