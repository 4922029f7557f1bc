package backup

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/mkoopman/gridbak/internal/bundle"
	"github.com/mkoopman/gridbak/internal/retention"
)

// Clean runs the retention pass over the local artifact directory and, in
// the same pass, removes all transient export archives left behind by
// earlier export runs. Artifacts are fed to the engine sorted by date
// ascending so the monthly-anchor exemption is deterministic. Returns the
// paths that were removed.
func (m *Manager) Clean(policy retention.Policy) ([]string, error) {
	artifacts, err := ScanArtifacts(m.fs, m.project.ArtifactDir)
	if err != nil {
		return nil, err
	}
	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].Date.Equal(artifacts[j].Date) {
			return artifacts[i].Sequence < artifacts[j].Sequence
		}
		return artifacts[i].Date.Before(artifacts[j].Date)
	})

	items := make([]retention.Item, len(artifacts))
	for i, a := range artifacts {
		items[i] = retention.Item{ID: a.Path, Date: a.Date.Format(retention.DateLayout)}
	}

	var removed []string
	for _, path := range retention.SelectForDeletion(items, m.now(), policy) {
		if err := m.fs.Remove(path); err != nil {
			m.log.Error().Str("artifact", path).Err(err).Msg("remove failed")
			continue
		}
		m.log.Info().Str("artifact", path).Msg("removed by retention")
		removed = append(removed, path)
	}

	leftovers, err := m.removeExportLeftovers()
	if err != nil {
		return removed, err
	}
	return append(removed, leftovers...), nil
}

// removeExportLeftovers deletes export bundles and their unpacked pieces
// from the artifact directory regardless of age; bundles are hand-off
// deliverables, not retained artifacts.
func (m *Manager) removeExportLeftovers() ([]string, error) {
	infos, err := afero.ReadDir(m.fs, m.project.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("read artifact dir %s: %w", m.project.ArtifactDir, err)
	}
	var removed []string
	for _, info := range infos {
		if info.IsDir() || !bundle.IsTransientName(info.Name()) {
			continue
		}
		path := filepath.Join(m.project.ArtifactDir, info.Name())
		if err := m.fs.Remove(path); err != nil {
			m.log.Error().Str("file", path).Err(err).Msg("remove failed")
			continue
		}
		m.log.Info().Str("file", path).Msg("removed transient export file")
		removed = append(removed, path)
	}
	return removed, nil
}
