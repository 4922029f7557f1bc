package backup

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/afero"

	"github.com/mkoopman/gridbak/internal/retention"
)

const (
	artifactPrefix = "backup_"
	artifactExt    = ".dump"
)

// artifactNameRe matches backup_2024-03-10.dump and backup_2024-03-10_2.dump.
var artifactNameRe = regexp.MustCompile(`^backup_(\d{4}-\d{2}-\d{2})(?:_(\d+))?\.dump$`)

// Artifact is a dated dump file in the local artifact directory. Created by
// the backup manager, deleted by the retention pass, never mutated.
type Artifact struct {
	Date     time.Time
	Sequence int
	Path     string
}

// Name is the artifact's file name: backup_<date>.dump, or
// backup_<date>_<seq>.dump when a same-day artifact already exists.
func (a Artifact) Name() string {
	date := a.Date.Format(retention.DateLayout)
	if a.Sequence == 0 {
		return artifactPrefix + date + artifactExt
	}
	return fmt.Sprintf("%s%s_%d%s", artifactPrefix, date, a.Sequence, artifactExt)
}

// NextArtifact picks the first free (date, sequence) name in dir for the
// given day. The scan-then-create window is accepted; this is a
// single-operator tool.
func NextArtifact(fs afero.Fs, dir string, now time.Time) (Artifact, error) {
	for seq := 0; ; seq++ {
		a := Artifact{Date: now, Sequence: seq}
		a.Path = filepath.Join(dir, a.Name())
		exists, err := afero.Exists(fs, a.Path)
		if err != nil {
			return Artifact{}, fmt.Errorf("check artifact %s: %w", a.Path, err)
		}
		if !exists {
			return a, nil
		}
	}
}

// ScanArtifacts lists the backup artifacts present in dir. Files that don't
// match the artifact naming scheme are ignored.
func ScanArtifacts(fs afero.Fs, dir string) ([]Artifact, error) {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact dir %s: %w", dir, err)
	}
	var artifacts []Artifact
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		m := artifactNameRe.FindStringSubmatch(info.Name())
		if m == nil {
			continue
		}
		date, err := time.Parse(retention.DateLayout, m[1])
		if err != nil {
			continue
		}
		seq := 0
		if m[2] != "" {
			fmt.Sscanf(m[2], "%d", &seq)
		}
		artifacts = append(artifacts, Artifact{
			Date:     date,
			Sequence: seq,
			Path:     filepath.Join(dir, info.Name()),
		})
	}
	return artifacts, nil
}
