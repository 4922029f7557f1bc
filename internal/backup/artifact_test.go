package backup

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestNextArtifact_NoCollision(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	a, err := NextArtifact(fs, "backups", now)
	if err != nil {
		t.Fatalf("NextArtifact() error = %v", err)
	}
	if a.Name() != "backup_2024-03-10.dump" {
		t.Errorf("Name() = %q, want backup_2024-03-10.dump", a.Name())
	}
	if a.Sequence != 0 {
		t.Errorf("Sequence = %d, want 0", a.Sequence)
	}
}

func TestNextArtifact_IncrementsSequence(t *testing.T) {
	fs := afero.NewMemMapFs()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	existing := []string{
		"backups/backup_2024-03-10.dump",
		"backups/backup_2024-03-10_1.dump",
	}
	for _, path := range existing {
		if err := afero.WriteFile(fs, path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	a, err := NextArtifact(fs, "backups", now)
	if err != nil {
		t.Fatalf("NextArtifact() error = %v", err)
	}
	if a.Name() != "backup_2024-03-10_2.dump" {
		t.Errorf("Name() = %q, want backup_2024-03-10_2.dump", a.Name())
	}
}

func TestScanArtifacts(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := []string{
		"backups/backup_2024-03-01.dump",
		"backups/backup_2024-03-10.dump",
		"backups/backup_2024-03-10_1.dump",
		"backups/notes.txt",
		"backups/group_3_2024-03-10.zip",
	}
	for _, path := range files {
		if err := afero.WriteFile(fs, path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	artifacts, err := ScanArtifacts(fs, "backups")
	if err != nil {
		t.Fatalf("ScanArtifacts() error = %v", err)
	}
	if len(artifacts) != 3 {
		t.Fatalf("found %d artifacts, want 3", len(artifacts))
	}
	last := artifacts[2]
	if last.Sequence != 1 || last.Date.Day() != 10 {
		t.Errorf("unexpected artifact %+v", last)
	}
}
