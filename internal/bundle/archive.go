package bundle

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// transientNameRe matches everything an export run may leave in the
// artifact directory: outer bundles (group_3_2024-03-10.zip), and the inner
// manifest/asset/marker files if an outer packaging step died halfway.
var transientNameRe = regexp.MustCompile(`^(application|group)_\d+(_\d{4}-\d{2}-\d{2})?\.(zip|json|name)$`)

// IsTransientName reports whether a file name belongs to the export
// machinery. The local cleanup pass removes such files unconditionally.
func IsTransientName(name string) bool {
	return transientNameRe.MatchString(name)
}

// packArchive writes the given files into one zip. files maps archive entry
// names to source paths; entries are written in sorted order.
func packArchive(fs afero.Fs, zipPath string, files map[string]string) error {
	out, err := fs.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", zipPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		src, err := fs.Open(files[name])
		if err != nil {
			return fmt.Errorf("open %s: %w", files[name], err)
		}
		w, err := zw.Create(name)
		if err != nil {
			src.Close()
			return fmt.Errorf("add %s to archive: %w", name, err)
		}
		if _, err := io.Copy(w, src); err != nil {
			src.Close()
			return fmt.Errorf("write %s into archive: %w", name, err)
		}
		src.Close()
	}
	return zw.Close()
}

// unpackArchive extracts a flat zip into dest. Entry paths escaping dest
// are rejected.
func unpackArchive(fs afero.Fs, zipPath, dest string) error {
	f, err := fs.Open(zipPath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", zipPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive %s: %w", zipPath, err)
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("read archive %s: %w", zipPath, err)
	}

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(entry.Name)
		if name == "." || strings.HasPrefix(name, "..") {
			return fmt.Errorf("archive %s has invalid entry %q", zipPath, entry.Name)
		}
		if err := extractEntry(fs, entry, filepath.Join(dest, name)); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(fs afero.Fs, entry *zip.File, dest string) error {
	r, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", entry.Name, err)
	}
	defer r.Close()

	w, err := fs.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer w.Close()

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return nil
}

// moveFile renames src to dest, falling back to copy-and-remove when the
// two live on different devices (scratch dirs are typically on tmpfs).
func moveFile(fs afero.Fs, src, dest string) error {
	if err := fs.Rename(src, dest); err == nil {
		return nil
	}
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := fs.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dest, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return fs.Remove(src)
}
