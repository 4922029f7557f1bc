package backup

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// ConsumeRebuildFlag reads the one-shot rebuild flag and immediately resets
// it to false, so "rebuild on next restart" fires exactly once. A missing
// file reads as false without creating it; unreadable content reads as false
// but is still reset.
func ConsumeRebuildFlag(fs afero.Fs, path string) (bool, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if exists, _ := afero.Exists(fs, path); !exists {
			return false, nil
		}
		return false, fmt.Errorf("read rebuild flag %s: %w", path, err)
	}

	value, parseErr := strconv.ParseBool(strings.TrimSpace(string(raw)))
	if parseErr != nil {
		value = false
	}

	if err := afero.WriteFile(fs, path, []byte("false\n"), 0o644); err != nil {
		return false, fmt.Errorf("reset rebuild flag %s: %w", path, err)
	}
	return value, nil
}

// ArmRebuildFlag sets the flag so the next restart rebuilds images.
func ArmRebuildFlag(fs afero.Fs, path string) error {
	if err := afero.WriteFile(fs, path, []byte("true\n"), 0o644); err != nil {
		return fmt.Errorf("arm rebuild flag %s: %w", path, err)
	}
	return nil
}
