package capture

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile captures a raw profile and persists it at path, atomically: the
// unit is written to a temporary file in the same directory and renamed
// into place, so a crash mid-dump never leaves a half-written profile for
// analysis tools to choke on. Hosted targets only; it is the one operation
// in this package that touches the filesystem.
func (c *Capturer) WriteFile(path string) error {
	data, err := c.CaptureBytes()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".profraw-*")
	if err != nil {
		return fmt.Errorf("creating temporary profile file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		c.discard(tmp, tmpName)
		return fmt.Errorf("writing profile to %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		c.remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		c.remove(tmpName)
		return fmt.Errorf("setting mode of %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		c.remove(tmpName)
		return fmt.Errorf("renaming profile into place: %w", err)
	}
	c.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("raw profile written")
	return nil
}

// discard closes and removes a temporary file after a failed write, logging
// rather than masking the original error.
func (c *Capturer) discard(f *os.File, name string) {
	if err := f.Close(); err != nil {
		c.log.Warn().Err(err).Str("path", name).Msg("failed to close temporary profile file")
	}
	c.remove(name)
}

func (c *Capturer) remove(name string) {
	if err := os.Remove(name); err != nil {
		c.log.Warn().Err(err).Str("path", name).Msg("failed to remove temporary profile file")
	}
}

// WriteFile captures this binary's raw profile to path. See
// Capturer.WriteFile.
func WriteFile(path string) error {
	return std.WriteFile(path)
}
