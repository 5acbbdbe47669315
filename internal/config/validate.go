package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"tilenorm/internal/stain"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNormalize(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.SourceDir == "" {
		return errors.New("paths.source_dir must be set (or pass --patch-location)")
	}
	if c.Paths.DestDir == "" {
		return errors.New("paths.dest_dir must be set (or pass --norm-location)")
	}
	if c.Paths.SourceDir == c.Paths.DestDir {
		return errors.New("paths.dest_dir must differ from paths.source_dir")
	}
	if isWithin(c.Paths.DestDir, c.Paths.SourceDir) {
		return fmt.Errorf("paths.dest_dir %q must not be inside paths.source_dir", c.Paths.DestDir)
	}
	if isWithin(c.Paths.StateDir, c.Paths.DestDir) {
		return fmt.Errorf("paths.state_dir %q must not be inside paths.dest_dir", c.Paths.StateDir)
	}
	return nil
}

func (c *Config) validateNormalize() error {
	for _, m := range c.Normalize.Methods {
		if _, err := stain.ParseMethod(m); err != nil {
			return fmt.Errorf("normalize.methods: %w", err)
		}
	}
	if len(c.Normalize.ReferenceImages) == 0 {
		return errors.New("normalize.reference_images must list at least one image (or pass --reference-image)")
	}
	for _, ext := range c.Normalize.Extensions {
		if !stain.SupportedExtension(ext) {
			return fmt.Errorf("normalize.extensions: unsupported image extension %q", ext)
		}
	}
	for _, ref := range c.Normalize.ReferenceImages {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(ref)), ".")
		if !stain.SupportedExtension(ext) {
			return fmt.Errorf("normalize.reference_images: %q is not a supported image", ref)
		}
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Count < 0 {
		return errors.New("workers.count must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func isWithin(path, base string) bool {
	if path == "" || base == "" {
		return false
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
