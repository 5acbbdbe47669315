package config

import (
	"fmt"
	"strings"
)

// Resolve normalizes and validates the configuration. Call it after applying
// command-line overrides to a loaded Config.
func (c *Config) Resolve() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeNormalize(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SourceDir, err = expandPath(strings.TrimSpace(c.Paths.SourceDir)); err != nil {
		return fmt.Errorf("paths.source_dir: %w", err)
	}
	if c.Paths.DestDir, err = expandPath(strings.TrimSpace(c.Paths.DestDir)); err != nil {
		return fmt.Errorf("paths.dest_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNormalize() error {
	c.Normalize.Methods = dedupe(c.Normalize.Methods, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
	if len(c.Normalize.Methods) == 0 {
		c.Normalize.Methods = []string{defaultMethod}
	}

	refs := make([]string, 0, len(c.Normalize.ReferenceImages))
	for _, ref := range c.Normalize.ReferenceImages {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		expanded, err := expandPath(ref)
		if err != nil {
			return fmt.Errorf("normalize.reference_images: %w", err)
		}
		refs = append(refs, expanded)
	}
	// Duplicate references are kept: each one adds handles to the bank and
	// therefore weights the random assignment.
	c.Normalize.ReferenceImages = refs

	c.Normalize.PatchPattern = strings.TrimSpace(c.Normalize.PatchPattern)

	c.Normalize.Extensions = dedupe(c.Normalize.Extensions, func(s string) string {
		return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	})
	if len(c.Normalize.Extensions) == 0 {
		c.Normalize.Extensions = append([]string(nil), defaultExtensions...)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func dedupe(values []string, canon func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = canon(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
