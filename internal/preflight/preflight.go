package preflight

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"

	"tilenorm/internal/config"
	"tilenorm/internal/failure"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Path   string
	Detail string
}

// RunAll checks the source root, the destination root and every reference
// image. With createDest a missing destination root is created; without it
// the check only confirms that it could be.
func RunAll(cfg *config.Config, createDest bool) []Result {
	if cfg == nil {
		return nil
	}

	destMode := uint32(unix.R_OK | unix.W_OK | unix.X_OK)
	dest := CheckDirectoryAccess("Destination directory", cfg.Paths.DestDir, destMode, createDest)
	if !createDest {
		dest = CheckCreatableDirectory("Destination directory", cfg.Paths.DestDir, destMode)
	}
	results := []Result{
		CheckDirectoryAccess("Source directory", cfg.Paths.SourceDir, unix.R_OK|unix.X_OK, false),
		dest,
	}
	for i, ref := range cfg.Normalize.ReferenceImages {
		results = append(results, CheckReferenceImage(fmt.Sprintf("Reference image %d", i+1), ref))
	}
	return results
}

// Err folds failed results into a single ErrPath error, or nil when every
// check passed.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r.Name+": "+r.Detail)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return failure.Wrap(failure.ErrPath, "preflight", "check paths", strings.Join(failed, "; "), nil)
}
