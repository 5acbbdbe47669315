package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"tilenorm/internal/fileutil"
	"tilenorm/internal/stain"
)

// CheckDirectoryAccess verifies that path is a directory granting the
// requested access mode (unix.R_OK, unix.W_OK, unix.X_OK bits). When create
// is set, a missing directory is created first.
func CheckDirectoryAccess(name, path string, mode uint32, create bool) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) && create {
		if mkErr := fileutil.EnsureDir(path); mkErr != nil {
			return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: create: %v)", path, mkErr)}
		}
		info, err = os.Stat(path)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Path: path, Detail: fmt.Sprintf("%s (%s ok)", path, describeMode(mode))}
}

// CheckCreatableDirectory is the read-only form of CheckDirectoryAccess with
// create set. An existing path is checked as usual. A missing one passes when
// its nearest existing ancestor is a writable directory, and nothing is
// created.
func CheckCreatableDirectory(name, path string, mode uint32) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if _, err := os.Stat(path); err == nil || !errors.Is(err, fs.ErrNotExist) {
		return CheckDirectoryAccess(name, path, mode, false)
	}
	parent := filepath.Dir(path)
	for {
		info, err := os.Stat(parent)
		if err == nil {
			if !info.IsDir() {
				return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: %s is not a directory)", path, parent)}
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: stat %s: %v)", path, parent, err)}
		}
		next := filepath.Dir(parent)
		if next == parent {
			break
		}
		parent = next
	}
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)}
	}
	return Result{Name: name, Passed: true, Path: path, Detail: fmt.Sprintf("%s (missing, will be created)", path)}
}

// CheckReferenceImage verifies that path is a readable regular file whose
// extension names a supported image format.
func CheckReferenceImage(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if !stain.SupportedExtension(filepath.Ext(path)) {
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: unsupported image format)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Path: path, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Path: path, Detail: fmt.Sprintf("%s (readable)", path)}
}

func describeMode(mode uint32) string {
	out := ""
	for _, bit := range []struct {
		flag  uint32
		label string
	}{{unix.R_OK, "read"}, {unix.W_OK, "write"}, {unix.X_OK, "search"}} {
		if mode&bit.flag == 0 {
			continue
		}
		if out != "" {
			out += "/"
		}
		out += bit.label
	}
	if out == "" {
		return "exists"
	}
	return out
}
