package preflight

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"tilenorm/internal/failure"
	"tilenorm/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir, unix.R_OK|unix.W_OK|unix.X_OK, false)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "read/write/search ok") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"), unix.R_OK, false)
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckDirectoryAccess_CreatesMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "nested")
	result := CheckDirectoryAccess("dest", dir, unix.R_OK|unix.W_OK|unix.X_OK, true)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	testsupport.WriteFile(t, f, []byte("x"))
	result := CheckDirectoryAccess("test", f, unix.R_OK, true)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryAccess_Empty(t *testing.T) {
	if result := CheckDirectoryAccess("test", "", unix.R_OK, true); result.Passed {
		t.Fatal("expected failure for empty path")
	}
}

func TestCheckReferenceImage(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "ref.png")
	testsupport.WriteTile(t, good, 1)
	text := filepath.Join(dir, "notes.txt")
	testsupport.WriteFile(t, text, []byte("x"))

	tests := []struct {
		name string
		path string
		pass bool
		want string
	}{
		{"readable png", good, true, "readable"},
		{"missing", filepath.Join(dir, "missing.png"), false, "does not exist"},
		{"directory", dir, false, "not a regular file"},
		{"unsupported", text, false, "unsupported image format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckReferenceImage("ref", tt.path)
			if result.Passed != tt.pass {
				t.Fatalf("Passed = %v, detail %q", result.Passed, result.Detail)
			}
			if !strings.Contains(result.Detail, tt.want) {
				t.Fatalf("detail %q missing %q", result.Detail, tt.want)
			}
		})
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithReferences(2))
	results := RunAll(cfg, true)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Fatalf("%s failed: %s", r.Name, r.Detail)
		}
	}
	if err := Err(results); err != nil {
		t.Fatalf("Err = %v", err)
	}
}

func TestRunAllMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.SourceDir = filepath.Join(t.TempDir(), "absent")
	err := Err(RunAll(cfg, true))
	if !errors.Is(err, failure.ErrPath) {
		t.Fatalf("expected ErrPath, got %v", err)
	}
	if !strings.Contains(err.Error(), "Source directory") {
		t.Fatalf("error should name the failed check: %v", err)
	}
}

func TestRunAllNilConfig(t *testing.T) {
	if got := RunAll(nil, true); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestRunAllWithoutCreateLeavesDestinationAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.DestDir = filepath.Join(t.TempDir(), "out", "nested")

	results := RunAll(cfg, false)
	if err := Err(results); err != nil {
		t.Fatalf("Err = %v", err)
	}
	if !strings.Contains(results[1].Detail, "will be created") {
		t.Fatalf("unexpected destination detail %q", results[1].Detail)
	}
	if _, err := os.Stat(filepath.Dir(cfg.Paths.DestDir)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read-only check created directories: %v", err)
	}
}

func TestCheckCreatableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	testsupport.WriteFile(t, blocker, []byte("x"))
	mode := uint32(unix.R_OK | unix.W_OK | unix.X_OK)

	tests := []struct {
		name string
		path string
		pass bool
		want string
	}{
		{"existing", dir, true, "read/write/search ok"},
		{"missing", filepath.Join(dir, "a", "b"), true, "will be created"},
		{"file ancestor", filepath.Join(blocker, "out"), false, "not a directory"},
		{"existing file", blocker, false, "is not a directory"},
		{"empty", "", false, "not configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckCreatableDirectory("dest", tt.path, mode)
			if result.Passed != tt.pass {
				t.Fatalf("Passed = %v, detail %q", result.Passed, result.Detail)
			}
			if !strings.Contains(result.Detail, tt.want) {
				t.Fatalf("detail %q missing %q", result.Detail, tt.want)
			}
		})
	}
}
