package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"tilenorm/internal/config"
	"tilenorm/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	cfg := testsupport.NewConfig(t)

	configPath := filepath.Join(home, ".config", "tilenorm", "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	refs := make([]string, len(cfg.Normalize.ReferenceImages))
	for i, ref := range cfg.Normalize.ReferenceImages {
		refs[i] = strconv.Quote(ref)
	}
	content := fmt.Sprintf(`[paths]
source_dir = %q
dest_dir = %q
state_dir = %q

[normalize]
methods = ["reinhard"]
reference_images = [%s]

[workers]
count = 2

[logging]
run_logs = false
`, cfg.Paths.SourceDir, cfg.Paths.DestDir, cfg.Paths.StateDir, strings.Join(refs, ", "))
	testsupport.WriteFile(t, path, []byte(content))
}

func writePatches(t *testing.T, cfg *config.Config, n int) []string {
	t.Helper()
	paths := make([]string, n)
	for i := range n {
		paths[i] = testsupport.PatchPath(cfg.Paths.SourceDir, "tumor", "cc", "slide-1", "p"+strconv.Itoa(i)+".png")
		testsupport.WriteTile(t, paths[i], uint64(i+10))
	}
	return paths
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("walk %s: %v", root, err)
	}
	return n
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
