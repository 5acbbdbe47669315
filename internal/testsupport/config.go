package testsupport

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"tilenorm/internal/config"
	"tilenorm/internal/stain"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a resolved config seeded with unique temp directories
// per test: <base>/patches (created empty), <base>/normalized and <base>/state. One real
// reference tile is written to <base>/refs/ref-1.png unless an option
// replaces the reference list.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.SourceDir = filepath.Join(base, "patches")
	cfgVal.Paths.DestDir = filepath.Join(base, "normalized")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Normalize.Methods = []string{string(stain.Reinhard)}
	cfgVal.Workers.Count = 2
	cfgVal.Logging.RunLogs = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	WithReferences(1)(builder)

	for _, opt := range opts {
		opt(builder)
	}

	if err := os.MkdirAll(cfgVal.Paths.SourceDir, 0o755); err != nil {
		t.Fatalf("create source dir: %v", err)
	}
	if err := builder.cfg.Resolve(); err != nil {
		t.Fatalf("resolve test config: %v", err)
	}
	return builder.cfg
}

// WithMethods overrides the normalization methods.
func WithMethods(methods ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Normalize.Methods = methods
	}
}

// WithReferences writes n synthetic reference tiles and uses them.
func WithReferences(n int) ConfigOption {
	return func(b *configBuilder) {
		refs := make([]string, 0, n)
		for i := range n {
			path := filepath.Join(b.baseDir, "refs", "ref-"+strconv.Itoa(i+1)+".png")
			WriteTile(b.t, path, uint64(1000+i))
			refs = append(refs, path)
		}
		b.cfg.Normalize.ReferenceImages = refs
	}
}

// WithWorkers sets an explicit worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.Count = n
	}
}

// WithPattern sets the patch pattern.
func WithPattern(pattern string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Normalize.PatchPattern = pattern
	}
}

// WithStandardizer toggles luminosity standardization.
func WithStandardizer(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Normalize.UseStandardizer = enabled
	}
}

// WithLedger toggles the run ledger.
func WithLedger(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Enabled = enabled
	}
}

// WithRunLogs toggles per-run JSON log files.
func WithRunLogs(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Logging.RunLogs = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.SourceDir)
}
