package testsupport

import (
	"context"
	"testing"

	"tilenorm/internal/config"
	"tilenorm/internal/ledger"
)

// MustOpenLedger opens the ledger in cfg's state directory and registers
// cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(context.Background(), cfg.Paths.StateDir)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = l.Close()
	})
	return l
}
