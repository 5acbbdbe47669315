package workflow

import (
	"math/rand/v2"
	"testing"

	"tilenorm/internal/config"
)

func TestRandSourceIgnoresConfiguredSeed(t *testing.T) {
	cfg := config.Default()
	cfg.Normalize.Seed = 7

	draw := func(r *rand.Rand) [4]uint64 {
		var out [4]uint64
		for i := range out {
			out[i] = r.Uint64()
		}
		return out
	}
	first := draw(NewManager(&cfg).randSource())
	second := draw(NewManager(&cfg).randSource())
	if first == second {
		t.Fatal("two runs with the same seed drew the same assignment stream")
	}
}

func TestRandSourcePrefersInjected(t *testing.T) {
	cfg := config.Default()
	injected := rand.New(rand.NewPCG(1, 2))
	if got := NewManager(&cfg, WithRand(injected)).randSource(); got != injected {
		t.Fatal("injected source was not used")
	}
}
