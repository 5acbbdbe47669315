package workflow

import (
	"log/slog"
	"math/rand/v2"

	"tilenorm/internal/bank"
	"tilenorm/internal/ledger"
	"tilenorm/internal/workerpool"
)

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithFitter replaces the stain library used to build the bank.
func WithFitter(f bank.Fitter) ManagerOption {
	return func(m *Manager) {
		if f != nil {
			m.fitter = f
		}
	}
}

// WithStandardizer replaces the per-patch luminosity standardizer.
func WithStandardizer(s workerpool.Standardizer) ManagerOption {
	return func(m *Manager) {
		if s != nil {
			m.standardizer = s
		}
	}
}

// WithCodec replaces the patch decoder/encoder.
func WithCodec(c workerpool.Codec) ManagerOption {
	return func(m *Manager) {
		if c != nil {
			m.codec = c
		}
	}
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) {
		m.observer = o
	}
}

// WithRecorder replaces the ledger. The Manager does not close a recorder
// it did not open.
func WithRecorder(r ledger.Recorder) ManagerOption {
	return func(m *Manager) {
		m.recorder = r
	}
}

// WithRand fixes the source used to assign bank handles.
func WithRand(r *rand.Rand) ManagerOption {
	return func(m *Manager) {
		m.rand = r
	}
}
