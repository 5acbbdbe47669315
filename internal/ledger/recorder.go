package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Recorder is the write side of the ledger used by a run.
type Recorder interface {
	BeginRun(ctx context.Context, info RunInfo) (string, error)
	RecordResults(ctx context.Context, runID string, records []ItemRecord) error
	FinishRun(ctx context.Context, runID string, summary RunSummary) error
}

// Nop is the Recorder used when the ledger is disabled. It still hands out
// run IDs so log lines stay correlated.
type Nop struct{}

func (Nop) BeginRun(context.Context, RunInfo) (string, error) {
	return uuid.NewString(), nil
}

func (Nop) RecordResults(context.Context, string, []ItemRecord) error { return nil }

func (Nop) FinishRun(context.Context, string, RunSummary) error { return nil }

var (
	_ Recorder = (*Ledger)(nil)
	_ Recorder = Nop{}
)
