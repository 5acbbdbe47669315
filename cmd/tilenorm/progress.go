package main

import (
	"io"
	"log/slog"
	"time"

	"github.com/schollz/progressbar/v3"

	"tilenorm/internal/logging"
	"tilenorm/internal/workflow"
)

// barObserver draws a progress bar over candidate patches.
type barObserver struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func (o *barObserver) Started(total, chunks int) {
	if total == 0 {
		return
	}
	o.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(o.out),
		progressbar.OptionSetDescription("normalizing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

func (o *barObserver) ChunkDone(p workflow.Progress) {
	if o.bar == nil {
		return
	}
	_ = o.bar.Set(p.Processed)
	if p.Chunk == p.Chunks {
		_ = o.bar.Finish()
	}
}

// logObserver emits a progress log line each time another 10% of the
// candidates has been processed.
type logObserver struct {
	logger  *slog.Logger
	sampler *logging.ProgressSampler
}

func newLogObserver(logger *slog.Logger) *logObserver {
	return &logObserver{
		logger:  logging.NewComponentLogger(logger, "progress"),
		sampler: logging.NewProgressSampler(10),
	}
}

func (o *logObserver) Started(total, chunks int) {
	o.sampler.Reset()
	o.logger.Info("processing patches",
		logging.Int("total", total),
		logging.Int("chunks", chunks),
		logging.String(logging.FieldEventType, "progress_started"),
	)
}

func (o *logObserver) ChunkDone(p workflow.Progress) {
	if !o.sampler.ShouldLog(p.Percent()) {
		return
	}
	o.logger.Info("progress",
		logging.Int("processed", p.Processed),
		logging.Int("total", p.Total),
		logging.Float64("percent", p.Percent()),
		logging.Int("written", p.Written),
		logging.Int("failed", p.Failed),
		logging.String(logging.FieldEventType, "progress"),
	)
}
