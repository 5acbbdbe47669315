package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"tilenorm/internal/bank"
	"tilenorm/internal/config"
	"tilenorm/internal/failure"
	"tilenorm/internal/ledger"
	"tilenorm/internal/logging"
	"tilenorm/internal/patch"
	"tilenorm/internal/planner"
	"tilenorm/internal/preflight"
	"tilenorm/internal/stain"
	"tilenorm/internal/workerpool"
)

// PlanFailureKind marks ledger rows for patches that never reached a worker.
const PlanFailureKind = "plan_failure"

// Manager runs normalization passes for one configuration.
type Manager struct {
	cfg          *config.Config
	logger       *slog.Logger
	fitter       bank.Fitter
	standardizer workerpool.Standardizer
	codec        workerpool.Codec
	observer     Observer
	recorder     ledger.Recorder
	rand         *rand.Rand
}

// NewManager constructs a manager backed by the stain library unless
// options replace its collaborators.
func NewManager(cfg *config.Config, opts ...ManagerOption) *Manager {
	lib := stain.NewLibrary(cfg.Normalize.Seed)
	m := &Manager{
		cfg:          cfg,
		logger:       logging.NewNop(),
		fitter:       lib,
		standardizer: lib,
		codec:        lib,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes one pass. The returned Summary is filled as far as the run
// got, also when an error is returned. Per-patch failures are not errors;
// they are counted in Summary.Failed.
func (m *Manager) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	summary := newSummary()

	if err := m.cfg.Validate(); err != nil {
		return summary, failure.Wrap(failure.ErrConfiguration, "init", "validate config", "", err)
	}
	if err := preflight.Err(preflight.RunAll(m.cfg, true)); err != nil {
		return summary, err
	}

	lock, err := acquireLock(m.cfg)
	if err != nil {
		return summary, err
	}
	defer func() {
		_ = lock.Unlock()
	}()

	recorder, closeRecorder, err := m.openRecorder(ctx)
	if err != nil {
		return summary, err
	}
	defer closeRecorder()

	workers := m.cfg.EffectiveWorkers()
	summary.Workers = workers
	runID, err := recorder.BeginRun(ctx, ledger.RunInfo{
		SourceDir:      m.cfg.Paths.SourceDir,
		DestDir:        m.cfg.Paths.DestDir,
		Methods:        m.cfg.Normalize.Methods,
		ReferenceCount: len(m.cfg.Normalize.ReferenceImages),
		Workers:        workers,
		Standardize:    m.cfg.Normalize.UseStandardizer,
		Seed:           m.cfg.Normalize.Seed,
	})
	if err != nil {
		return summary, failure.Wrap(failure.ErrPath, "init", "begin ledger run", "", err)
	}
	summary.RunID = runID
	ctx = failure.WithRunID(ctx, runID)

	base, closeLog := m.runLogger(runID)
	defer closeLog()
	logger := logging.WithContext(ctx, logging.NewComponentLogger(base, "workflow"))
	logger.Info("normalization run started",
		logging.String("source_dir", m.cfg.Paths.SourceDir),
		logging.String("dest_dir", m.cfg.Paths.DestDir),
		logging.Any("methods", m.cfg.Normalize.Methods),
		logging.Int("references", len(m.cfg.Normalize.ReferenceImages)),
		logging.Int("workers", workers),
		logging.String(logging.FieldEventType, "run_started"),
	)

	runErr := m.execute(ctx, base, recorder, &summary)
	summary.Duration = time.Since(started)

	final := ledger.RunSummary{
		Status:         ledger.StatusCompleted,
		Discovered:     summary.Discovered,
		AlreadyPresent: summary.AlreadyPresent,
		Planned:        summary.Planned,
		Written:        summary.Written,
		Failed:         summary.FailedTotal(),
		BytesWritten:   summary.BytesWritten,
		Fallback:       summary.Fallback,
	}
	if runErr != nil {
		final.Status = ledger.StatusFailed
		final.Error = runErr.Error()
	}
	if err := recorder.FinishRun(context.WithoutCancel(ctx), runID, final); err != nil {
		logging.WarnWithContext(logger, "ledger run not finalized", "ledger_finish_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory for disk space or permissions"),
			logging.String(logging.FieldImpact, "run shows as running in the ledger"),
		)
	}

	if runErr != nil {
		logging.ErrorWithContext(logger, "normalization run failed", "run_failed",
			logging.String(logging.FieldKind, string(failure.KindOf(runErr))),
			logging.Error(runErr),
		)
		return summary, runErr
	}
	logger.Info("normalization run complete",
		logging.Int("discovered", summary.Discovered),
		logging.Int("already_present", summary.AlreadyPresent),
		logging.Int("planned", summary.Planned),
		logging.Int("written", summary.Written),
		logging.Int("failed", summary.FailedTotal()),
		logging.Int64("bytes_written", summary.BytesWritten),
		logging.Duration("elapsed", summary.Duration),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	return summary, nil
}

// execute covers everything after the ledger run is opened. base carries
// neither a component nor context fields; the pool adds the latter per item.
func (m *Manager) execute(ctx context.Context, base *slog.Logger, recorder ledger.Recorder, summary *Summary) error {
	wf := logging.NewComponentLogger(base, "workflow")
	logger := logging.WithContext(ctx, wf)
	methods := make([]stain.Method, 0, len(m.cfg.Normalize.Methods))
	for _, name := range m.cfg.Normalize.Methods {
		method, err := stain.ParseMethod(name)
		if err != nil {
			return failure.Wrap(failure.ErrConfiguration, "init", "parse method", "", err)
		}
		methods = append(methods, method)
	}

	b, fallback, err := bank.BuildWithFallback(ctx, bank.Spec{
		Methods:     methods,
		References:  m.cfg.Normalize.ReferenceImages,
		Standardize: m.cfg.Normalize.UseStandardizer,
		Concurrency: summary.Workers,
	}, m.fitter, logging.WithContext(ctx, base))
	summary.Fallback = fallback
	if err != nil {
		return err
	}

	pattern := patch.ParsePattern(m.cfg.Normalize.PatchPattern)
	candidates, err := patch.Enumerate(m.cfg.Paths.SourceDir, pattern.Depth(), m.cfg.Normalize.Extensions)
	if err != nil {
		return err
	}
	summary.Discovered = len(candidates)
	logger.Info("patches discovered",
		logging.Int("patches", len(candidates)),
		logging.String("pattern", pattern.String()),
		logging.String(logging.FieldEventType, "enumerate_complete"),
	)

	chunks := Chunks(candidates, summary.Workers)
	if m.observer != nil {
		m.observer.Started(len(candidates), len(chunks))
	}
	if len(chunks) == 0 {
		return nil
	}

	pool := workerpool.New(workerpool.Options{
		Workers:      summary.Workers,
		Bank:         b,
		Standardize:  b.Standardized(),
		Standardizer: m.standardizer,
		Codec:        m.codec,
		Logger:       base,
	})
	defer pool.Close()

	pl := &planner.Planner{
		SourceRoot: m.cfg.Paths.SourceDir,
		DestRoot:   m.cfg.Paths.DestDir,
		Bank:       b,
		Rand:       m.randSource(),
	}

	processed := 0
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			summary.Canceled = true
			return fmt.Errorf("run canceled after %d of %d chunks: %w", i, len(chunks), err)
		}
		chunkCtx := failure.WithChunk(ctx, i)
		summary.ChunkSizes = append(summary.ChunkSizes, len(chunk))

		plan := pl.PlanChunk(chunk)
		summary.AlreadyPresent += plan.Complete
		summary.Planned += len(plan.Items)
		summary.PlanErrors += len(plan.Errors)
		records := m.planRecords(chunkCtx, wf, i, plan.Errors)

		if len(plan.Items) > 0 {
			results, err := pool.Dispatch(chunkCtx, plan.Items)
			if err != nil {
				return failure.Wrap(failure.ErrConfiguration, "dispatch", "chunk", fmt.Sprintf("chunk %d", i), err)
			}
			for _, res := range results {
				if res.Kind == workerpool.Success {
					summary.Written++
					summary.BytesWritten += res.Bytes
				} else {
					summary.Failed[res.Kind]++
				}
				records = append(records, itemRecord(b, i, res))
			}
		}

		if err := recorder.RecordResults(context.WithoutCancel(chunkCtx), summary.RunID, records); err != nil {
			logging.WarnWithContext(logging.WithContext(chunkCtx, wf), "chunk outcomes not recorded", "ledger_record_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the state directory for disk space or permissions"),
				logging.String(logging.FieldImpact, "tilenorm failures will not list this chunk"),
			)
		}

		processed += len(chunk)
		progress := Progress{
			Chunk:     i + 1,
			Chunks:    len(chunks),
			Processed: processed,
			Total:     len(candidates),
			Written:   summary.Written,
			Failed:    summary.FailedTotal(),
		}
		logging.WithContext(chunkCtx, wf).Debug("chunk complete",
			logging.Int("planned", len(plan.Items)),
			logging.Int("already_present", plan.Complete),
			logging.Int("processed", processed),
			logging.Int("total", len(candidates)),
			logging.String(logging.FieldEventType, "chunk_complete"),
		)
		if m.observer != nil {
			m.observer.ChunkDone(progress)
		}
	}
	return nil
}

func (m *Manager) planRecords(ctx context.Context, logger *slog.Logger, chunk int, errs []planner.PlanError) []ledger.ItemRecord {
	records := make([]ledger.ItemRecord, 0, len(errs))
	for _, pe := range errs {
		logging.WarnWithContext(logging.WithContext(failure.WithSource(ctx, pe.Source), logger),
			"patch not planned", "plan_failed",
			logging.String(logging.FieldKind, string(failure.KindOf(pe.Err))),
			logging.Error(pe.Err),
			logging.String(logging.FieldErrorHint, "check permissions on the destination tree"),
			logging.String(logging.FieldImpact, "patch skipped for this run"),
		)
		records = append(records, ledger.ItemRecord{
			Chunk:  chunk,
			Source: pe.Source,
			Handle: -1,
			Kind:   PlanFailureKind,
			Error:  pe.Err.Error(),
		})
	}
	return records
}

func itemRecord(b *bank.Bank, chunk int, res workerpool.Result) ledger.ItemRecord {
	rec := ledger.ItemRecord{
		Chunk:    chunk,
		Source:   res.Item.Source,
		Dest:     res.Item.Dest,
		Handle:   res.Item.Handle,
		Kind:     string(res.Kind),
		Duration: res.Duration,
		Bytes:    res.Bytes,
	}
	if h, ok := b.At(res.Item.Handle); ok {
		rec.Method = string(h.Method)
		rec.Reference = h.Reference
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

func (m *Manager) openRecorder(ctx context.Context) (ledger.Recorder, func(), error) {
	if m.recorder != nil {
		return m.recorder, func() {}, nil
	}
	if !m.cfg.Ledger.Enabled {
		return ledger.Nop{}, func() {}, nil
	}
	l, err := ledger.Open(ctx, m.cfg.Paths.StateDir)
	if err != nil {
		return nil, nil, failure.Wrap(failure.ErrPath, "init", "open ledger", m.cfg.Paths.StateDir, err)
	}
	return l, func() {
		if err := l.Close(); err != nil {
			m.logger.Debug("ledger close failed", logging.Error(err))
		}
	}, nil
}

// runLogger tees the base logger into the per-run JSON log when enabled.
func (m *Manager) runLogger(runID string) (*slog.Logger, func()) {
	if !m.cfg.Logging.RunLogs {
		return m.logger, func() {}
	}
	dir := m.cfg.RunLogDir()
	rl, err := logging.OpenRunLog(dir, runID)
	if err != nil {
		logging.WarnWithContext(m.logger, "run log unavailable", "run_log_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the state directory"),
			logging.String(logging.FieldImpact, "this run has no dedicated log file"),
		)
		return m.logger, func() {}
	}
	logger := logging.TeeLogger(m.logger, rl.Handler)
	if n := logging.PruneRunLogs(logger, dir, m.cfg.Logging.RetentionDays, rl.Path); n > 0 {
		logger.Debug("old run logs pruned", logging.Int("removed", n))
	}
	return logger, func() {
		if err := rl.Close(); err != nil {
			m.logger.Debug("run log close failed", logging.Error(err))
		}
	}
}

// randSource draws handles independently of normalize.seed, which only
// drives the stain fitters.
func (m *Manager) randSource() *rand.Rand {
	if m.rand != nil {
		return m.rand
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
