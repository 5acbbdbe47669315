package workerpool

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"tilenorm/internal/bank"
	"tilenorm/internal/failure"
	"tilenorm/internal/fileutil"
	"tilenorm/internal/logging"
	"tilenorm/internal/planner"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("worker pool closed")

// Standardizer applies luminosity standardization to a patch.
type Standardizer interface {
	Standardize(img image.Image) (image.Image, error)
}

// Codec reads source patches and writes normalized ones. Encode must write
// atomically and pick the format from the destination extension.
type Codec interface {
	Decode(path string) (image.Image, error)
	Encode(path string, img image.Image) (int64, error)
}

// Options configures a Pool.
type Options struct {
	// Workers is the pool size. Zero or less means runtime.NumCPU().
	Workers      int
	Bank         *bank.Bank
	Standardize  bool
	Standardizer Standardizer
	Codec        Codec
	Logger       *slog.Logger
}

// Pool is a fixed set of workers sharing one read-only bank.
type Pool struct {
	opts    Options
	workers int
	logger  *slog.Logger
	jobs    chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type job struct {
	ctx  context.Context
	item planner.WorkItem
	slot *Result
	done *sync.WaitGroup
}

// New starts the workers.
func New(opts Options) *Pool {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		opts:    opts,
		workers: workers,
		logger:  logging.NewComponentLogger(opts.Logger, "workerpool"),
		jobs:    make(chan job),
	}
	p.wg.Add(workers)
	for range workers {
		go p.loop()
	}
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for j := range p.jobs {
		*j.slot = p.process(j.ctx, j.item)
		j.done.Done()
	}
}

// Dispatch runs every item and blocks until all of them have completed.
// Results are returned in input order whatever the completion order. The
// context only carries log fields; in-flight items always finish.
func (p *Pool) Dispatch(ctx context.Context, items []planner.WorkItem) ([]Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	results := make([]Result, len(items))
	var done sync.WaitGroup
	done.Add(len(items))
	for i, item := range items {
		p.jobs <- job{ctx: ctx, item: item, slot: &results[i], done: &done}
	}
	done.Wait()
	return results, nil
}

// Close stops accepting work and waits for the workers to exit. It is safe
// to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) process(ctx context.Context, item planner.WorkItem) (res Result) {
	started := time.Now()
	res = Result{Item: item}
	defer func() {
		if r := recover(); r != nil {
			res.Kind = TransformFailure
			res.Bytes = 0
			res.Err = failure.Wrap(failure.ErrTransform, "worker", "transform", fmt.Sprintf("panic: %v", r), nil)
		}
		res.Duration = time.Since(started)
		p.report(ctx, res)
	}()

	kind, n, err := p.normalize(item)
	res.Kind, res.Bytes, res.Err = kind, n, err
	return res
}

func (p *Pool) normalize(item planner.WorkItem) (Kind, int64, error) {
	img, err := p.opts.Codec.Decode(item.Source)
	if err != nil {
		return DecodeFailure, 0, failure.Wrap(failure.ErrDecode, "worker", "decode", "", err)
	}

	if p.opts.Standardize && p.opts.Standardizer != nil {
		img, err = p.opts.Standardizer.Standardize(img)
		if err != nil {
			return TransformFailure, 0, failure.Wrap(failure.ErrTransform, "worker", "standardize", "", err)
		}
	}

	handle, ok := p.opts.Bank.At(item.Handle)
	if !ok {
		return TransformFailure, 0, failure.Wrap(failure.ErrTransform, "worker", "transform", fmt.Sprintf("no bank handle %d", item.Handle), nil)
	}
	out, err := handle.Transform(img)
	if err != nil {
		return TransformFailure, 0, failure.Wrap(failure.ErrTransform, "worker", "transform", string(handle.Method), err)
	}

	if err := fileutil.EnsureDir(filepath.Dir(item.Dest)); err != nil {
		return WriteFailure, 0, failure.Wrap(failure.ErrWrite, "worker", "ensure dir", "", err)
	}
	n, err := p.opts.Codec.Encode(item.Dest, out)
	if err != nil {
		return WriteFailure, 0, failure.Wrap(failure.ErrWrite, "worker", "encode", "", err)
	}
	return Success, n, nil
}

func (p *Pool) report(ctx context.Context, res Result) {
	logger := logging.WithContext(failure.WithSource(ctx, res.Item.Source), p.logger)
	if res.Kind == Success {
		logger.Debug("patch normalized",
			logging.String(logging.FieldDest, res.Item.Dest),
			logging.Int("handle", res.Item.Handle),
			logging.Duration("elapsed", res.Duration),
		)
		return
	}
	logging.WarnWithContext(logger, "patch skipped", "item_failed",
		logging.String(logging.FieldKind, string(res.Kind)),
		logging.Int("handle", res.Item.Handle),
		logging.Error(res.Err),
		logging.String(logging.FieldErrorHint, "inspect the source patch; a re-run retries it"),
		logging.String(logging.FieldImpact, "patch not written to the destination tree"),
	)
}
