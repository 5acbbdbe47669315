package bank

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"tilenorm/internal/logging"
	"tilenorm/internal/stain"
)

// Build fits one handle per (method, reference) pair. Each distinct
// reference is decoded, and standardized when requested, exactly once and
// shared across methods. Any failure aborts construction; no partial bank
// is ever returned.
func Build(ctx context.Context, spec Spec, fitter Fitter) (*Bank, error) {
	if len(spec.Methods) == 0 {
		return nil, &BuildError{Step: StepValidate, Err: errors.New("no normalization methods")}
	}
	if len(spec.References) == 0 {
		return nil, &BuildError{Step: StepValidate, Err: errors.New("no reference images")}
	}
	if fitter == nil {
		return nil, &BuildError{Step: StepValidate, Err: errors.New("nil fitter")}
	}

	limit := spec.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	// Duplicate reference paths share one prepared image.
	slot := make(map[string]int, len(spec.References))
	var distinct []string
	for _, ref := range spec.References {
		if _, ok := slot[ref]; !ok {
			slot[ref] = len(distinct)
			distinct = append(distinct, ref)
		}
	}

	prepared := make([]image.Image, len(distinct))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, ref := range distinct {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := fitter.Decode(ref)
			if err != nil {
				return &BuildError{Step: StepDecode, Reference: ref, Err: err}
			}
			if spec.Standardize {
				img, err = fitter.Standardize(img)
				if err != nil {
					return &BuildError{Step: StepStandardize, Reference: ref, Err: err}
				}
			}
			prepared[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, asBuildError(err)
	}

	handles := make([]Handle, spec.Size())
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for m, method := range spec.Methods {
		for r, ref := range spec.References {
			index := m*len(spec.References) + r
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				tr, err := fitter.Fit(method, prepared[slot[ref]])
				if err != nil {
					return &BuildError{Step: StepFit, Method: method, Reference: ref, Err: err}
				}
				if tr == nil {
					return &BuildError{Step: StepFit, Method: method, Reference: ref, Err: errors.New("fitter returned no transform")}
				}
				handles[index] = Handle{Index: index, Method: method, Reference: ref, Transformer: tr}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, asBuildError(err)
	}

	return &Bank{handles: handles, standardized: spec.Standardize}, nil
}

func asBuildError(err error) error {
	var be *BuildError
	if errors.As(err, &be) {
		return be
	}
	return &BuildError{Step: StepCanceled, Err: err}
}

// BuildWithFallback builds the bank and, when the first attempt fails
// because of luminosity standardization, retries exactly once without it.
// The boolean reports whether the fallback fired; callers must then disable
// per-item standardization for the rest of the run. Any other failure, or a
// failure of the retry, is returned as is.
func BuildWithFallback(ctx context.Context, spec Spec, fitter Fitter, logger *slog.Logger) (*Bank, bool, error) {
	logger = logging.NewComponentLogger(logger, "bank")
	started := time.Now()

	b, err := Build(ctx, spec, fitter)
	if err == nil {
		logBuilt(logger, b, started)
		return b, false, nil
	}
	var be *BuildError
	if !spec.Standardize || !errors.As(err, &be) || !be.Standardization() {
		return nil, false, err
	}

	logging.WarnWithContext(logger, "luminosity standardization failed; rebuilding bank without it",
		"bank_standardize_fallback",
		logging.String(logging.FieldReference, be.Reference),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the reference images for blank or black regions"),
		logging.String(logging.FieldImpact, "patches are normalized without luminosity standardization"),
	)

	spec.Standardize = false
	started = time.Now()
	b, err = Build(ctx, spec, fitter)
	if err != nil {
		return nil, true, err
	}
	logBuilt(logger, b, started)
	return b, true, nil
}

func logBuilt(logger *slog.Logger, b *Bank, started time.Time) {
	methods := make(map[stain.Method]struct{})
	for _, h := range b.handles {
		methods[h.Method] = struct{}{}
	}
	logger.Info("normalizer bank ready",
		logging.Int("handles", b.Len()),
		logging.Int("methods", len(methods)),
		logging.Bool("standardized", b.Standardized()),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "bank_ready"),
	)
}
