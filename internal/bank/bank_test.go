package bank_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tilenorm/internal/bank"
	"tilenorm/internal/failure"
	"tilenorm/internal/logging"
	"tilenorm/internal/stain"
	"tilenorm/internal/testsupport"
)

func writeRefs(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	refs := make([]string, n)
	for i := range refs {
		refs[i] = filepath.Join(dir, "ref-"+string(rune('a'+i))+".png")
		testsupport.WriteTile(t, refs[i], uint64(i+1))
	}
	return refs
}

func TestBuildSizeAndMethodMajorOrder(t *testing.T) {
	refs := writeRefs(t, 2)
	// Duplicate references are kept and weight the assignment.
	references := []string{refs[0], refs[1], refs[0]}
	methods := []stain.Method{stain.Macenko, stain.Reinhard}
	fitter := &testsupport.FakeFitter{}

	b, err := bank.Build(context.Background(), bank.Spec{Methods: methods, References: references}, fitter)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if b.Len() != 6 {
		t.Fatalf("expected 6 handles, got %d", b.Len())
	}
	for i, h := range b.Handles() {
		wantMethod := methods[i/len(references)]
		wantRef := references[i%len(references)]
		if h.Index != i || h.Method != wantMethod || h.Reference != wantRef {
			t.Fatalf("handle %d = {%d %s %s}, want {%d %s %s}", i, h.Index, h.Method, h.Reference, i, wantMethod, wantRef)
		}
		if h.Transformer == nil {
			t.Fatalf("handle %d has no transformer", i)
		}
	}
	if got := len(fitter.Decodes()); got != 2 {
		t.Fatalf("expected each distinct reference decoded once, got %d decodes", got)
	}
	if fitter.Standardizes() != 0 {
		t.Fatal("standardize must not run when disabled")
	}
	if b.Standardized() {
		t.Fatal("bank should not report standardization")
	}
	if _, ok := b.At(6); ok {
		t.Fatal("At out of range should report false")
	}
	if h, ok := b.At(4); !ok || h.Method != stain.Reinhard {
		t.Fatalf("At(4) = %+v, %v", h, ok)
	}
}

func TestBuildStandardizesEachReferenceOnce(t *testing.T) {
	refs := writeRefs(t, 2)
	fitter := &testsupport.FakeFitter{}
	spec := bank.Spec{Methods: []stain.Method{stain.Vahadane, stain.Macenko, stain.Reinhard}, References: refs, Standardize: true}

	b, err := bank.Build(context.Background(), spec, fitter)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !b.Standardized() {
		t.Fatal("expected standardized bank")
	}
	if fitter.Standardizes() != 2 {
		t.Fatalf("expected 2 standardize calls, got %d", fitter.Standardizes())
	}
	fits := fitter.Fits()
	if len(fits) != 6 {
		t.Fatalf("expected 6 fits, got %d", len(fits))
	}
	for _, call := range fits {
		if !call.Standardized {
			t.Fatalf("fit %s received an unstandardized reference", call.Method)
		}
	}
}

func TestBuildFailuresAbortWithoutPartialBank(t *testing.T) {
	refs := writeRefs(t, 2)
	boom := errors.New("boom")

	cases := []struct {
		name            string
		fitter          *testsupport.FakeFitter
		standardize     bool
		step            bank.Step
		standardization bool
	}{
		{"decode", &testsupport.FakeFitter{DecodeErr: map[string]error{refs[1]: boom}}, false, bank.StepDecode, false},
		{"standardize", &testsupport.FakeFitter{StandardizeErr: boom}, true, bank.StepStandardize, true},
		{"fit", &testsupport.FakeFitter{FitErr: map[stain.Method]error{stain.Macenko: boom}}, false, bank.StepFit, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := bank.Spec{Methods: []stain.Method{stain.Reinhard, stain.Macenko}, References: refs, Standardize: tc.standardize}
			b, err := bank.Build(context.Background(), spec, tc.fitter)
			if b != nil {
				t.Fatal("expected no bank on failure")
			}
			if !errors.Is(err, failure.ErrBankConstruction) {
				t.Fatalf("expected ErrBankConstruction, got %v", err)
			}
			if !errors.Is(err, boom) {
				t.Fatalf("expected underlying cause, got %v", err)
			}
			if got := errors.Is(err, stain.ErrStandardize); got != tc.standardization {
				t.Fatalf("errors.Is(err, ErrStandardize) = %v, want %v", got, tc.standardization)
			}
			var be *bank.BuildError
			if !errors.As(err, &be) || be.Step != tc.step {
				t.Fatalf("expected BuildError at step %s, got %#v", tc.step, err)
			}
			if failure.KindOf(err) != failure.KindBankConstruction {
				t.Fatalf("unexpected kind %s", failure.KindOf(err))
			}
		})
	}
}

func TestBuildValidatesSpec(t *testing.T) {
	refs := writeRefs(t, 1)
	fitter := &testsupport.FakeFitter{}
	specs := []bank.Spec{
		{References: refs},
		{Methods: []stain.Method{stain.Reinhard}},
	}
	for _, spec := range specs {
		if _, err := bank.Build(context.Background(), spec, fitter); !errors.Is(err, failure.ErrBankConstruction) {
			t.Fatalf("expected ErrBankConstruction for %+v, got %v", spec, err)
		}
	}
}

func TestBuildCanceledContext(t *testing.T) {
	refs := writeRefs(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := bank.Build(ctx, bank.Spec{Methods: []stain.Method{stain.Reinhard}, References: refs}, &testsupport.FakeFitter{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBuildWithFallbackRetriesWithoutStandardization(t *testing.T) {
	refs := writeRefs(t, 2)
	fitter := &testsupport.FakeFitter{StandardizeErr: stain.ErrStandardize}
	spec := bank.Spec{Methods: []stain.Method{stain.Macenko, stain.Reinhard}, References: refs, Standardize: true}

	b, fellBack, err := bank.BuildWithFallback(context.Background(), spec, fitter, logging.NewNop())
	if err != nil {
		t.Fatalf("BuildWithFallback: %v", err)
	}
	if !fellBack {
		t.Fatal("expected fallback to fire")
	}
	if b.Len() != 4 || b.Standardized() {
		t.Fatalf("unexpected bank: len=%d standardized=%v", b.Len(), b.Standardized())
	}
	for _, call := range fitter.Fits() {
		if call.Standardized {
			t.Fatal("retry must fit unstandardized references")
		}
	}
}

func TestBuildWithFallbackNoRetryNeeded(t *testing.T) {
	refs := writeRefs(t, 1)
	b, fellBack, err := bank.BuildWithFallback(context.Background(),
		bank.Spec{Methods: []stain.Method{stain.Reinhard}, References: refs, Standardize: true},
		&testsupport.FakeFitter{}, nil)
	if err != nil || fellBack || !b.Standardized() {
		t.Fatalf("unexpected result: fellBack=%v err=%v", fellBack, err)
	}
}

func TestBuildWithFallbackFatalCases(t *testing.T) {
	refs := writeRefs(t, 1)
	boom := errors.New("fit exploded")

	t.Run("non-standardization failure is fatal immediately", func(t *testing.T) {
		fitter := &testsupport.FakeFitter{FitErr: map[stain.Method]error{stain.Reinhard: boom}}
		spec := bank.Spec{Methods: []stain.Method{stain.Reinhard}, References: refs, Standardize: true}
		_, fellBack, err := bank.BuildWithFallback(context.Background(), spec, fitter, logging.NewNop())
		if !errors.Is(err, boom) || fellBack {
			t.Fatalf("expected immediate fatal error, got fellBack=%v err=%v", fellBack, err)
		}
		if got := len(fitter.Fits()); got != 1 {
			t.Fatalf("expected a single attempt, got %d fits", got)
		}
	})

	t.Run("retry failure is fatal", func(t *testing.T) {
		fitter := &testsupport.FakeFitter{
			StandardizeErr: stain.ErrStandardize,
			FitErr:         map[stain.Method]error{stain.Reinhard: boom},
		}
		spec := bank.Spec{Methods: []stain.Method{stain.Reinhard}, References: refs, Standardize: true}
		b, fellBack, err := bank.BuildWithFallback(context.Background(), spec, fitter, logging.NewNop())
		if b != nil || !fellBack || !errors.Is(err, failure.ErrBankConstruction) || !errors.Is(err, boom) {
			t.Fatalf("unexpected result: bank=%v fellBack=%v err=%v", b, fellBack, err)
		}
	})
}
