package bank

import (
	"errors"
	"fmt"

	"tilenorm/internal/failure"
	"tilenorm/internal/stain"
)

// Step names the phase of fitting a handle that failed.
type Step string

const (
	StepValidate    Step = "validate"
	StepDecode      Step = "decode"
	StepStandardize Step = "standardize"
	StepFit         Step = "fit"
	StepCanceled    Step = "canceled"
)

// BuildError reports why bank construction aborted. It matches
// failure.ErrBankConstruction, and stain.ErrStandardize when Step is
// StepStandardize.
type BuildError struct {
	Step      Step
	Method    stain.Method
	Reference string
	Err       error
}

func (e *BuildError) Error() string {
	switch {
	case e.Method != "":
		return fmt.Sprintf("build normalizer bank: %s %s with %s: %v", e.Step, e.Reference, e.Method, e.Err)
	case e.Reference != "":
		return fmt.Sprintf("build normalizer bank: %s %s: %v", e.Step, e.Reference, e.Err)
	default:
		return fmt.Sprintf("build normalizer bank: %s: %v", e.Step, e.Err)
	}
}

func (e *BuildError) Unwrap() []error {
	errs := []error{failure.ErrBankConstruction, e.Err}
	if e.Step == StepStandardize && !errors.Is(e.Err, stain.ErrStandardize) {
		errs = append(errs, stain.ErrStandardize)
	}
	return errs
}

// Standardization reports whether the failure came from luminosity
// standardization.
func (e *BuildError) Standardization() bool {
	return e.Step == StepStandardize || errors.Is(e.Err, stain.ErrStandardize)
}
