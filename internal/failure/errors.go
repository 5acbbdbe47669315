package failure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPath             = errors.New("path error")
	ErrBankConstruction = errors.New("bank construction error")
	ErrDecode           = errors.New("decode failure")
	ErrTransform        = errors.New("transform failure")
	ErrWrite            = errors.New("write failure")
	ErrLocked           = errors.New("destination locked")
	ErrConfiguration    = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrConfiguration
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind names an error class for ledger rows and structured log fields.
type Kind string

const (
	KindNone             Kind = ""
	KindPath             Kind = "path"
	KindBankConstruction Kind = "bank_construction"
	KindDecode           Kind = "decode"
	KindTransform        Kind = "transform"
	KindWrite            Kind = "write"
	KindLocked           Kind = "locked"
	KindConfiguration    Kind = "configuration"
	KindUnknown          Kind = "unknown"
)

// KindOf maps err to the first matching marker. A nil error yields KindNone.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPath):
		return KindPath
	case errors.Is(err, ErrBankConstruction):
		return KindBankConstruction
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrTransform):
		return KindTransform
	case errors.Is(err, ErrWrite):
		return KindWrite
	case errors.Is(err, ErrLocked):
		return KindLocked
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindUnknown
	}
}

// IsFatal reports whether err belongs to a class that must stop the run.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindPath, KindBankConstruction, KindLocked, KindConfiguration:
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
