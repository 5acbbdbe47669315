package workerpool

import (
	"time"

	"tilenorm/internal/failure"
	"tilenorm/internal/planner"
)

// Kind classifies the outcome of one item.
type Kind string

const (
	Success          Kind = "success"
	DecodeFailure    Kind = "decode_failure"
	TransformFailure Kind = "transform_failure"
	WriteFailure     Kind = "write_failure"
)

// Kinds lists every outcome in reporting order.
var Kinds = []Kind{Success, DecodeFailure, TransformFailure, WriteFailure}

// Failed reports whether k is a failure kind.
func (k Kind) Failed() bool {
	return k != Success
}

// Result is the outcome of one work item.
type Result struct {
	Item     planner.WorkItem
	Kind     Kind
	Err      error
	Duration time.Duration
	// Bytes is the encoded output size on success.
	Bytes int64
}

// ErrorKind maps the result to the shared failure taxonomy.
func (r Result) ErrorKind() failure.Kind {
	return failure.KindOf(r.Err)
}
