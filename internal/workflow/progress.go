package workflow

import (
	"time"

	"tilenorm/internal/workerpool"
)

// Progress is the cumulative state reported after each chunk.
type Progress struct {
	Chunk     int
	Chunks    int
	Processed int
	Total     int
	Written   int
	Failed    int
}

// Percent is Processed as a share of Total.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Processed) * 100 / float64(p.Total)
}

// Observer receives progress once the bank is ready and after every chunk.
// Calls come from the goroutine running the Manager.
type Observer interface {
	Started(total, chunks int)
	ChunkDone(Progress)
}

// Summary is the outcome of a run.
type Summary struct {
	RunID          string
	Discovered     int
	AlreadyPresent int
	Planned        int
	Written        int
	Failed         map[workerpool.Kind]int
	PlanErrors     int
	BytesWritten   int64
	Fallback       bool
	ChunkSizes     []int
	Workers        int
	Duration       time.Duration
	Canceled       bool
}

func newSummary() Summary {
	return Summary{Failed: make(map[workerpool.Kind]int)}
}

// FailedTotal counts failed items of every kind plus planning errors.
func (s Summary) FailedTotal() int {
	total := s.PlanErrors
	for _, n := range s.Failed {
		total += n
	}
	return total
}
