// Package workerpool runs the per-patch normalize-and-save procedure on a
// fixed set of long-lived worker goroutines.
//
// Every item is processed behind its own fault boundary: decode, transform
// and write errors, as well as panics, become a Result for that item and
// never reach sibling items or the pool. Dispatch is a barrier that returns
// once every item of the chunk has finished.
package workerpool
