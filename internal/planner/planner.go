// Package planner turns candidate patches into work items. It mirrors each
// source path into the destination tree, creates the destination
// directory, skips patches whose output already exists and assigns every
// remaining patch a uniformly random bank handle.
package planner

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"tilenorm/internal/failure"
	"tilenorm/internal/fileutil"
)

// WorkItem is a serializable task descriptor: one source patch, its
// mirrored destination and the index of the bank handle to apply.
type WorkItem struct {
	Source string
	Dest   string
	Handle int
}

// BankSize is the part of the bank the planner needs.
type BankSize interface {
	Len() int
}

// Planner plans work for a single run. It is not safe for concurrent use
// because Rand is not.
type Planner struct {
	SourceRoot string
	DestRoot   string
	Bank       BankSize
	Rand       *rand.Rand
}

// MirrorPath swaps the sourceRoot prefix of source for destRoot, keeping
// the relative remainder unchanged.
func MirrorPath(source, sourceRoot, destRoot string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(sourceRoot), filepath.Clean(source))
	if err != nil {
		return "", fmt.Errorf("mirror %s: %w", source, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("mirror %s: not below %s", source, sourceRoot)
	}
	return filepath.Join(destRoot, rel), nil
}

// Plan decides whether source needs work. It returns ok == false when the
// destination already exists. The destination directory is created either
// way; creation is idempotent and tolerates concurrent creators.
func (p *Planner) Plan(source string) (WorkItem, bool, error) {
	if p.Bank == nil || p.Bank.Len() == 0 {
		return WorkItem{}, false, failure.Wrap(failure.ErrConfiguration, "plan", "assign", "empty normalizer bank", nil)
	}
	if p.Rand == nil {
		return WorkItem{}, false, failure.Wrap(failure.ErrConfiguration, "plan", "assign", "no random source", nil)
	}

	dest, err := MirrorPath(source, p.SourceRoot, p.DestRoot)
	if err != nil {
		return WorkItem{}, false, failure.Wrap(failure.ErrPath, "plan", "mirror", "", err)
	}
	if err := fileutil.EnsureDir(filepath.Dir(dest)); err != nil {
		return WorkItem{}, false, failure.Wrap(failure.ErrWrite, "plan", "ensure dir", filepath.Dir(dest), err)
	}
	exists, err := fileutil.FileExists(dest)
	if err != nil {
		return WorkItem{}, false, failure.Wrap(failure.ErrPath, "plan", "stat dest", dest, err)
	}
	if exists {
		return WorkItem{}, false, nil
	}
	return WorkItem{Source: source, Dest: dest, Handle: p.Rand.IntN(p.Bank.Len())}, true, nil
}

// PlanError pairs a source with the reason it could not be planned.
type PlanError struct {
	Source string
	Err    error
}

func (e PlanError) Error() string {
	return fmt.Sprintf("plan %s: %v", e.Source, e.Err)
}

func (e PlanError) Unwrap() error {
	return e.Err
}

// ChunkPlan is the outcome of planning one chunk of candidates.
type ChunkPlan struct {
	Items    []WorkItem
	Complete int
	Errors   []PlanError
}

// PlanChunk plans every source in order. Planning errors are collected and
// do not stop the chunk.
func (p *Planner) PlanChunk(sources []string) ChunkPlan {
	var out ChunkPlan
	for _, source := range sources {
		item, ok, err := p.Plan(source)
		switch {
		case err != nil:
			out.Errors = append(out.Errors, PlanError{Source: source, Err: err})
		case ok:
			out.Items = append(out.Items, item)
		default:
			out.Complete++
		}
	}
	return out
}

// Err joins the chunk's planning errors, or returns nil.
func (c ChunkPlan) Err() error {
	if len(c.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(c.Errors))
	for i, e := range c.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}
