package planner_test

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"tilenorm/internal/failure"
	"tilenorm/internal/planner"
	"tilenorm/internal/testsupport"
)

type fixedBank int

func (b fixedBank) Len() int { return int(b) }

func newPlanner(t *testing.T, size int, seed uint64) (*planner.Planner, string, string) {
	t.Helper()
	base := t.TempDir()
	src := filepath.Join(base, "patches")
	dst := filepath.Join(base, "normalized")
	return &planner.Planner{
		SourceRoot: src,
		DestRoot:   dst,
		Bank:       fixedBank(size),
		Rand:       rand.New(rand.NewPCG(seed, seed)),
	}, src, dst
}

func TestMirrorPath(t *testing.T) {
	cases := []struct {
		source, srcRoot, dstRoot string
		want                     string
		wantErr                  bool
	}{
		{"/data/patches/tumor/cc/s1/0_0.png", "/data/patches", "/out", "/out/tumor/cc/s1/0_0.png", false},
		{"/data/patches/a b/c.png", "/data/patches/", "/out/norm", "/out/norm/a b/c.png", false},
		{"/data/patches/x.png", "/data/patches", "/out", "/out/x.png", false},
		{"/data/other/x.png", "/data/patches", "/out", "", true},
		{"/data/patches", "/data/patches", "/out", "", true},
	}
	for _, tc := range cases {
		got, err := planner.MirrorPath(tc.source, tc.srcRoot, tc.dstRoot)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("MirrorPath(%q): expected error, got %q", tc.source, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("MirrorPath(%q): %v", tc.source, err)
		}
		if got != tc.want {
			t.Fatalf("MirrorPath(%q) = %q, want %q", tc.source, got, tc.want)
		}
	}
}

func TestPlanCreatesDirectoryAndAssignsHandle(t *testing.T) {
	p, src, dst := newPlanner(t, 4, 1)
	source := filepath.Join(src, "tumor", "cc", "s1", "0_0.png")
	testsupport.WriteTile(t, source, 1)

	item, ok, err := p.Plan(source)
	if err != nil || !ok {
		t.Fatalf("Plan: ok=%v err=%v", ok, err)
	}
	wantDest := filepath.Join(dst, "tumor", "cc", "s1", "0_0.png")
	if item.Source != source || item.Dest != wantDest {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.Handle < 0 || item.Handle >= 4 {
		t.Fatalf("handle %d out of range", item.Handle)
	}
	if info, err := os.Stat(filepath.Dir(wantDest)); err != nil || !info.IsDir() {
		t.Fatalf("destination directory not created: %v", err)
	}
	if _, err := os.Stat(wantDest); !os.IsNotExist(err) {
		t.Fatalf("planner must not write the destination file: %v", err)
	}
}

func TestPlanSkipsExistingOutput(t *testing.T) {
	p, src, dst := newPlanner(t, 2, 1)
	source := filepath.Join(src, "a", "b", "c", "1.png")
	testsupport.WriteTile(t, source, 1)
	testsupport.WriteFile(t, filepath.Join(dst, "a", "b", "c", "1.png"), []byte("done"))

	item, ok, err := p.Plan(source)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if ok {
		t.Fatalf("expected existing output to be skipped, got %+v", item)
	}
	data, err := os.ReadFile(filepath.Join(dst, "a", "b", "c", "1.png"))
	if err != nil || string(data) != "done" {
		t.Fatalf("existing output must be untouched: %q %v", data, err)
	}
}

func TestPlanCoversEveryHandle(t *testing.T) {
	p, src, _ := newPlanner(t, 5, 42)
	seen := make(map[int]int)
	for i := range 200 {
		item, ok, err := p.Plan(filepath.Join(src, "s", "p"+string(rune('a'+i%26))+".png"))
		if err != nil || !ok {
			t.Fatalf("Plan: ok=%v err=%v", ok, err)
		}
		seen[item.Handle]++
	}
	for h := range 5 {
		if seen[h] == 0 {
			t.Fatalf("handle %d never assigned in 200 draws: %v", h, seen)
		}
	}
}

func TestPlanSameSeedSameAssignments(t *testing.T) {
	a, srcA, _ := newPlanner(t, 6, 1234)
	b, srcB, _ := newPlanner(t, 6, 1234)
	for i := range 20 {
		name := filepath.Join("x", "y", "z", string(rune('a'+i))+".png")
		ia, _, errA := a.Plan(filepath.Join(srcA, name))
		ib, _, errB := b.Plan(filepath.Join(srcB, name))
		if errA != nil || errB != nil {
			t.Fatalf("Plan errors: %v %v", errA, errB)
		}
		if ia.Handle != ib.Handle {
			t.Fatalf("item %d: handles differ %d vs %d", i, ia.Handle, ib.Handle)
		}
	}
}

func TestPlanErrors(t *testing.T) {
	p, _, _ := newPlanner(t, 2, 1)
	if _, _, err := p.Plan("/elsewhere/x.png"); !errors.Is(err, failure.ErrPath) {
		t.Fatalf("expected ErrPath for source outside root, got %v", err)
	}

	empty, src, _ := newPlanner(t, 0, 1)
	if _, _, err := empty.Plan(filepath.Join(src, "x.png")); !errors.Is(err, failure.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for empty bank, got %v", err)
	}
}

func TestPlanChunk(t *testing.T) {
	p, src, dst := newPlanner(t, 3, 7)
	sources := []string{
		filepath.Join(src, "s1", "a.png"),
		filepath.Join(src, "s1", "b.png"),
		"/outside/c.png",
		filepath.Join(src, "s2", "d.png"),
	}
	testsupport.WriteFile(t, filepath.Join(dst, "s1", "b.png"), []byte("done"))

	plan := p.PlanChunk(sources)
	if len(plan.Items) != 2 || plan.Complete != 1 || len(plan.Errors) != 1 {
		t.Fatalf("unexpected plan: items=%d complete=%d errors=%d", len(plan.Items), plan.Complete, len(plan.Errors))
	}
	if plan.Items[0].Source != sources[0] || plan.Items[1].Source != sources[3] {
		t.Fatalf("items out of order: %+v", plan.Items)
	}
	if plan.Errors[0].Source != "/outside/c.png" || !errors.Is(plan.Err(), failure.ErrPath) {
		t.Fatalf("unexpected plan error: %+v", plan.Errors)
	}

	if empty := p.PlanChunk(nil); len(empty.Items) != 0 || empty.Err() != nil {
		t.Fatalf("expected empty plan, got %+v", empty)
	}
}

func TestConcurrentPlannersShareNewDirectory(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "patches")
	dst := filepath.Join(base, "normalized")

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := &planner.Planner{SourceRoot: src, DestRoot: dst, Bank: fixedBank(2), Rand: rand.New(rand.NewPCG(uint64(i), 0))}
			_, _, err := p.Plan(filepath.Join(src, "ann", "sub", "slide", string(rune('a'+i))+".png"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Plan: %v", err)
		}
	}
	entries, err := os.ReadDir(filepath.Join(dst, "ann", "sub"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "slide" {
		t.Fatalf("expected a single slide directory, got %v", entries)
	}
}
