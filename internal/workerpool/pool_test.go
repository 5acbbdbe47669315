package workerpool_test

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"tilenorm/internal/bank"
	"tilenorm/internal/failure"
	"tilenorm/internal/logging"
	"tilenorm/internal/planner"
	"tilenorm/internal/stain"
	"tilenorm/internal/testsupport"
	"tilenorm/internal/workerpool"
)

const (
	tileSize   = 16
	panicWidth = 7
	failWidth  = 9
)

type fixture struct {
	src, dst string
	bank     *bank.Bank
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	ref := filepath.Join(base, "ref.png")
	testsupport.WriteTile(t, ref, 99)
	fitter := &testsupport.FakeFitter{
		Transformer: &testsupport.FakeTransformer{PanicWidth: panicWidth, FailWidth: failWidth},
	}
	b, err := bank.Build(context.Background(), bank.Spec{
		Methods:    []stain.Method{stain.Reinhard, stain.Macenko},
		References: []string{ref},
	}, fitter)
	if err != nil {
		t.Fatalf("bank.Build: %v", err)
	}
	return fixture{src: filepath.Join(base, "patches"), dst: filepath.Join(base, "normalized"), bank: b}
}

func (f fixture) item(t *testing.T, name string, width int, handle int) planner.WorkItem {
	t.Helper()
	source := filepath.Join(f.src, "a", "b", "c", name)
	testsupport.WriteImage(t, source, testsupport.TissueImage(width, tileSize, uint64(len(name))))
	return planner.WorkItem{Source: source, Dest: filepath.Join(f.dst, "a", "b", "c", name), Handle: handle}
}

func newPool(f fixture, opts workerpool.Options) *workerpool.Pool {
	opts.Bank = f.bank
	if opts.Codec == nil {
		opts.Codec = stain.NewLibrary(0)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return workerpool.New(opts)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestDispatchWritesOutputsInInputOrder(t *testing.T) {
	f := newFixture(t)
	pool := newPool(f, workerpool.Options{Workers: 3})
	defer pool.Close()

	var batch []planner.WorkItem
	for i, name := range []string{"0_0.png", "0_1.png", "1_0.png"} {
		batch = append(batch, f.item(t, name, tileSize, i%2))
	}
	results, err := pool.Dispatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Item != batch[i] {
			t.Fatalf("result %d out of order: %+v", i, res.Item)
		}
		if res.Kind != workerpool.Success || res.Err != nil {
			t.Fatalf("result %d failed: %s %v", i, res.Kind, res.Err)
		}
		if res.Bytes <= 0 {
			t.Fatalf("result %d reported no bytes", i)
		}
		out, err := stain.Load(res.Item.Dest)
		if err != nil {
			t.Fatalf("load output: %v", err)
		}
		if out.Bounds().Dx() != tileSize {
			t.Fatalf("unexpected output bounds %v", out.Bounds())
		}
	}
}

func TestDispatchIsolatesFaults(t *testing.T) {
	f := newFixture(t)
	pool := newPool(f, workerpool.Options{Workers: 2})
	defer pool.Close()

	good := f.item(t, "good.png", tileSize, 0)
	corrupt := planner.WorkItem{
		Source: filepath.Join(f.src, "a", "b", "c", "corrupt.png"),
		Dest:   filepath.Join(f.dst, "a", "b", "c", "corrupt.png"),
	}
	testsupport.WriteFile(t, corrupt.Source, []byte("not an image"))
	panics := f.item(t, "panic.png", panicWidth, 1)
	fails := f.item(t, "fails.png", failWidth, 0)
	badHandle := f.item(t, "badhandle.png", tileSize, 42)

	// Parent of dest is a regular file, so the write step fails.
	blocked := f.item(t, "blocked.png", tileSize, 0)
	testsupport.WriteFile(t, filepath.Join(f.dst, "blocker"), []byte("x"))
	blocked.Dest = filepath.Join(f.dst, "blocker", "blocked.png")

	batch := []planner.WorkItem{corrupt, good, panics, fails, badHandle, blocked}
	results, err := pool.Dispatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	want := []struct {
		kind   workerpool.Kind
		marker error
	}{
		{workerpool.DecodeFailure, failure.ErrDecode},
		{workerpool.Success, nil},
		{workerpool.TransformFailure, failure.ErrTransform},
		{workerpool.TransformFailure, failure.ErrTransform},
		{workerpool.TransformFailure, failure.ErrTransform},
		{workerpool.WriteFailure, failure.ErrWrite},
	}
	for i, res := range results {
		if res.Kind != want[i].kind {
			t.Fatalf("item %d (%s): kind %s, want %s (err %v)", i, filepath.Base(res.Item.Source), res.Kind, want[i].kind, res.Err)
		}
		if want[i].marker != nil && !errors.Is(res.Err, want[i].marker) {
			t.Fatalf("item %d: expected %v, got %v", i, want[i].marker, res.Err)
		}
		if res.Kind.Failed() && exists(res.Item.Dest) {
			t.Fatalf("item %d: failed item must not leave output", i)
		}
	}
	if !exists(good.Dest) {
		t.Fatal("healthy sibling was not written")
	}

	// The pool keeps working after faults.
	later := f.item(t, "later.png", tileSize, 1)
	results, err = pool.Dispatch(context.Background(), []planner.WorkItem{later})
	if err != nil || results[0].Kind != workerpool.Success {
		t.Fatalf("later chunk failed: %+v %v", results, err)
	}
}

func TestDispatchStandardization(t *testing.T) {
	f := newFixture(t)

	t.Run("enabled failure is a transform failure", func(t *testing.T) {
		std := &testsupport.FailingStandardizer{}
		pool := newPool(f, workerpool.Options{Workers: 1, Standardize: true, Standardizer: std})
		defer pool.Close()
		item := f.item(t, "std-fail.png", tileSize, 0)
		results, err := pool.Dispatch(context.Background(), []planner.WorkItem{item})
		if err != nil {
			t.Fatal(err)
		}
		if results[0].Kind != workerpool.TransformFailure || !errors.Is(results[0].Err, stain.ErrStandardize) {
			t.Fatalf("unexpected result %+v", results[0])
		}
		if std.Calls() != 1 {
			t.Fatalf("expected one standardize call, got %d", std.Calls())
		}
	})

	t.Run("disabled skips the standardizer", func(t *testing.T) {
		std := &testsupport.FailingStandardizer{}
		pool := newPool(f, workerpool.Options{Workers: 1, Standardize: false, Standardizer: std})
		defer pool.Close()
		item := f.item(t, "std-off.png", tileSize, 0)
		results, err := pool.Dispatch(context.Background(), []planner.WorkItem{item})
		if err != nil {
			t.Fatal(err)
		}
		if results[0].Kind != workerpool.Success {
			t.Fatalf("unexpected result %+v", results[0])
		}
		if std.Calls() != 0 {
			t.Fatalf("standardizer called %d times while disabled", std.Calls())
		}
	})
}

func TestDispatchEmptyChunk(t *testing.T) {
	f := newFixture(t)
	pool := newPool(f, workerpool.Options{Workers: 2})
	defer pool.Close()
	results, err := pool.Dispatch(context.Background(), nil)
	if err != nil || len(results) != 0 {
		t.Fatalf("expected empty results, got %v %v", results, err)
	}
}

func TestCloseIsIdempotentAndRejectsWork(t *testing.T) {
	f := newFixture(t)
	pool := newPool(f, workerpool.Options{})
	if pool.Workers() < 1 {
		t.Fatalf("expected at least one worker, got %d", pool.Workers())
	}
	pool.Close()
	pool.Close()
	if _, err := pool.Dispatch(context.Background(), []planner.WorkItem{{}}); !errors.Is(err, workerpool.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

type recordingCodec struct {
	stain.Library
	decoded chan string
}

func (c *recordingCodec) Decode(path string) (image.Image, error) {
	c.decoded <- path
	return c.Library.Decode(path)
}

func TestDispatchBarrier(t *testing.T) {
	f := newFixture(t)
	codec := &recordingCodec{decoded: make(chan string, 8)}
	pool := newPool(f, workerpool.Options{Workers: 4, Codec: codec})
	defer pool.Close()

	var batch []planner.WorkItem
	for _, name := range []string{"w.png", "x.png", "y.png", "z.png"} {
		batch = append(batch, f.item(t, name, tileSize, 0))
	}
	if _, err := pool.Dispatch(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
	// Every item was decoded before Dispatch returned.
	if len(codec.decoded) != len(batch) {
		t.Fatalf("expected %d decodes before return, got %d", len(batch), len(codec.decoded))
	}
	for _, item := range batch {
		if !exists(item.Dest) {
			t.Fatalf("missing output %s after barrier", item.Dest)
		}
	}
}
