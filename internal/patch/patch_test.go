package patch_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"tilenorm/internal/failure"
	"tilenorm/internal/patch"
)

func touch(t *testing.T, root string, rel ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{root}, rel...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParsePattern(t *testing.T) {
	cases := []struct {
		in     string
		depth  int
		labels []string
	}{
		{"annotation/subtype/slide", 3, []string{"annotation", "subtype", "slide"}},
		{"subtype/slide", 2, []string{"subtype", "slide"}},
		{"slide", 1, []string{"slide"}},
		{"a//b", 3, []string{"a", "", "b"}},
		{"/a/", 3, []string{"", "a", ""}},
		{"slide/slide", 2, []string{"slide", "slide"}},
		{"", 0, nil},
		{"'", 0, nil},
	}
	for _, tc := range cases {
		p := patch.ParsePattern(tc.in)
		if p.Depth() != tc.depth {
			t.Fatalf("ParsePattern(%q).Depth() = %d, want %d", tc.in, p.Depth(), tc.depth)
		}
		if !slices.Equal(p.Labels(), tc.labels) {
			t.Fatalf("ParsePattern(%q).Labels() = %v, want %v", tc.in, p.Labels(), tc.labels)
		}
	}
}

func TestEnumerateFixedDepth(t *testing.T) {
	root := t.TempDir()
	want := []string{
		touch(t, root, "tumor", "clear_cell", "slide1", "0_0.png"),
		touch(t, root, "tumor", "clear_cell", "slide1", "0_1.PNG"),
		touch(t, root, "stroma", "serous", "slide9", "5_5.png"),
	}
	// Wrong depth.
	touch(t, root, "tumor", "clear_cell", "shallow.png")
	touch(t, root, "tumor", "clear_cell", "slide1", "deeper", "x.png")
	// Wrong extension.
	touch(t, root, "tumor", "clear_cell", "slide1", "notes.txt")
	touch(t, root, "tumor", "clear_cell", "slide1", "image.jpg")
	// Hidden entries.
	touch(t, root, "tumor", "clear_cell", "slide1", ".hidden.png")
	touch(t, root, ".cache", "clear_cell", "slide1", "a.png")
	// A directory named like a patch.
	if err := os.MkdirAll(filepath.Join(root, "tumor", "clear_cell", "slide1", "dir.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := patch.Enumerate(root, 3, []string{"png"})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Fatalf("Enumerate mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestEnumerateExtensionsAndShallowDepth(t *testing.T) {
	root := t.TempDir()
	a := touch(t, root, "a.png")
	b := touch(t, root, "b.JPEG")
	touch(t, root, "sub", "c.png")

	got, err := patch.Enumerate(root, 0, []string{".png", "jpeg"})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	slices.Sort(got)
	if !slices.Equal(got, []string{a, b}) {
		t.Fatalf("unexpected result %v", got)
	}
}

func TestEnumerateEmptyTree(t *testing.T) {
	got, err := patch.Enumerate(t.TempDir(), 3, []string{"png"})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}

func TestEnumerateBadRoot(t *testing.T) {
	dir := t.TempDir()
	file := touch(t, dir, "file.png")

	for _, root := range []string{filepath.Join(dir, "missing"), file} {
		_, err := patch.Enumerate(root, 1, []string{"png"})
		if !errors.Is(err, failure.ErrPath) {
			t.Fatalf("Enumerate(%q): expected ErrPath, got %v", root, err)
		}
		var pathErr *patch.PathError
		if !errors.As(err, &pathErr) || pathErr.Path != root {
			t.Fatalf("Enumerate(%q): expected *PathError for root, got %#v", root, err)
		}
	}

	_, err := patch.Enumerate(filepath.Join(dir, "missing"), 1, nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected underlying not-exist cause, got %v", err)
	}
}
