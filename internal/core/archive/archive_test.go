package archive

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestZip(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	sub := filepath.Join(dir, "sub")
	os.MkdirAll(sub, 0755)
	b := filepath.Join(sub, "a.jpg")
	c := filepath.Join(dir, "c.mp4")
	for _, p := range []string{a, b, c} {
		if err := os.WriteFile(p, []byte(p), 0644); err != nil {
			t.Fatal(err)
		}
	}

	dest := filepath.Join(dir, "bundle.zip")
	if err := Zip(dest, []string{a, b, c}); err != nil {
		t.Fatalf("Zip: %v", err)
	}

	zr, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	want := []string{"1_a.jpg", "a.jpg", "c.mp4"}
	if len(names) != len(want) {
		t.Fatalf("entries = %v; want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("entry %d = %q; want %q", i, names[i], want[i])
		}
	}
}

func TestZipEmpty(t *testing.T) {
	if err := Zip(filepath.Join(t.TempDir(), "x.zip"), nil); err == nil {
		t.Fatal("expected error for empty file list")
	}
}
