package transfer

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

// writeZip builds an archive at path from member name -> content.
func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	w := zip.NewWriter(out)
	for name, content := range members {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create member %q: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write member %q: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("close zip file: %v", err)
	}
}

func TestExtractZip_FlattensNestedPaths(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "scene.zip")
	writeZip(t, archive, map[string]string{
		"GRANULE/L1C/IMG_DATA/B02.jp2": "raster-bytes",
		"MTD_MSIL1C.xml":               "<xml/>",
	})

	extracted, err := extractZip(archive, dir)
	if err != nil {
		t.Fatalf("extractZip() failed: %v", err)
	}
	if len(extracted) != 2 {
		t.Fatalf("extracted %d members, want 2", len(extracted))
	}

	names := map[string]bool{}
	for _, p := range extracted {
		names[filepath.Base(p)] = true
		if filepath.Dir(p) != dir {
			t.Errorf("member %q not flattened into staging", p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("member %q missing on disk: %v", p, err)
		}
	}
	if !names["B02.jp2"] || !names["MTD_MSIL1C.xml"] {
		t.Errorf("extracted names = %v", names)
	}
}

func TestExtractZip_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.zip")
	writeZip(t, archive, map[string]string{
		"../outside.jp2": "nope",
	})

	if _, err := extractZip(archive, dir); err == nil {
		t.Fatal("expected error for path traversal member")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "outside.jp2")); !os.IsNotExist(err) {
		t.Error("traversal member must not be written outside staging")
	}
}

func TestExtractZip_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "dirs.zip")

	out, err := os.Create(archive)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	w := zip.NewWriter(out)
	if _, err := w.Create("GRANULE/"); err != nil {
		t.Fatalf("create dir entry: %v", err)
	}
	f, err := w.Create("GRANULE/B02.jp2")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	f.Write([]byte("raster"))
	w.Close()
	out.Close()

	extracted, err := extractZip(archive, dir)
	if err != nil {
		t.Fatalf("extractZip() failed: %v", err)
	}
	if len(extracted) != 1 || filepath.Base(extracted[0]) != "B02.jp2" {
		t.Errorf("extracted = %v, want just B02.jp2", extracted)
	}
}

func TestExtractZip_NotAnArchive(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "bogus.zip")
	if err := os.WriteFile(bogus, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := extractZip(bogus, dir); err == nil {
		t.Fatal("expected error for a corrupt archive")
	}
}
