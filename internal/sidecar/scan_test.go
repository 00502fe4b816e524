package sidecar

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestScanDirectory(t *testing.T) {
	t.Run("legacy sidecar is renamed and reported", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		dir := t.TempDir()
		img := writeImage(t, dir, "foo.png", []byte("img"))

		// Legacy convention: foo.screenshotos.json, no .png in the name.
		legacy := filepath.Join(dir, "foo"+Extension)
		if err := os.WriteFile(legacy, []byte("{}"), 0644); err != nil {
			t.Fatal(err)
		}

		entries, err := store.ScanDirectory(dir)
		if err != nil {
			t.Fatalf("ScanDirectory() error = %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("got %d entries, want 1", len(entries))
		}
		e := entries[0]
		if !e.HasSidecar {
			t.Error("HasSidecar = false, want true after migration")
		}
		want := img + Extension
		if e.SidecarPath != want {
			t.Errorf("SidecarPath = %s, want %s", e.SidecarPath, want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Errorf("migrated sidecar should exist: %v", err)
		}
		if _, err := os.Stat(legacy); !os.IsNotExist(err) {
			t.Error("legacy sidecar should be gone")
		}
	})

	t.Run("images without sidecars are reported", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		dir := t.TempDir()
		writeImage(t, dir, "bare.png", []byte("img"))

		entries, err := store.ScanDirectory(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].HasSidecar {
			t.Errorf("entries = %+v", entries)
		}
	})

	t.Run("sidecar files themselves are not listed as images", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		dir := t.TempDir()
		img := writeImage(t, dir, "a.png", []byte("img"))
		if err := store.Create(img, CaptureMetadata{}, nil, "", nil); err != nil {
			t.Fatal(err)
		}
		writeImage(t, dir, "notes.txt", []byte("not an image"))

		entries, err := store.ScanDirectory(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Fatalf("got %d entries, want 1: %+v", len(entries), entries)
		}
		if !entries[0].HasSidecar {
			t.Error("HasSidecar = false, want true")
		}
	})

	t.Run("newest first ordering", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		dir := t.TempDir()
		older := writeImage(t, dir, "older.png", []byte("1"))
		newer := writeImage(t, dir, "newer.png", []byte("2"))

		past := time.Now().Add(-time.Hour)
		if err := os.Chtimes(older, past, past); err != nil {
			t.Fatal(err)
		}

		entries, err := store.ScanDirectory(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("got %d entries, want 2", len(entries))
		}
		if entries[0].ImagePath != newer {
			t.Errorf("first entry = %s, want %s", entries[0].ImagePath, newer)
		}
	})
}
