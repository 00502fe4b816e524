package storage

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/screenshotos/screenshotos/internal/sidecar"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name     string
		template string
		format   string
		want     string
	}{
		{"default template", "screenshot-%TIMESTAMP%", "png", "screenshot-2026-09-01T123045123Z.png"},
		{"no placeholder", "fixed-name", "png", "fixed-name.png"},
		{"dotted format", "s-%TIMESTAMP%", ".jpg", "s-2026-09-01T123045123Z.jpg"},
	}

	at := time.Date(2026, 9, 1, 12, 30, 45, 123_000_000, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filename(tt.template, tt.format, at)
			if got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))

	t.Run("png magic bytes", func(t *testing.T) {
		data, err := Encode(img, "png")
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if len(data) < 8 || data[1] != 'P' || data[2] != 'N' || data[3] != 'G' {
			t.Error("output is not a PNG")
		}
	})

	t.Run("jpeg magic bytes", func(t *testing.T) {
		data, err := Encode(img, "jpg")
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if len(data) < 2 || data[0] != 0xff || data[1] != 0xd8 {
			t.Error("output is not a JPEG")
		}
	})

	t.Run("unknown format fails", func(t *testing.T) {
		if _, err := Encode(img, "tiff"); err == nil {
			t.Error("Encode() expected error for unsupported format")
		}
	})
}

func TestWriteAtomic(t *testing.T) {
	t.Run("writes file and leaves no temp", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "sub", "img.png")

		if err := WriteAtomic(path, []byte("data")); err != nil {
			t.Fatalf("WriteAtomic() error = %v", err)
		}
		got, err := os.ReadFile(path)
		if err != nil || string(got) != "data" {
			t.Errorf("read back %q, err %v", got, err)
		}
		if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
			t.Error("temp file should not remain")
		}
	})
}

func TestLibrary(t *testing.T) {
	setup := func(t *testing.T) (*Library, *sidecar.Store, string) {
		t.Helper()
		root := t.TempDir()
		store := sidecar.NewStore()
		lib := NewLibrary(
			filepath.Join(root, "shots"),
			filepath.Join(root, "archive"),
			filepath.Join(root, "trash"),
			store,
		)
		return lib, store, root
	}

	newImage := func(t *testing.T, lib *Library, store *sidecar.Store) string {
		t.Helper()
		img := filepath.Join(lib.saveDir, "shot.png")
		if err := WriteAtomic(img, []byte("pixels")); err != nil {
			t.Fatal(err)
		}
		if err := store.Create(img, sidecar.CaptureMetadata{}, nil, "", nil); err != nil {
			t.Fatal(err)
		}
		return img
	}

	t.Run("archive moves image and sidecar and marks record", func(t *testing.T) {
		t.Parallel()
		lib, store, _ := setup(t)
		img := newImage(t, lib, store)

		dst, err := lib.Archive(img)
		if err != nil {
			t.Fatalf("Archive() error = %v", err)
		}
		if _, err := os.Stat(dst); err != nil {
			t.Errorf("archived image missing: %v", err)
		}
		if _, err := os.Stat(img); !os.IsNotExist(err) {
			t.Error("original image should be gone")
		}

		rec, err := store.Load(dst)
		if err != nil || rec == nil {
			t.Fatalf("Load(archived) = %v, %v", rec, err)
		}
		if !rec.IsArchived || rec.ArchivedFromPath != img {
			t.Errorf("archive marks wrong: %+v", rec)
		}
	})

	t.Run("restore returns image to original location", func(t *testing.T) {
		t.Parallel()
		lib, store, _ := setup(t)
		img := newImage(t, lib, store)

		archived, err := lib.Archive(img)
		if err != nil {
			t.Fatal(err)
		}
		restored, err := lib.Restore(archived)
		if err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if restored != img {
			t.Errorf("restored to %s, want %s", restored, img)
		}
		rec, _ := store.Load(restored)
		if rec == nil || rec.IsArchived {
			t.Errorf("record should be unarchived: %+v", rec)
		}
	})

	t.Run("trash keeps bytes", func(t *testing.T) {
		t.Parallel()
		lib, store, _ := setup(t)
		img := newImage(t, lib, store)

		dst, err := lib.Trash(img)
		if err != nil {
			t.Fatalf("Trash() error = %v", err)
		}
		data, err := os.ReadFile(dst)
		if err != nil || string(data) != "pixels" {
			t.Errorf("trashed bytes = %q, err %v", data, err)
		}
		if _, err := os.Stat(sidecar.PathFor(dst)); err != nil {
			t.Errorf("sidecar should follow image to trash: %v", err)
		}
	})

	t.Run("archiving a missing image fails", func(t *testing.T) {
		t.Parallel()
		lib, _, root := setup(t)
		if _, err := lib.Archive(filepath.Join(root, "nope.png")); err == nil {
			t.Error("Archive() expected error")
		}
	})
}
