package sidecar

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeImage(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStore_CreateLoad(t *testing.T) {
	t.Run("round-trip preserves checksum of image bytes", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		content := []byte("fake png bytes")
		img := writeImage(t, t.TempDir(), "shot.png", content)

		if err := store.Create(img, CaptureMetadata{CaptureMethod: "fullscreen"}, nil, "", nil); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		rec, err := store.Load(img)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if rec == nil {
			t.Fatal("Load() = nil, want record")
		}

		sum := sha256.Sum256(content)
		want := hex.EncodeToString(sum[:])
		if rec.OriginalImageChecksum != want {
			t.Errorf("checksum = %s, want %s", rec.OriginalImageChecksum, want)
		}
		if !rec.ChecksumVerified {
			t.Error("fresh record should verify")
		}
		if rec.VerifyErr != nil {
			t.Errorf("VerifyErr = %v, want nil for a clean record", rec.VerifyErr)
		}
		if rec.Version != SchemaVersion {
			t.Errorf("version = %s, want %s", rec.Version, SchemaVersion)
		}
	})

	t.Run("missing sidecar loads as nil without error", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		img := writeImage(t, t.TempDir(), "shot.png", []byte("x"))

		rec, err := store.Load(img)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if rec != nil {
			t.Errorf("Load() = %+v, want nil", rec)
		}
	})

	t.Run("tampered image still loads but fails verification", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		img := writeImage(t, t.TempDir(), "shot.png", []byte("original"))

		if err := store.Create(img, CaptureMetadata{}, nil, "", nil); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := os.WriteFile(img, []byte("tampered"), 0644); err != nil {
			t.Fatal(err)
		}

		rec, err := store.Load(img)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if rec == nil {
			t.Fatal("tampered image must still return its record")
		}
		if rec.ChecksumVerified {
			t.Error("ChecksumVerified = true, want false after tampering")
		}
		if !errors.Is(rec.VerifyErr, ErrChecksumMismatch) {
			t.Errorf("VerifyErr = %v, want ErrChecksumMismatch", rec.VerifyErr)
		}
	})

	t.Run("incompatible schema major version loads but is flagged", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		img := writeImage(t, t.TempDir(), "shot.png", []byte("x"))
		if err := store.Create(img, CaptureMetadata{}, []string{"keep"}, "", nil); err != nil {
			t.Fatal(err)
		}

		// Rewrite the on-disk sidecar as if a future major version wrote it.
		raw, err := os.ReadFile(PathFor(img))
		if err != nil {
			t.Fatal(err)
		}
		raw = bytes.Replace(raw, []byte(`"version": "`+SchemaVersion+`"`), []byte(`"version": "2.0.0"`), 1)
		if err := os.WriteFile(PathFor(img), raw, 0644); err != nil {
			t.Fatal(err)
		}

		rec, err := store.Load(img)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if rec == nil {
			t.Fatal("version mismatch must not drop the record")
		}
		if !errors.Is(rec.VerifyErr, ErrVersionMismatch) {
			t.Errorf("VerifyErr = %v, want ErrVersionMismatch", rec.VerifyErr)
		}
		if errors.Is(rec.VerifyErr, ErrChecksumMismatch) {
			t.Error("checksum still matches, VerifyErr should not carry ErrChecksumMismatch")
		}
		if !rec.HasTag("keep") {
			t.Error("record fields should survive a version mismatch")
		}
	})

	t.Run("version and checksum mismatches are both reported", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		img := writeImage(t, t.TempDir(), "shot.png", []byte("original"))
		if err := store.Create(img, CaptureMetadata{}, nil, "", nil); err != nil {
			t.Fatal(err)
		}

		raw, err := os.ReadFile(PathFor(img))
		if err != nil {
			t.Fatal(err)
		}
		raw = bytes.Replace(raw, []byte(`"version": "`+SchemaVersion+`"`), []byte(`"version": "2.0.0"`), 1)
		if err := os.WriteFile(PathFor(img), raw, 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(img, []byte("tampered"), 0644); err != nil {
			t.Fatal(err)
		}

		rec, err := store.Load(img)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if !errors.Is(rec.VerifyErr, ErrVersionMismatch) || !errors.Is(rec.VerifyErr, ErrChecksumMismatch) {
			t.Errorf("VerifyErr = %v, want both mismatch errors", rec.VerifyErr)
		}
	})
}

func TestStore_Update(t *testing.T) {
	t.Parallel()
	store := NewStore()
	img := writeImage(t, t.TempDir(), "shot.png", []byte("x"))
	if err := store.Create(img, CaptureMetadata{}, []string{"old"}, "", nil); err != nil {
		t.Fatal(err)
	}

	tags := []string{"work", "bug"}
	notes := "repro steps"
	if err := store.Update(img, UpdateFields{Tags: &tags, Notes: &notes}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	rec, err := store.Load(img)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Tags) != 2 || rec.Tags[0] != "work" {
		t.Errorf("tags = %v", rec.Tags)
	}
	if rec.Notes != "repro steps" {
		t.Errorf("notes = %q", rec.Notes)
	}
	if !rec.ModifiedAt.After(rec.CreatedAt) && !rec.ModifiedAt.Equal(rec.CreatedAt) {
		t.Error("ModifiedAt should advance")
	}
}

func TestStore_Annotations(t *testing.T) {
	t.Run("add then remove leaves empty annotations but two history entries", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		img := writeImage(t, t.TempDir(), "shot.png", []byte("x"))
		if err := store.Create(img, CaptureMetadata{}, nil, "", nil); err != nil {
			t.Fatal(err)
		}

		a := Annotation{
			ID:       "ann-1",
			Type:     AnnotationArrow,
			Color:    "#ff0000",
			Position: Position{X: 10, Y: 10, Width: 50, Height: 20},
		}
		if err := store.AddAnnotation(img, a); err != nil {
			t.Fatalf("AddAnnotation() error = %v", err)
		}
		if err := store.RemoveAnnotation(img, "ann-1"); err != nil {
			t.Fatalf("RemoveAnnotation() error = %v", err)
		}

		rec, err := store.Load(img)
		if err != nil {
			t.Fatal(err)
		}
		if len(rec.Annotations) != 0 {
			t.Errorf("annotations = %v, want empty", rec.Annotations)
		}
		if len(rec.EditHistory) != 2 {
			t.Fatalf("edit history has %d entries, want 2", len(rec.EditHistory))
		}
		if rec.EditHistory[0].Action != "add_annotation" || rec.EditHistory[1].Action != "remove_annotation" {
			t.Errorf("history actions = %s, %s", rec.EditHistory[0].Action, rec.EditHistory[1].Action)
		}
	})

	t.Run("annotation without id gets one assigned", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		img := writeImage(t, t.TempDir(), "shot.png", []byte("x"))
		if err := store.Create(img, CaptureMetadata{}, nil, "", nil); err != nil {
			t.Fatal(err)
		}

		if err := store.AddAnnotation(img, Annotation{Type: AnnotationText, Text: "hi"}); err != nil {
			t.Fatal(err)
		}
		rec, _ := store.Load(img)
		if len(rec.Annotations) != 1 || rec.Annotations[0].ID == "" {
			t.Errorf("annotation id should be assigned: %+v", rec.Annotations)
		}
	})

	t.Run("removing unknown annotation fails", func(t *testing.T) {
		t.Parallel()
		store := NewStore()
		img := writeImage(t, t.TempDir(), "shot.png", []byte("x"))
		if err := store.Create(img, CaptureMetadata{}, nil, "", nil); err != nil {
			t.Fatal(err)
		}
		if err := store.RemoveAnnotation(img, "nope"); err == nil {
			t.Error("RemoveAnnotation() expected error for unknown id")
		}
	})
}

func TestStore_ArchiveMarks(t *testing.T) {
	t.Parallel()
	store := NewStore()
	dir := t.TempDir()
	img := writeImage(t, dir, "shot.png", []byte("x"))
	if err := store.Create(img, CaptureMetadata{}, nil, "", nil); err != nil {
		t.Fatal(err)
	}

	if err := store.MarkArchived(img, "/old/place/shot.png"); err != nil {
		t.Fatalf("MarkArchived() error = %v", err)
	}
	rec, _ := store.Load(img)
	if !rec.IsArchived || rec.ArchivedAt == nil || rec.ArchivedFromPath != "/old/place/shot.png" {
		t.Errorf("archive marks wrong: %+v", rec)
	}

	if err := store.MarkUnarchived(img); err != nil {
		t.Fatalf("MarkUnarchived() error = %v", err)
	}
	rec, _ = store.Load(img)
	if rec.IsArchived || rec.ArchivedAt != nil || rec.ArchivedFromPath != "" {
		t.Errorf("unarchive marks wrong: %+v", rec)
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	store := NewStore()
	img := writeImage(t, t.TempDir(), "shot.png", []byte("x"))
	if err := store.Create(img, CaptureMetadata{}, nil, "", nil); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(img); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(PathFor(img)); !os.IsNotExist(err) {
		t.Error("sidecar file should be gone")
	}

	// Deleting again is fine.
	if err := store.Delete(img); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestStore_MoveWith(t *testing.T) {
	t.Parallel()
	store := NewStore()
	dir := t.TempDir()
	img := writeImage(t, dir, "shot.png", []byte("x"))
	if err := store.Create(img, CaptureMetadata{}, nil, "", nil); err != nil {
		t.Fatal(err)
	}

	newImg := filepath.Join(dir, "archive", "shot.png")
	if err := os.MkdirAll(filepath.Dir(newImg), 0755); err != nil {
		t.Fatal(err)
	}
	if err := store.MoveWith(img, newImg); err != nil {
		t.Fatalf("MoveWith() error = %v", err)
	}
	if _, err := os.Stat(PathFor(newImg)); err != nil {
		t.Errorf("sidecar should exist at new path: %v", err)
	}
	if _, err := os.Stat(PathFor(img)); !os.IsNotExist(err) {
		t.Error("old sidecar should be gone")
	}
}
