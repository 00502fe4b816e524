package index

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/screenshotos/screenshotos/internal/sidecar"
)

func writePNG(t *testing.T, path string, fill func(x, y int) color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func white(x, y int) color.Color { return color.White }

func setup(t *testing.T) (*Indexer, *sidecar.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := sidecar.NewStore()
	ix := NewIndexer(store)
	ix.ComputePerceptualHashes = false
	return ix, store, dir
}

func TestIndexerScan(t *testing.T) {
	t.Run("rescan swaps in a fresh snapshot", func(t *testing.T) {
		ix, store, dir := setup(t)

		a := filepath.Join(dir, "a.png")
		b := filepath.Join(dir, "b.png")
		writePNG(t, a, white)
		writePNG(t, b, white)
		if err := store.Create(a, sidecar.CaptureMetadata{}, []string{"work"}, "", nil); err != nil {
			t.Fatal(err)
		}

		ix.mu.Lock()
		ix.entries = ix.scan(dir)
		ix.mu.Unlock()

		if ix.Len() != 2 {
			t.Fatalf("Len() = %d, want 2", ix.Len())
		}

		os.Remove(b)
		ix.mu.Lock()
		ix.entries = ix.scan(dir)
		ix.mu.Unlock()
		if ix.Len() != 1 {
			t.Errorf("Len() after removal = %d, want 1", ix.Len())
		}
	})

	t.Run("entry dimensions come from the decoded image", func(t *testing.T) {
		ix, _, dir := setup(t)
		img := filepath.Join(dir, "shot.png")
		writePNG(t, img, white)

		ix.AddImage(img)

		results := ix.Search("", 0)
		if len(results) != 1 {
			t.Fatalf("got %d entries, want 1", len(results))
		}
		if results[0].Width != 32 || results[0].Height != 32 {
			t.Errorf("dimensions = %dx%d, want 32x32", results[0].Width, results[0].Height)
		}
	})
}

func TestIndexerQueries(t *testing.T) {
	seed := func(t *testing.T) *Indexer {
		t.Helper()
		ix, store, dir := setup(t)

		specs := []struct {
			name string
			tags []string
			age  time.Duration
		}{
			{"meeting-notes.png", []string{"work", "meeting"}, 48 * time.Hour},
			{"vacation.png", []string{"personal"}, 24 * time.Hour},
			{"invoice.png", []string{"work"}, 0},
		}
		for _, s := range specs {
			p := filepath.Join(dir, s.name)
			writePNG(t, p, white)
			if err := store.Create(p, sidecar.CaptureMetadata{}, s.tags, "", nil); err != nil {
				t.Fatal(err)
			}
			ix.AddImage(p)
			backdate(ix, p, time.Now().Add(-s.age))
		}
		return ix
	}

	t.Run("search by filename substring", func(t *testing.T) {
		ix := seed(t)
		got := ix.Search("vacation", 0)
		if len(got) != 1 || got[0].FileName != "vacation.png" {
			t.Errorf("Search(vacation) = %+v", got)
		}
	})

	t.Run("search matches tags case-insensitively", func(t *testing.T) {
		ix := seed(t)
		if got := ix.Search("MEETING", 0); len(got) != 1 {
			t.Errorf("Search(MEETING) returned %d entries, want 1", len(got))
		}
	})

	t.Run("search respects limit and newest-first order", func(t *testing.T) {
		ix := seed(t)
		got := ix.Search("", 2)
		if len(got) != 2 {
			t.Fatalf("got %d entries, want 2", len(got))
		}
		if got[0].FileName != "invoice.png" {
			t.Errorf("newest first, got %s", got[0].FileName)
		}
	})

	t.Run("tags query requires every tag", func(t *testing.T) {
		ix := seed(t)
		if got := ix.ImagesByTags([]string{"work"}); len(got) != 2 {
			t.Errorf("ImagesByTags(work) = %d entries, want 2", len(got))
		}
		if got := ix.ImagesByTags([]string{"work", "meeting"}); len(got) != 1 {
			t.Errorf("ImagesByTags(work,meeting) = %d entries, want 1", len(got))
		}
	})

	t.Run("date range filters on timestamp", func(t *testing.T) {
		ix := seed(t)
		got := ix.ImagesByDateRange(time.Now().Add(-30*time.Hour), time.Time{})
		if len(got) != 2 {
			t.Errorf("date range = %d entries, want 2", len(got))
		}
	})

	t.Run("all tags deduplicated and sorted", func(t *testing.T) {
		ix := seed(t)
		got := ix.AllTags()
		want := []string{"meeting", "personal", "work"}
		if len(got) != len(want) {
			t.Fatalf("AllTags() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("AllTags()[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})
}

// backdate rewrites one entry's timestamp so ordering tests have
// distinct values.
func backdate(ix *Indexer, imagePath string, at time.Time) {
	ix.mu.Lock()
	e := ix.entries[imagePath]
	e.Timestamp = at
	ix.entries[imagePath] = e
	ix.mu.Unlock()
}

func TestFindSimilar(t *testing.T) {
	ix, _, dir := setup(t)
	ix.ComputePerceptualHashes = true

	halves := func(x, y int) color.Color {
		if x < 16 {
			return color.White
		}
		return color.Black
	}
	mirrored := func(x, y int) color.Color {
		if x < 16 {
			return color.Black
		}
		return color.White
	}

	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	c := filepath.Join(dir, "c.png")
	writePNG(t, a, halves)
	writePNG(t, b, halves)
	writePNG(t, c, mirrored)
	ix.AddImage(a)
	ix.AddImage(b)
	ix.AddImage(c)

	t.Run("identical images match at distance zero", func(t *testing.T) {
		matches := ix.FindSimilar(a)
		if len(matches) != 1 {
			t.Fatalf("FindSimilar(a) = %d matches, want 1", len(matches))
		}
		if matches[0].Entry.ImagePath != b || matches[0].Distance != 0 {
			t.Errorf("match = %+v", matches[0])
		}
	})

	t.Run("probe excludes itself", func(t *testing.T) {
		for _, m := range ix.FindSimilar(a) {
			if m.Entry.ImagePath == a {
				t.Error("probe image matched itself")
			}
		}
	})
}
