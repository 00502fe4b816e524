// Package index maintains a derived, rebuildable in-memory search index
// over sidecar-described images. The sidecar files stay authoritative; a
// lost index is reconstructed by re-scanning.
package index

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/screenshotos/screenshotos/internal/logger"
	"github.com/screenshotos/screenshotos/internal/sidecar"
)

// Entry is one derived index row. Never authoritative.
type Entry struct {
	ImagePath string    `json:"imagePath"`
	FileName  string    `json:"fileName"`
	Timestamp time.Time `json:"timestamp"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Tags      []string  `json:"tags"`
	Checksum  string    `json:"checksum,omitempty"`
	OCRText   string    `json:"-"`
	phash     *goimagehash.ImageHash
}

// Indexer owns the index snapshot. All mutation goes through AddImage,
// RemoveImage, or a full-rescan swap; queries never block on a scan in
// flight, they read whichever snapshot is current.
type Indexer struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	scanning atomic.Bool
	sidecars *sidecar.Store

	// ComputePerceptualHashes enables duplicate detection at the cost of
	// a full decode per image.
	ComputePerceptualHashes bool

	// watcher is guarded by mu like the entries map.
	watcher *watcher
}

// NewIndexer creates an empty indexer backed by the given sidecar store.
func NewIndexer(sidecars *sidecar.Store) *Indexer {
	return &Indexer{
		entries:                 make(map[string]Entry),
		sidecars:                sidecars,
		ComputePerceptualHashes: true,
	}
}

// StartIndexing launches a background full rescan of the directory. The
// finished index replaces the current one atomically; queries issued
// meanwhile see the previous snapshot. Incremental AddImage/RemoveImage
// calls racing the rescan are last-writer-wins, acceptable for a derived
// cache.
func (ix *Indexer) StartIndexing(dir string) {
	if !ix.scanning.CompareAndSwap(false, true) {
		logger.WithComponent("index").Debug().Msg("Rescan already in flight, skipping")
		return
	}

	go func() {
		defer ix.scanning.Store(false)
		start := time.Now()

		fresh := ix.scan(dir)

		ix.mu.Lock()
		ix.entries = fresh
		ix.mu.Unlock()

		logger.WithComponent("index").Info().
			Str("dir", dir).
			Int("entries", len(fresh)).
			Dur("took", time.Since(start)).
			Msg("Index rebuild complete")
	}()
}

// IsCurrentlyScanning reports whether a background rescan is running.
func (ix *Indexer) IsCurrentlyScanning() bool {
	return ix.scanning.Load()
}

// scan builds a fresh entry map off the caller's goroutine.
func (ix *Indexer) scan(dir string) map[string]Entry {
	fresh := make(map[string]Entry)

	scanEntries, err := ix.sidecars.ScanDirectory(dir)
	if err != nil {
		logger.WithComponent("index").Error().
			Err(err).
			Str("dir", dir).
			Msg("Index scan failed, keeping empty snapshot")
		return fresh
	}

	for _, se := range scanEntries {
		e, ok := ix.buildEntry(se.ImagePath)
		if ok {
			fresh[se.ImagePath] = e
		}
	}
	return fresh
}

// buildEntry derives one index row from the filesystem and sidecar.
func (ix *Indexer) buildEntry(imagePath string) (Entry, bool) {
	info, err := os.Stat(imagePath)
	if err != nil {
		return Entry{}, false
	}

	e := Entry{
		ImagePath: imagePath,
		FileName:  filepath.Base(imagePath),
		Timestamp: info.ModTime(),
		Tags:      []string{},
	}

	if rec, err := ix.sidecars.Load(imagePath); err == nil && rec != nil {
		e.Tags = rec.Tags
		e.Checksum = rec.OriginalImageChecksum
		e.OCRText = rec.OCRText
		if !rec.CreatedAt.IsZero() {
			e.Timestamp = rec.CreatedAt
		}
	}

	if f, err := os.Open(imagePath); err == nil {
		if cfg, _, err := image.DecodeConfig(f); err == nil {
			e.Width = cfg.Width
			e.Height = cfg.Height
		}
		f.Close()
	}

	if ix.ComputePerceptualHashes {
		e.phash = perceptualHash(imagePath)
	}

	return e, true
}

// AddImage inserts or refreshes one image in the current snapshot.
func (ix *Indexer) AddImage(imagePath string) {
	e, ok := ix.buildEntry(imagePath)
	if !ok {
		return
	}
	ix.mu.Lock()
	ix.entries[imagePath] = e
	ix.mu.Unlock()

	logger.WithComponent("index").Debug().
		Str("image", imagePath).
		Msg("Indexed image")
}

// RemoveImage drops one image from the current snapshot.
func (ix *Indexer) RemoveImage(imagePath string) {
	ix.mu.Lock()
	delete(ix.entries, imagePath)
	ix.mu.Unlock()
}

// Search returns entries whose file name, tags, or OCR text contain the
// query, newest first. An empty query matches everything.
func (ix *Indexer) Search(query string, limit int) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))

	results := ix.collect(func(e Entry) bool {
		if q == "" {
			return true
		}
		if strings.Contains(strings.ToLower(e.FileName), q) {
			return true
		}
		if strings.Contains(strings.ToLower(e.OCRText), q) {
			return true
		}
		for _, tag := range e.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				return true
			}
		}
		return false
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// ImagesByTags returns entries carrying every requested tag.
func (ix *Indexer) ImagesByTags(tags []string) []Entry {
	return ix.collect(func(e Entry) bool {
		for _, want := range tags {
			found := false
			for _, have := range e.Tags {
				if strings.EqualFold(have, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	})
}

// ImagesByDateRange returns entries captured within [start, end].
func (ix *Indexer) ImagesByDateRange(start, end time.Time) []Entry {
	return ix.collect(func(e Entry) bool {
		if e.Timestamp.Before(start) {
			return false
		}
		if !end.IsZero() && e.Timestamp.After(end) {
			return false
		}
		return true
	})
}

// AllTags returns the distinct tag set across the index.
func (ix *Indexer) AllTags() []string {
	seen := map[string]bool{}
	ix.mu.RLock()
	for _, e := range ix.entries {
		for _, t := range e.Tags {
			seen[t] = true
		}
	}
	ix.mu.RUnlock()

	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Len returns the number of indexed images.
func (ix *Indexer) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// collect filters the current snapshot and sorts newest first.
func (ix *Indexer) collect(match func(Entry) bool) []Entry {
	ix.mu.RLock()
	results := make([]Entry, 0)
	for _, e := range ix.entries {
		if match(e) {
			results = append(results, e)
		}
	}
	ix.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})
	return results
}
