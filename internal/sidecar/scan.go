package sidecar

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/screenshotos/screenshotos/internal/logger"
)

// MaxScanFiles bounds one directory scan. Sidecar pairing does an
// existence check per file, which must stay bounded on directories with
// tens of thousands of images.
const MaxScanFiles = 5000

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// ScanEntry pairs an image with its sidecar state.
type ScanEntry struct {
	ImagePath   string `json:"imagePath"`
	SidecarPath string `json:"sidecarPath"`
	HasSidecar  bool   `json:"hasSidecar"`
}

// IsImagePath reports whether a path looks like a captured image.
func IsImagePath(path string) bool {
	if strings.HasSuffix(path, Extension) {
		return false
	}
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// ScanDirectory lists images in a directory newest-first, paired with
// their sidecar state. Legacy-named sidecars are migrated in place
// before being reported; a failed migration skips that file but never
// aborts the scan.
//
// Ordering uses modification time: Go exposes no portable creation time
// on Linux, and mtime is the documented fallback.
func (s *Store) ScanDirectory(dir string) ([]ScanEntry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		path  string
		mtime int64
	}
	candidates := make([]candidate, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(dir, de.Name())
		if !IsImagePath(path) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{path: path, mtime: info.ModTime().UnixNano()})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].mtime > candidates[j].mtime
	})

	if len(candidates) > MaxScanFiles {
		logger.WithComponent("sidecar").Warn().
			Str("dir", dir).
			Int("total", len(candidates)).
			Int("cap", MaxScanFiles).
			Msg("Directory scan truncated at file cap")
		candidates = candidates[:MaxScanFiles]
	}

	entries := make([]ScanEntry, 0, len(candidates))
	for _, c := range candidates {
		entries = append(entries, s.scanOne(c.path))
	}
	return entries, nil
}

// scanOne resolves one image's sidecar, migrating legacy names.
func (s *Store) scanOne(imagePath string) ScanEntry {
	entry := ScanEntry{
		ImagePath:   imagePath,
		SidecarPath: PathFor(imagePath),
	}

	if _, err := os.Stat(entry.SidecarPath); err == nil {
		entry.HasSidecar = true
		return entry
	}

	// Older releases named the sidecar without the image extension.
	legacy := LegacyPathFor(imagePath)
	if legacy == "" || legacy == entry.SidecarPath {
		return entry
	}
	if _, err := os.Stat(legacy); err != nil {
		return entry
	}

	if err := os.Rename(legacy, entry.SidecarPath); err != nil {
		logger.WithComponent("sidecar").Warn().
			Err(err).
			Str("legacy", legacy).
			Str("target", entry.SidecarPath).
			Msg("Failed to migrate legacy sidecar, leaving in place")
		return entry
	}

	logger.WithComponent("sidecar").Info().
		Str("legacy", legacy).
		Str("target", entry.SidecarPath).
		Msg("Migrated legacy sidecar name")
	entry.HasSidecar = true
	return entry
}
