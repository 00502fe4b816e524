package index

import (
	"image"
	"os"
	"sort"

	"github.com/corona10/goimagehash"

	"github.com/screenshotos/screenshotos/internal/logger"
)

// maxHammingDistance is the average-hash distance at or below which two
// screenshots are considered near-duplicates.
const maxHammingDistance = 8

// Match pairs an index entry with its hash distance to the probe image.
type Match struct {
	Entry    Entry `json:"entry"`
	Distance int   `json:"distance"`
}

// perceptualHash decodes an image and computes its average hash. Returns
// nil when the file cannot be decoded; the entry simply opts out of
// similarity lookups.
func perceptualHash(imagePath string) *goimagehash.ImageHash {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		logger.WithComponent("index").Debug().
			Str("image", imagePath).
			Msg("Undecodable image, skipping perceptual hash")
		return nil
	}

	hash, err := goimagehash.AverageHash(img)
	if err != nil {
		return nil
	}
	return hash
}

// FindSimilar returns indexed images that look like the given one,
// closest first. The probe image itself is excluded.
func (ix *Indexer) FindSimilar(imagePath string) []Match {
	probe := perceptualHash(imagePath)
	if probe == nil {
		return nil
	}

	ix.mu.RLock()
	matches := make([]Match, 0)
	for path, e := range ix.entries {
		if path == imagePath || e.phash == nil {
			continue
		}
		dist, err := probe.Distance(e.phash)
		if err != nil || dist > maxHammingDistance {
			continue
		}
		matches = append(matches, Match{Entry: e, Distance: dist})
	}
	ix.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches
}
