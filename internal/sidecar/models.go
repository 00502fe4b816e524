// Package sidecar stores per-image metadata records as sibling JSON
// files (<image-path>.screenshotos.json). The image file itself is
// immutable after write; all mutable state lives in the sidecar.
package sidecar

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// SchemaVersion is the sidecar schema version written by this build.
// Compatibility is judged on the major component only.
const SchemaVersion = "1.0.0"

// Extension is the sidecar filename suffix, appended to the full image
// path including the image's own extension.
const Extension = ".screenshotos.json"

var (
	// ErrChecksumMismatch flags a sidecar whose stored checksum no longer
	// matches the image bytes. Non-fatal: Load surfaces it via
	// Record.VerifyErr and the record stays usable.
	ErrChecksumMismatch = errors.New("sidecar checksum does not match image")

	// ErrVersionMismatch flags a sidecar written by an incompatible major
	// schema version. Non-fatal: Load surfaces it via Record.VerifyErr.
	ErrVersionMismatch = errors.New("sidecar schema major version mismatch")
)

// AnnotationType enumerates the supported annotation kinds.
type AnnotationType string

const (
	AnnotationArrow     AnnotationType = "arrow"
	AnnotationRectangle AnnotationType = "rectangle"
	AnnotationText      AnnotationType = "text"
	AnnotationNumbering AnnotationType = "numbering"
	AnnotationBlur      AnnotationType = "blur"
)

// Position is an annotation's placement on the image, in image pixels.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Annotation is one user-drawn markup element, owned by exactly one
// sidecar record.
type Annotation struct {
	ID            string         `json:"id"`
	Type          AnnotationType `json:"type"`
	Color         string         `json:"color"`
	Position      Position       `json:"position"`
	Text          string         `json:"text,omitempty"`
	Number        int            `json:"number,omitempty"`
	BlurIntensity int            `json:"blurIntensity,omitempty"`
}

// EditOperation is one entry of the append-only edit audit trail.
type EditOperation struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	AnnotationID string    `json:"annotationId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// CaptureMetadata records how the image was produced.
type CaptureMetadata struct {
	SourceDisplayID int            `json:"sourceDisplayId"`
	CaptureMethod   string         `json:"captureMethod"`
	FileFormat      string         `json:"fileFormat,omitempty"`
	Application     map[string]any `json:"application,omitempty"`
	CaptureArea     map[string]int `json:"captureArea,omitempty"`
}

// Record is one sidecar file, one-to-one with a captured image. Mutated
// via whole-record rewrite, never appended in place.
type Record struct {
	Version               string          `json:"version"`
	OriginalImagePath     string          `json:"originalImagePath"`
	OriginalImageChecksum string          `json:"originalImageChecksum"`
	CreatedAt             time.Time       `json:"createdAt"`
	ModifiedAt            time.Time       `json:"modifiedAt"`
	Metadata              CaptureMetadata `json:"metadata"`
	Tags                  []string        `json:"tags"`
	Notes                 string          `json:"notes"`
	Annotations           []Annotation    `json:"annotations"`
	EditHistory           []EditOperation `json:"editHistory"`
	OCRText               string          `json:"ocrText"`
	OCRCompleted          bool            `json:"ocrCompleted"`
	IsArchived            bool            `json:"isArchived"`
	ArchivedAt            *time.Time      `json:"archivedAt,omitempty"`
	ArchivedFromPath      string          `json:"archivedFromPath,omitempty"`

	// ChecksumVerified is set by Load: false means the image bytes no
	// longer match OriginalImageChecksum and the record is stale.
	ChecksumVerified bool `json:"-"`

	// VerifyErr carries the non-fatal verification failures found by
	// Load: ErrChecksumMismatch, ErrVersionMismatch, or both joined.
	// Nil for a clean record.
	VerifyErr error `json:"-"`
}

// HasTag reports whether the record carries the given tag.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PathFor returns the sidecar path for an image path.
func PathFor(imagePath string) string {
	return imagePath + Extension
}

// LegacyPathFor returns the pre-1.0 sidecar naming, which dropped the
// image's own extension (foo.png -> foo.screenshotos.json).
func LegacyPathFor(imagePath string) string {
	ext := filepath.Ext(imagePath)
	if ext == "" {
		return ""
	}
	return strings.TrimSuffix(imagePath, ext) + Extension
}

// majorVersion extracts the major component of a semver-ish string.
func majorVersion(v string) string {
	if i := strings.IndexByte(v, '.'); i >= 0 {
		return v[:i]
	}
	return v
}
