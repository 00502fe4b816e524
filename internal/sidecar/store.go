package sidecar

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/screenshotos/screenshotos/internal/logger"
)

// Store manages sidecar records. Mutations to the same sidecar path are
// serialized by a per-path mutex; different paths proceed concurrently.
type Store struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a sidecar store.
func NewStore() *Store {
	return &Store{locks: make(map[string]*sync.Mutex)}
}

// pathLock returns the mutex guarding one sidecar path.
func (s *Store) pathLock(imagePath string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[imagePath]
	if !ok {
		l = &sync.Mutex{}
		s.locks[imagePath] = l
	}
	return l
}

// Create writes a fresh sidecar record for an image, computing the
// tamper-evidence checksum over the image's current bytes.
func (s *Store) Create(imagePath string, meta CaptureMetadata, tags []string, notes string, annotations []Annotation) error {
	l := s.pathLock(imagePath)
	l.Lock()
	defer l.Unlock()

	checksum, err := FileChecksum(imagePath)
	if err != nil {
		return fmt.Errorf("failed to checksum image: %w", err)
	}

	if tags == nil {
		tags = []string{}
	}
	if annotations == nil {
		annotations = []Annotation{}
	}

	now := time.Now()
	rec := &Record{
		Version:               SchemaVersion,
		OriginalImagePath:     imagePath,
		OriginalImageChecksum: checksum,
		CreatedAt:             now,
		ModifiedAt:            now,
		Metadata:              meta,
		Tags:                  tags,
		Notes:                 notes,
		Annotations:           annotations,
		EditHistory:           []EditOperation{},
	}

	if err := s.write(imagePath, rec); err != nil {
		return err
	}

	logger.WithComponent("sidecar").Debug().
		Str("image", imagePath).
		Str("checksum", checksum[:12]).
		Msg("Sidecar created")
	return nil
}

// Load reads a sidecar record. Returns (nil, nil) when no sidecar
// exists. Checksum and version mismatches are logged, not fatal: stale
// metadata must remain viewable, only flagged as unverified.
func (s *Store) Load(imagePath string) (*Record, error) {
	l := s.pathLock(imagePath)
	l.Lock()
	defer l.Unlock()
	return s.loadLocked(imagePath)
}

func (s *Store) loadLocked(imagePath string) (*Record, error) {
	data, err := os.ReadFile(PathFor(imagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar: %w", err)
	}

	if majorVersion(rec.Version) != majorVersion(SchemaVersion) {
		logger.WithComponent("sidecar").Warn().
			Str("image", imagePath).
			Str("file_version", rec.Version).
			Str("supported", SchemaVersion).
			Msg("Sidecar schema major version mismatch, loading anyway")
		rec.VerifyErr = ErrVersionMismatch
	}

	rec.ChecksumVerified = true
	current, err := FileChecksum(imagePath)
	if err != nil {
		logger.WithComponent("sidecar").Warn().
			Err(err).
			Str("image", imagePath).
			Msg("Cannot verify sidecar checksum, image unreadable")
		rec.ChecksumVerified = false
	} else if current != rec.OriginalImageChecksum {
		logger.WithComponent("sidecar").Warn().
			Str("image", imagePath).
			Str("stored", shortSum(rec.OriginalImageChecksum)).
			Str("actual", shortSum(current)).
			Msg("Sidecar checksum mismatch, image bytes changed since capture")
		rec.ChecksumVerified = false
		rec.VerifyErr = errors.Join(rec.VerifyErr, ErrChecksumMismatch)
	}

	return &rec, nil
}

// UpdateFields is the set of partial updates applied by Update. Nil
// pointers leave the corresponding field untouched.
type UpdateFields struct {
	Tags         *[]string
	Notes        *string
	OCRText      *string
	OCRCompleted *bool
}

// Update applies a partial field update via read-modify-write.
func (s *Store) Update(imagePath string, fields UpdateFields) error {
	return s.mutate(imagePath, func(rec *Record) error {
		if fields.Tags != nil {
			rec.Tags = *fields.Tags
		}
		if fields.Notes != nil {
			rec.Notes = *fields.Notes
		}
		if fields.OCRText != nil {
			rec.OCRText = *fields.OCRText
		}
		if fields.OCRCompleted != nil {
			rec.OCRCompleted = *fields.OCRCompleted
		}
		return nil
	})
}

// AddAnnotation appends an annotation and records the edit in the
// append-only history.
func (s *Store) AddAnnotation(imagePath string, a Annotation) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return s.mutate(imagePath, func(rec *Record) error {
		rec.Annotations = append(rec.Annotations, a)
		rec.EditHistory = append(rec.EditHistory, EditOperation{
			ID:           uuid.NewString(),
			Action:       "add_annotation",
			AnnotationID: a.ID,
			Timestamp:    time.Now(),
		})
		return nil
	})
}

// RemoveAnnotation removes an annotation by id. The removal is itself
// appended to the edit history; history entries are never rewritten.
func (s *Store) RemoveAnnotation(imagePath, annotationID string) error {
	return s.mutate(imagePath, func(rec *Record) error {
		kept := rec.Annotations[:0]
		found := false
		for _, a := range rec.Annotations {
			if a.ID == annotationID {
				found = true
				continue
			}
			kept = append(kept, a)
		}
		if !found {
			return fmt.Errorf("annotation %s not found", annotationID)
		}
		rec.Annotations = kept
		rec.EditHistory = append(rec.EditHistory, EditOperation{
			ID:           uuid.NewString(),
			Action:       "remove_annotation",
			AnnotationID: annotationID,
			Timestamp:    time.Now(),
		})
		return nil
	})
}

// MarkArchived records that the image moved into the archive.
func (s *Store) MarkArchived(imagePath, archivedFromPath string) error {
	return s.mutate(imagePath, func(rec *Record) error {
		now := time.Now()
		rec.IsArchived = true
		rec.ArchivedAt = &now
		rec.ArchivedFromPath = archivedFromPath
		rec.OriginalImagePath = imagePath
		return nil
	})
}

// MarkUnarchived clears the archive state after a restore.
func (s *Store) MarkUnarchived(imagePath string) error {
	return s.mutate(imagePath, func(rec *Record) error {
		rec.IsArchived = false
		rec.ArchivedAt = nil
		rec.ArchivedFromPath = ""
		rec.OriginalImagePath = imagePath
		return nil
	})
}

// Delete removes the sidecar file for an image. Missing sidecars are not
// an error.
func (s *Store) Delete(imagePath string) error {
	l := s.pathLock(imagePath)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(PathFor(imagePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete sidecar: %w", err)
	}
	return nil
}

// mutate runs a load-mutate-write cycle under the per-path lock.
func (s *Store) mutate(imagePath string, fn func(*Record) error) error {
	l := s.pathLock(imagePath)
	l.Lock()
	defer l.Unlock()

	rec, err := s.loadLocked(imagePath)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no sidecar for %s", imagePath)
	}

	if err := fn(rec); err != nil {
		return err
	}

	rec.ModifiedAt = time.Now()
	return s.write(imagePath, rec)
}

// write persists a record pretty-printed, via tmp+rename so a crash
// never leaves a torn sidecar.
func (s *Store) write(imagePath string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sidecar: %w", err)
	}

	path := PathFor(imagePath)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace sidecar: %w", err)
	}
	return nil
}

// shortSum abbreviates a checksum for logging. Legacy records may carry
// an empty or malformed value.
func shortSum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

// FileChecksum computes the sha-256 of a file's bytes, streamed.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MoveWith moves a sidecar alongside its relocated image. Missing
// sidecars are ignored.
func (s *Store) MoveWith(oldImagePath, newImagePath string) error {
	l := s.pathLock(oldImagePath)
	l.Lock()
	defer l.Unlock()

	oldSidecar := PathFor(oldImagePath)
	if _, err := os.Stat(oldSidecar); os.IsNotExist(err) {
		return nil
	}

	newSidecar := PathFor(newImagePath)
	if err := os.MkdirAll(filepath.Dir(newSidecar), 0755); err != nil {
		return fmt.Errorf("failed to create sidecar directory: %w", err)
	}
	if err := os.Rename(oldSidecar, newSidecar); err != nil {
		return fmt.Errorf("failed to move sidecar: %w", err)
	}
	return nil
}
