package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/screenshotos/screenshotos/internal/logger"
	"github.com/screenshotos/screenshotos/internal/sidecar"
)

// Library moves images between the save, archive, and trash directories,
// keeping each image's sidecar with it and its archive marks current.
type Library struct {
	saveDir    string
	archiveDir string
	trashDir   string
	sidecars   *sidecar.Store
}

// NewLibrary creates a library manager.
func NewLibrary(saveDir, archiveDir, trashDir string, sidecars *sidecar.Store) *Library {
	return &Library{
		saveDir:    saveDir,
		archiveDir: archiveDir,
		trashDir:   trashDir,
		sidecars:   sidecars,
	}
}

// Archive moves an image into the archive directory and marks its
// sidecar archived.
func (l *Library) Archive(imagePath string) (string, error) {
	dst := filepath.Join(l.archiveDir, filepath.Base(imagePath))
	if err := l.move(imagePath, dst); err != nil {
		return "", err
	}
	if err := l.sidecars.MarkArchived(dst, imagePath); err != nil {
		// The move succeeded; a missing sidecar is not worth failing over.
		logger.WithComponent("storage").Warn().
			Err(err).
			Str("image", dst).
			Msg("Archived image has no sidecar to mark")
	}
	logger.WithComponent("storage").Info().
		Str("from", imagePath).
		Str("to", dst).
		Msg("Image archived")
	return dst, nil
}

// Restore moves an archived image back to where it was archived from,
// falling back to the save directory when that path is unknown.
func (l *Library) Restore(imagePath string) (string, error) {
	dst := filepath.Join(l.saveDir, filepath.Base(imagePath))
	if rec, err := l.sidecars.Load(imagePath); err == nil && rec != nil && rec.ArchivedFromPath != "" {
		dst = rec.ArchivedFromPath
	}

	if err := l.move(imagePath, dst); err != nil {
		return "", err
	}
	if err := l.sidecars.MarkUnarchived(dst); err != nil {
		logger.WithComponent("storage").Warn().
			Err(err).
			Str("image", dst).
			Msg("Restored image has no sidecar to mark")
	}
	logger.WithComponent("storage").Info().
		Str("from", imagePath).
		Str("to", dst).
		Msg("Image restored from archive")
	return dst, nil
}

// Trash moves an image and its sidecar into the trash directory. The
// pixel bytes are never destroyed by this operation.
func (l *Library) Trash(imagePath string) (string, error) {
	dst := filepath.Join(l.trashDir, filepath.Base(imagePath))
	if err := l.move(imagePath, dst); err != nil {
		return "", err
	}
	logger.WithComponent("storage").Info().
		Str("from", imagePath).
		Str("to", dst).
		Msg("Image moved to trash")
	return dst, nil
}

// move relocates an image and carries its sidecar along.
func (l *Library) move(src, dst string) error {
	if src == dst {
		return nil
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("image not found: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := l.sidecars.MoveWith(src, dst); err != nil {
		logger.WithComponent("storage").Warn().
			Err(err).
			Str("image", src).
			Msg("Failed to move sidecar with image")
	}
	return nil
}
