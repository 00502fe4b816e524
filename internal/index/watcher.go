package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/screenshotos/screenshotos/internal/logger"
	"github.com/screenshotos/screenshotos/internal/sidecar"
)

// settleDelay lets a freshly created image finish writing before it is
// indexed. Captures are written via rename so this is mostly for files
// dropped in by other programs.
const settleDelay = 200 * time.Millisecond

type watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
}

// Watch keeps the index current as images appear in or vanish from the
// directory. Stop with StopWatching.
func (ix *Indexer) Watch(dir string) error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &watcher{fs: fs, done: make(chan struct{})}

	ix.mu.Lock()
	if ix.watcher != nil {
		ix.mu.Unlock()
		fs.Close()
		return fmt.Errorf("already watching")
	}
	ix.watcher = w
	ix.mu.Unlock()

	go ix.watchLoop(w)

	logger.WithComponent("index").Info().
		Str("dir", dir).
		Msg("Watching directory for changes")
	return nil
}

// StopWatching shuts down the filesystem watcher and waits for its
// event loop to drain.
func (ix *Indexer) StopWatching() {
	ix.mu.Lock()
	w := ix.watcher
	ix.watcher = nil
	ix.mu.Unlock()

	if w == nil {
		return
	}
	// Close and wait outside the lock: the event loop takes ix.mu while
	// applying index updates.
	w.fs.Close()
	<-w.done
}

func (ix *Indexer) watchLoop(w *watcher) {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			ix.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.WithComponent("index").Warn().
				Err(err).
				Msg("Watcher error")
		}
	}
}

func (ix *Indexer) handleEvent(event fsnotify.Event) {
	// Sidecar churn is driven by the store; only image files matter here.
	// Partial files from atomic writes never surface as images.
	if strings.HasSuffix(event.Name, ".part") || !sidecar.IsImagePath(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		time.AfterFunc(settleDelay, func() { ix.AddImage(event.Name) })
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		ix.RemoveImage(event.Name)
	}
}
