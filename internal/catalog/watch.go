package catalog

import (
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher records changes to a songs directory. It never touches a catalog:
// the owner polls Changed between playthroughs and rebuilds on its own goroutine.
type Watcher struct {
	watcher *fsnotify.Watcher
	changed atomic.Bool
	logger  zerolog.Logger
	done    chan struct{}
}

// Watch starts watching dir for added, removed or rewritten song files.
func Watch(dir string, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	w := &Watcher{watcher: fw, logger: logger, done: make(chan struct{})}
	go w.run()
	return w, nil
}

// Changed reports whether the directory changed since the previous call.
func (w *Watcher) Changed() bool {
	return w.changed.Swap(false)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if _, err := DetectFileType(filepath.Base(event.Name)); err != nil {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Songs directory changed")
				w.changed.Store(true)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}
