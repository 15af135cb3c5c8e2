// Package watch reports when another process rewrites the record store.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const DefaultDebounce = 100 * time.Millisecond

// Watcher watches a store location and emits one notification per burst of
// filesystem events. The location is either a database file or a directory
// of namespace files.
type Watcher struct {
	fs       *fsnotify.Watcher
	match    func(name string) bool
	debounce time.Duration
	changed  chan struct{}
}

// New starts watching path. For a file, its parent directory is watched so
// replacements by rename are seen too.
func New(path string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	dir, match := path, func(name string) bool { return strings.HasSuffix(name, ".json") }
	if !info.IsDir() {
		dir = filepath.Dir(path)
		base := filepath.Base(path)
		// sqlite also touches -wal and -journal siblings
		match = func(name string) bool { return strings.HasPrefix(filepath.Base(name), base) }
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		fs:       fw,
		match:    match,
		debounce: debounce,
		changed:  make(chan struct{}, 1),
	}, nil
}

// Changed delivers a value after each debounced burst of writes. It is
// closed when Run returns.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}

// Run processes events until ctx is done or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changed)
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			log.WithFields(log.Fields{"name": event.Name, "op": event.Op.String()}).Debug("store event")
			timer.Reset(w.debounce)

		case <-timer.C:
			select {
			case w.changed <- struct{}{}:
			default:
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("fsnotify error")
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), "notely-tmp-") {
		return false
	}
	return w.match(event.Name)
}
