package relationfile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceWindow = 250 * time.Millisecond

// Watcher notifies when the relation file changes. The parent directory is
// watched so that files replaced by rename are still seen.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan struct{}
	logger  *slog.Logger
}

// NewWatcher starts watching the directory holding path.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve relation file path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:    abs,
		watcher: fw,
		changes: make(chan struct{}, 1),
		logger:  logger,
	}, nil
}

// Changes delivers one value per debounced burst of file events. Bursts that
// arrive while a previous notification is unread are coalesced into it.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run processes filesystem events until ctx is canceled, then closes the
// underlying watcher and the Changes channel.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.changes)
	defer func() { _ = w.watcher.Close() }()

	debounce := time.NewTimer(time.Hour)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("relation file watch error", "path", w.path, "error", err)
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isRelevant(ev) {
				continue
			}
			debounce.Reset(debounceWindow)
		case <-debounce.C:
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

func (w *Watcher) isRelevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}
