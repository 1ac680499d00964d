// Package watcher watches the persisted state file and reports changes made by
// other processes, such as `linkmark logout` run in another terminal.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// reloadDebounce coalesces the burst of events an atomic temp-file rename produces.
const reloadDebounce = 150 * time.Millisecond

// Watcher reports content changes of a single file.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan struct{}

	mu       sync.Mutex
	timer    *time.Timer
	lastHash string
	stopped  bool
}

// NewWatcher creates a watcher for path. Nothing is watched until Start.
func NewWatcher(path string) (*Watcher, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("watcher: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watcher: resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	return &Watcher{
		path:    abs,
		watcher: fw,
		changes: make(chan struct{}, 1),
	}, nil
}

// Changes receives one value per settled change. Pending notifications coalesce.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Start watches the parent directory of the file, creating it when missing, so that
// replacement by rename is seen. Events are processed until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("watcher: create %s: %w", dir, err)
	}
	hash, err := fileHash(w.path)
	if err != nil {
		log.Debugf("watcher: initial read of %s: %v", w.path, err)
	}
	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()

	if err = w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watcher: watch %s: %w", dir, err)
	}
	log.Debugf("watching state file: %s", w.path)
	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case errWatch, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("file watcher error: %v", errWatch)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	ops := fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	if event.Op&ops == 0 || normalizePath(event.Name) != normalizePath(w.path) {
		return
	}
	log.Debugf("state file event: %s %s", event.Op.String(), filepath.Base(event.Name))
	w.scheduleCheck()
}

func (w *Watcher) scheduleCheck() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, w.checkChanged)
}

// checkChanged notifies when the file content differs from the last seen content.
// A missing file counts as empty content.
func (w *Watcher) checkChanged() {
	hash, err := fileHash(w.path)
	if err != nil {
		log.Warnf("watcher: read %s: %v", w.path, err)
		return
	}

	w.mu.Lock()
	if w.stopped || hash == w.lastHash {
		w.mu.Unlock()
		return
	}
	w.lastHash = hash
	w.mu.Unlock()

	log.Debug("state file changed")
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func normalizePath(path string) string {
	p := filepath.Clean(path)
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	return p
}
