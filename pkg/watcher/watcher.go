// Package watcher reports when feed files change on disk.
package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
)

// DefaultDebounce coalesces editor write bursts into one notification.
const DefaultDebounce = 250 * time.Millisecond

// ErrNotStarted is returned by Stop on a watcher that never started.
var ErrNotStarted = errors.New("watcher not started")

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets how long the watcher waits for writes to settle.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithClock replaces the clock driving the debounce timer.
func WithClock(c clockwork.Clock) Option {
	return func(w *Watcher) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithLogger sets the logger used for watch errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher watches a set of feed files or directories. Files are watched
// through their parent directory so atomic rename-over saves are seen.
type Watcher struct {
	debounce time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger

	dirs    map[string]bool            // directories watched whole
	files   map[string]map[string]bool // parent dir -> watched base names
	changed chan struct{}

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	timer   clockwork.Timer
	done    chan struct{}
	stopped bool
}

// NewWatcher prepares a watcher for the given paths. Call Start to begin.
func NewWatcher(paths []string, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}

	w := &Watcher{
		debounce: DefaultDebounce,
		clock:    clockwork.NewRealClock(),
		logger:   slog.New(slog.DiscardHandler),
		dirs:     make(map[string]bool),
		files:    make(map[string]map[string]bool),
		changed:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			w.dirs[abs] = true
			continue
		}
		dir := filepath.Dir(abs)
		if w.files[dir] == nil {
			w.files[dir] = make(map[string]bool)
		}
		w.files[dir][filepath.Base(abs)] = true
	}
	return w, nil
}

// Start registers the watches and begins delivering notifications.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	for dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	for dir := range w.files {
		if w.dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	w.mu.Lock()
	w.fsw = fsw
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.loop(fsw, w.done)
	return nil
}

// Changed delivers one value per settled burst of changes. Notifications
// that arrive while a previous one is unread are merged.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}

// Stop ends the watch. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.fsw == nil {
		w.mu.Unlock()
		return ErrNotStarted
	}
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	fsw, done := w.fsw, w.done
	w.mu.Unlock()

	// The loop may be inside trigger, which takes mu.
	err := fsw.Close()
	<-done
	return err
}

func (w *Watcher) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				w.trigger()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("feed watch error", "error", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	dir := filepath.Dir(ev.Name)
	if w.dirs[dir] {
		return true
	}
	return w.files[dir][filepath.Base(ev.Name)]
}

// trigger (re)arms the debounce timer.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = w.clock.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	select {
	case w.changed <- struct{}{}:
	default:
	}
}
