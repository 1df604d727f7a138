package confloader

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the bursts of events editors and deploy tools
// produce for a single save.
const DefaultDebounce = 100 * time.Millisecond

// Reloader is a file-backed value that can re-read its file.
type Reloader interface {
	Path() string
	Reload() error
}

// Watcher reloads Reloaders when their files change. It watches parent
// directories so that rename-over saves and symlink swaps are seen.
type Watcher struct {
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	targets map[string][]Reloader // absolute file path
	dirs    map[string]struct{}
	pending map[string]*time.Timer

	stopOnce sync.Once
	done     chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce sets how long a file must be quiet before it is reloaded.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a watcher. Nothing is reloaded until Start.
func NewWatcher(opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fw,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
		targets:  make(map[string][]Reloader),
		dirs:     make(map[string]struct{}),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WatchReloader calls r.Reload whenever r's file changes. Several
// Reloaders may share a file. A failed reload is logged and r keeps what
// it had.
func (w *Watcher) WatchReloader(r Reloader) error {
	target, err := filepath.Abs(r.Path())
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[dir]; !ok {
		if err := w.fs.Add(dir); err != nil {
			w.logger.Error("failed to watch directory", "path", dir, "error", err)
			return err
		}
		w.dirs[dir] = struct{}{}
	}
	w.targets[target] = append(w.targets[target], r)
	w.logger.Debug("watching file for changes", "file", target)
	return nil
}

// Start handles file events until Stop is called.
func (w *Watcher) Start() {
	w.logger.Info("file watcher started")
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// StartAsync runs Start in a goroutine.
func (w *Watcher) StartAsync() {
	go w.Start()
}

// Stop ends event handling and cancels pending reloads. It is safe to
// call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if err = w.fs.Close(); err != nil {
			w.logger.Error("failed to close file watcher", "error", err)
			return
		}
		w.logger.Info("file watcher stopped")
	})
	return err
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.targets[name]; ok {
		w.schedule(name)
		return
	}
	// Mounted ConfigMaps and Secrets swap a "..data" symlink instead of
	// touching the files themselves.
	if strings.HasPrefix(filepath.Base(name), "..") {
		dir := filepath.Dir(name)
		for target := range w.targets {
			if filepath.Dir(target) == dir {
				w.schedule(target)
			}
		}
	}
}

// schedule (re)arms the reload timer of target. w.mu must be held.
func (w *Watcher) schedule(target string) {
	if t, ok := w.pending[target]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[target] = time.AfterFunc(w.debounce, func() { w.reload(target) })
}

func (w *Watcher) reload(target string) {
	w.mu.Lock()
	delete(w.pending, target)
	rs := append([]Reloader(nil), w.targets[target]...)
	w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}
	for _, r := range rs {
		if err := r.Reload(); err != nil {
			w.logger.Error("reload failed, keeping previous contents", "file", target, "error", err)
			continue
		}
		w.logger.Info("reloaded", "file", target)
	}
}
