// Package watcher triggers a handler when raster files land in a directory.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultExtensions are the file extensions watched when none are configured.
var DefaultExtensions = []string{".tif", ".tiff"}

// Event represents a settled file event.
type Event struct {
	Path      string
	Operation Operation
}

// Operation represents the type of file operation.
type Operation int

// File operation types.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Handler is called once a file has been quiet for the debounce interval.
type Handler func(ctx context.Context, event Event) error

// pendingEvent holds a debounced event with its operation.
type pendingEvent struct {
	timestamp time.Time
	op        Operation
}

// Watcher watches a directory for raster files.
type Watcher struct {
	fsWatcher  *fsnotify.Watcher
	handler    Handler
	logger     *slog.Logger
	dir        string
	extensions []string
	debounce   time.Duration

	mu      sync.Mutex
	pending map[string]*pendingEvent
}

// Config holds watcher configuration.
type Config struct {
	Dir        string
	Extensions []string
	Debounce   time.Duration
}

// New creates a watcher on cfg.Dir. The directory must exist.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("watcher: nil handler")
	}
	abs, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("watch path %s is not a directory", abs)
	}

	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	exts := make([]string, len(cfg.Extensions))
	for i, e := range cfg.Extensions {
		exts[i] = strings.ToLower(e)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(abs); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		fsWatcher:  fsWatcher,
		handler:    handler,
		logger:     logger,
		dir:        abs,
		extensions: exts,
		debounce:   cfg.Debounce,
		pending:    make(map[string]*pendingEvent),
	}, nil
}

// Dir returns the absolute watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run processes events until ctx is canceled. Handlers run one at a time
// on the calling goroutine; handler errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsWatcher.Close() }()

	w.logger.Info("watching directory", "path", w.dir, "debounce", w.debounce)

	ticker := time.NewTicker(min(w.debounce/2, 100*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsEvent(event, time.Now())

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case now := <-ticker.C:
			for _, e := range w.due(now) {
				w.dispatch(ctx, e)
			}
		}
	}
}

func (w *Watcher) dispatch(ctx context.Context, e Event) {
	w.logger.Info("processing file event", "path", e.Path, "operation", e.Operation.String())
	if err := w.call(ctx, e); err != nil {
		w.logger.Error("handler error",
			"path", e.Path,
			"operation", e.Operation.String(),
			"error", err,
		)
	}
}

// call runs the handler, turning a panic into an error so that one bad file
// does not stop the watch loop.
func (w *Watcher) call(ctx context.Context, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler(ctx, e)
}

// handleFsEvent records a single fsnotify event as pending.
func (w *Watcher) handleFsEvent(event fsnotify.Event, now time.Time) {
	if !w.matches(event.Name) {
		return
	}

	w.logger.Debug("file event", "path", event.Name, "op", event.Op.String())

	op := fsnotifyOpToOperation(event.Op)

	w.mu.Lock()
	defer w.mu.Unlock()

	if op == OpDelete {
		// Nothing to convert once the file is gone.
		delete(w.pending, event.Name)
		return
	}

	existing, exists := w.pending[event.Name]
	if !exists {
		w.pending[event.Name] = &pendingEvent{timestamp: now, op: op}
		return
	}
	// A create followed by writes is still a create.
	existing.timestamp = now
}

// due removes and returns the events that have been quiet for the debounce interval.
func (w *Watcher) due(now time.Time) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	var events []Event
	for path, pending := range w.pending {
		if now.Sub(pending.timestamp) < w.debounce {
			continue
		}
		delete(w.pending, path)
		events = append(events, Event{Path: path, Operation: pending.op})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	return events
}

// fsnotifyOpToOperation converts fsnotify.Op to our Operation type.
func fsnotifyOpToOperation(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove):
		return OpDelete
	case op.Has(fsnotify.Rename):
		// the file is gone from this name
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}

// matches reports whether path has one of the watched extensions.
func (w *Watcher) matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
