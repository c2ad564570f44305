package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	watchEventBufferSize   = 64
	defaultDebounceTimeout = 250 * time.Millisecond
)

// FilterFunc reports whether a changed path should be dropped before it
// reaches the daemon, e.g. ignore-listed files or the engine's own temp files.
type FilterFunc func(absPath string) bool

// Watcher turns raw filesystem notifications under a pairing's roots into
// debounced change events. Editors and copies emit bursts of writes per file;
// the per-path debounce collapses each burst into one event.
type Watcher struct {
	roots           []string
	filter          FilterFunc
	events          chan string
	rawEvents       chan notify.EventInfo
	done            chan struct{}
	wg              sync.WaitGroup
	debounceTimeout time.Duration

	debounceMu  sync.Mutex
	eventTimers map[string]*time.Timer
}

// NewWatcher creates a watcher over the given roots. filter may be nil.
func NewWatcher(filter FilterFunc, roots ...string) *Watcher {
	return &Watcher{
		roots:           roots,
		filter:          filter,
		done:            make(chan struct{}),
		debounceTimeout: defaultDebounceTimeout,
		eventTimers:     make(map[string]*time.Timer),
	}
}

// SetDebounceTimeout overrides the per-path debounce window.
func (w *Watcher) SetDebounceTimeout(timeout time.Duration) {
	w.debounceTimeout = timeout
}

// Start begins watching all roots recursively. Creations, writes, renames and
// removals all count as changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.rawEvents = make(chan notify.EventInfo, watchEventBufferSize)
	w.events = make(chan string, watchEventBufferSize)

	for _, root := range w.roots {
		if err := notify.Watch(root+"/...", w.rawEvents, notify.Create|notify.Write|notify.Remove|notify.Rename); err != nil {
			notify.Stop(w.rawEvents)
			return err
		}
		slog.Debug("watching", "dir", root)
	}

	w.wg.Add(1)
	go w.filterEvents(ctx)

	return nil
}

// Stop ends watching and closes the events channel.
func (w *Watcher) Stop() {
	close(w.done)
	if w.rawEvents != nil {
		notify.Stop(w.rawEvents)
	}
	w.wg.Wait()
}

// Events yields one absolute path per settled change.
func (w *Watcher) Events() <-chan string {
	return w.events
}

func (w *Watcher) filterEvents(ctx context.Context) {
	defer func() {
		// Closing under debounceMu serializes against flushEvent: a timer
		// callback either finds its entry and sends before the close, or finds
		// the map cleared and bails.
		w.debounceMu.Lock()
		for _, timer := range w.eventTimers {
			timer.Stop()
		}
		w.eventTimers = make(map[string]*time.Timer)
		close(w.events)
		w.debounceMu.Unlock()

		w.wg.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}
			path := event.Path()
			if w.filter != nil && w.filter(path) {
				continue
			}
			w.debounceEvent(path)
		}
	}
}

// debounceEvent restarts the per-path timer; the path is emitted only once it
// has been quiet for the debounce window.
func (w *Watcher) debounceEvent(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.eventTimers[path]; ok {
		timer.Stop()
	}
	w.eventTimers[path] = time.AfterFunc(w.debounceTimeout, func() {
		w.flushEvent(path)
	})
}

func (w *Watcher) flushEvent(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if _, ok := w.eventTimers[path]; !ok {
		// already flushed, or the watcher shut down
		return
	}
	delete(w.eventTimers, path)

	select {
	case w.events <- path:
		slog.Debug("file changed", "path", path)
	default:
		slog.Warn("watcher dropped event", "reason", "channel full", "path", path)
	}
}
