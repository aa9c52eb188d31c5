package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned when adding paths to a closed Watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// DefaultWatchDelay is the quiet period before a change triggers a rescan.
const DefaultWatchDelay = 250 * time.Millisecond

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithWatchDelay sets the debounce delay.
func WithWatchDelay(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// OnReport registers a callback invoked after each rescan.
func OnReport(fn func(Report)) WatchOption {
	return func(w *Watcher) {
		w.onReport = fn
	}
}

// Watcher rescans the discovery paths when candidate files change.
type Watcher struct {
	d        *Discoverer
	fsw      *fsnotify.Watcher
	delay    time.Duration
	onReport func(Report)

	mu      sync.Mutex
	timer   *time.Timer
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// Watch starts watching the discoverer's paths recursively. Rescans run
// with ctx until ctx is done or Close is called.
func (d *Discoverer) Watch(ctx context.Context, opts ...WatchOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		d:       d,
		fsw:     fsw,
		delay:   DefaultWatchDelay,
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range d.Paths() {
		w.addRecursive(p)
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return w, nil
}

// Close stops the watcher and waits for a running rescan to finish.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}

// WatchedPaths returns the directories being watched.
func (w *Watcher) WatchedPaths() []string {
	return w.fsw.WatchList()
}

func (w *Watcher) addRecursive(root string) {
	info, err := os.Stat(root)
	if err != nil {
		return
	}
	if !info.IsDir() {
		_ = w.fsw.Add(root)
		return
	}
	_ = filepath.WalkDir(root, func(p string, entry os.DirEntry, err error) error {
		if err != nil || !entry.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.d.logger.Debug().Err(err).Str("path", p).Msg("watch failed")
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	fire := make(chan struct{}, 1)
	for {
		select {
		case <-w.closeCh:
			return
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addRecursive(ev.Name)
					w.schedule(fire)
					continue
				}
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if isCandidateFile(ev.Name) {
				w.schedule(fire)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.d.logger.Warn().Err(err).Msg("watch error")

		case <-fire:
			r := w.d.Rediscover(ctx)
			if w.onReport != nil {
				w.onReport(r)
			}
		}
	}
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule(fire chan<- struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
}
