// Package watcher maps raw filesystem events to queue entries wrapped in
// health tracking, adapted from the corpus's fsnotify-primary,
// polling-fallback HybridWatcher: recursive fsnotify.Add, a stability
// window before emitting events, and gitignore-aware filtering, generalized
// to dispatch through internal/queue instead of a batched-event channel.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"jeeveswatcher/internal/health"
	"jeeveswatcher/internal/ignore"
	"jeeveswatcher/internal/queue"
)

// Handler processes one observed create/modify/delete for path.
type Handler interface {
	ProcessFile(ctx context.Context, path string) error
	DeleteFile(ctx context.Context, path string) error
}

// Options configure the watcher.
type Options struct {
	Roots           []string
	PollInterval    time.Duration // 0 disables the polling fallback
	StabilityWindow time.Duration // 0 disables the stability gate
	StabilityPoll   time.Duration
}

func (o Options) normalized() Options {
	if o.StabilityPoll <= 0 {
		o.StabilityPoll = 100 * time.Millisecond
	}
	return o
}

// Watcher wraps a recursive filesystem notifier, gitignore filtering, and a
// health supervisor around dispatch into the event queue.
type Watcher struct {
	opts       Options
	handler    Handler
	q          *queue.Queue
	supervisor *health.Supervisor
	ignoreF    *ignore.Filter

	fsw  *fsnotify.Watcher
	poll *pollingFallback

	mu         sync.Mutex
	stopped    bool
	stopCh     chan struct{}
	pollCancel context.CancelFunc
}

// New builds a Watcher over opts.Roots, recursively watched via fsnotify.
func New(opts Options, handler Handler, q *queue.Queue, supervisor *health.Supervisor) (*Watcher, error) {
	opts = opts.normalized()
	filter, err := ignore.New(opts.Roots)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		opts:       opts,
		handler:    handler,
		q:          q,
		supervisor: supervisor,
		ignoreF:    filter,
		fsw:        fsw,
		stopCh:     make(chan struct{}),
	}
	if opts.PollInterval > 0 {
		w.poll = newPollingFallback(opts.Roots, opts.PollInterval)
	}
	return w, nil
}

// Start begins watching; it blocks until Stop is called or a supervisor
// fatal callback tears the watcher down, and should be run in its own
// goroutine by the caller.
func (w *Watcher) Start(ctx context.Context) error {
	for _, root := range w.opts.Roots {
		if err := w.addRecursive(root); err != nil {
			return err
		}
	}

	if w.poll != nil {
		pollCtx, cancel := context.WithCancel(ctx)
		w.mu.Lock()
		w.pollCancel = cancel
		w.mu.Unlock()
		go w.poll.run(pollCtx, func(kind, path string) {
			if w.ignoreF.IsIgnored(path) {
				return
			}
			switch kind {
			case "create":
				w.dispatch(queue.Create, path)
			case "modify":
				w.dispatch(queue.Modify, path)
			case "delete":
				w.dispatch(queue.Delete, path)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if !w.supervisor.RecordFailure(err) {
				_ = w.Stop()
				return err
			}
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" || d.Name() == "node_modules" {
			return fs.SkipDir
		}
		if w.ignoreF.IsIgnored(path) {
			return fs.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if w.ignoreF.IsIgnored(ev.Name) {
		return
	}
	if strings.HasSuffix(ev.Name, string(filepath.Separator)+".gitignore") || filepath.Base(ev.Name) == ".gitignore" {
		if err := w.ignoreF.Invalidate(ev.Name); err != nil {
			log.Warn().Err(err).Str("path", ev.Name).Msg("watcher: failed to invalidate gitignore entry")
		}
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		if isDir(ev.Name) {
			_ = w.fsw.Add(ev.Name)
			return
		}
		w.dispatch(queue.Create, ev.Name)
	case ev.Op&fsnotify.Write != 0:
		w.dispatch(queue.Modify, ev.Name)
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		w.dispatch(queue.Delete, ev.Name)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (w *Watcher) dispatch(kind queue.Kind, path string) {
	event := queue.Event{Kind: kind, Path: path, Priority: queue.Normal}
	w.q.Enqueue(event, func(ctx context.Context) {
		if w.opts.StabilityWindow > 0 && kind != queue.Delete {
			if !waitForStability(path, w.opts.StabilityWindow, w.opts.StabilityPoll) {
				return
			}
		}
		if err := w.supervisor.Backoff(ctx); err != nil {
			return
		}
		var err error
		if kind == queue.Delete {
			err = w.handler.DeleteFile(ctx, path)
		} else {
			err = w.handler.ProcessFile(ctx, path)
		}
		if err != nil {
			w.supervisor.RecordFailure(err)
			return
		}
		w.supervisor.RecordSuccess()
	})
}

// waitForStability blocks until path's size and mtime have been unchanged
// for window, or returns false if the file disappears or ctx-less polling
// times out after 10x window (a conservative ceiling to avoid hanging
// forever on a file that never stabilizes).
func waitForStability(path string, window, pollEvery time.Duration) bool {
	deadline := time.Now().Add(10 * window)
	var lastSize int64 = -1
	var lastMod time.Time
	stableSince := time.Now()
	for time.Now().Before(deadline) {
		info, err := os.Stat(path)
		if err != nil {
			return false
		}
		if info.Size() != lastSize || !info.ModTime().Equal(lastMod) {
			lastSize = info.Size()
			lastMod = info.ModTime()
			stableSince = time.Now()
		}
		if time.Since(stableSince) >= window {
			return true
		}
		time.Sleep(pollEvery)
	}
	return false
}

// Stop tears down the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	if w.pollCancel != nil {
		w.pollCancel()
	}
	close(w.stopCh)
	return w.fsw.Close()
}
