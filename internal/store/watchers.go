package store

import (
	"context"
	"log/slog"
	"sync"
)

// Loader reads the current subtree for a watched path.
type Loader func(ctx context.Context, segs []string) (Snapshot, error)

type watcher struct {
	segs []string
	fn   Listener
	kick chan struct{}
	done chan struct{}
}

// Watchers fans change notifications out to subscribed listeners. Each
// listener runs on its own goroutine; notifications that arrive while a
// delivery is in progress collapse into one follow-up read, so listeners
// always see the latest state rather than every intermediate one.
type Watchers struct {
	load   Loader
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	nextID SubscriptionID
	subs   map[SubscriptionID]*watcher
	closed bool
	wg     sync.WaitGroup
}

func NewWatchers(load Loader) *Watchers {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watchers{
		load:   load,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[SubscriptionID]*watcher),
	}
}

// Add registers fn for segs and schedules the initial delivery.
func (w *Watchers) Add(segs []string, fn Listener) (SubscriptionID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, ErrClosed
	}
	w.nextID++
	id := w.nextID
	wt := &watcher{
		segs: append([]string(nil), segs...),
		fn:   fn,
		kick: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	w.subs[id] = wt
	wt.kick <- struct{}{}

	w.wg.Add(1)
	go w.run(id, wt)

	slog.Debug("store watcher added", "module", "store.watchers", "id", uint64(id), "path", Join(segs...))
	return id, nil
}

// Remove stops deliveries for id. A delivery already running may still
// complete; none start afterwards. Unknown ids are ignored.
func (w *Watchers) Remove(id SubscriptionID) {
	w.mu.Lock()
	wt, ok := w.subs[id]
	delete(w.subs, id)
	w.mu.Unlock()
	if ok {
		close(wt.done)
		slog.Debug("store watcher removed", "module", "store.watchers", "id", uint64(id))
	}
}

// Notify tells every watcher whose subtree may have changed to re-read.
func (w *Watchers) Notify(segs []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, wt := range w.subs {
		if !Overlaps(wt.segs, segs) {
			continue
		}
		select {
		case wt.kick <- struct{}{}:
		default:
		}
	}
}

func (w *Watchers) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

// Close removes every watcher and waits for their goroutines to exit.
func (w *Watchers) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	subs := w.subs
	w.subs = make(map[SubscriptionID]*watcher)
	w.mu.Unlock()

	for _, wt := range subs {
		close(wt.done)
	}
	w.cancel()
	w.wg.Wait()
}

func (w *Watchers) run(id SubscriptionID, wt *watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-wt.done:
			return
		case <-wt.kick:
		}

		snap, err := w.load(w.ctx, wt.segs)

		select {
		case <-wt.done:
			return
		default:
		}
		if err != nil {
			slog.Warn("store watcher load failed", "module", "store.watchers", "id", uint64(id), "path", Join(wt.segs...), "err", err)
			wt.fn(NewSnapshot(wt.segs, nil), err)
			continue
		}
		wt.fn(snap, nil)
	}
}
