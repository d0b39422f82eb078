// Package notify implements a recursive filesystem watcher with
// per-subscription debounce coalescing, so cache invalidators, external
// fan-out, and post-hooks all observe one flush per settled burst of
// writes instead of one callback per raw fsnotify event.
package notify

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Priority orders subscriber invocation within one flush: cache
// invalidators run before external fan-out, which runs before post-hooks.
type Priority int

const (
	PriorityCacheInvalidator Priority = 0
	PriorityFanout           Priority = 1
	PriorityPostHook         Priority = 2
)

// DefaultDebounce is the default coalescing window applied when a
// subscription does not set its own.
const DefaultDebounce = 200 * time.Millisecond

// Event is one coalesced flush delivered to a subscriber: every distinct
// path touched during the debounce window, deduplicated.
type Event struct {
	Paths []string
}

// Handler receives one coalesced Event.
type Handler func(Event)

// Subscription describes one registered watcher callback.
type Subscription struct {
	Key      string
	Pattern  string // glob matched against the base filename; empty matches everything
	Priority Priority
	Debounce time.Duration
	Handler  Handler
}

type subState struct {
	sub     Subscription
	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// Bus watches a set of root directories recursively and dispatches
// coalesced events to registered subscriptions.
type Bus struct {
	watcher *fsnotify.Watcher
	roots   []string

	mu   sync.Mutex
	subs []*subState

	stop chan struct{}
	done chan struct{}
}

// New creates a Bus watching roots recursively. A root that does not exist
// when Start runs is skipped without error and is not watched later;
// directories created under a watched directory are added as they appear.
func New(roots ...string) (*Bus, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Bus{watcher: w, roots: roots, stop: make(chan struct{}), done: make(chan struct{})}, nil
}

// Subscribe registers a handler under sub.Key. Subscribing again with the
// same key adds another handler; Unsubscribe(key) removes all of them.
func (b *Bus) Subscribe(sub Subscription) {
	if sub.Debounce <= 0 {
		sub.Debounce = DefaultDebounce
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, &subState{sub: sub, pending: map[string]struct{}{}})
	sort.SliceStable(b.subs, func(i, j int) bool { return b.subs[i].sub.Priority < b.subs[j].sub.Priority })
}

// Unsubscribe removes every subscription registered under key.
func (b *Bus) Unsubscribe(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.sub.Key != key {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

// Start adds every root (and its existing subtree) to the watcher and
// begins the event loop in a background goroutine.
func (b *Bus) Start() error {
	for _, root := range b.roots {
		if err := b.addRecursive(root); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	go b.run()
	return nil
}

// Close stops the event loop and releases the underlying watcher.
func (b *Bus) Close() error {
	close(b.stop)
	<-b.done
	return b.watcher.Close()
}

func (b *Bus) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return b.watcher.Add(path)
		}
		return nil
	})
}

func (b *Bus) run() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case ev, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handle(ev)
		case _, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (b *Bus) handle(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = b.addRecursive(ev.Name)
		}
	}

	b.mu.Lock()
	subs := make([]*subState, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	base := filepath.Base(ev.Name)
	for _, s := range subs {
		if s.sub.Pattern != "" {
			if matched, _ := filepath.Match(s.sub.Pattern, base); !matched {
				continue
			}
		}
		s.schedule(ev.Name)
	}
}

// schedule records path as touched and (re)arms the subscription's single
// coalescing timer; a burst of events within the debounce window collapses
// into one flush carrying every distinct path touched.
func (s *subState) schedule(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[path] = struct{}{}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.sub.Debounce, s.flush)
}

func (s *subState) flush() {
	s.mu.Lock()
	paths := make([]string, 0, len(s.pending))
	for p := range s.pending {
		paths = append(paths, p)
	}
	s.pending = map[string]struct{}{}
	s.mu.Unlock()
	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	s.sub.Handler(Event{Paths: paths})
}
