package main

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// EntryStatus describes the lifecycle of one cached query result.
type EntryStatus int

const (
	StatusIdle EntryStatus = iota
	StatusLoading
	StatusReady
	StatusFailed
)

// CacheEntry is the externally visible snapshot of a cache slot.
type CacheEntry struct {
	Status EntryStatus
	Stale  bool
	Data   interface{}
	Err    error
}

type cacheEntry struct {
	status EntryStatus
	stale  bool
	data   interface{}
	err    error
}

// Subscription delivers the class of every invalidated key a
// subscriber registered interest in. Delivery is best effort: the
// channel is buffered and a notification is dropped rather than
// blocking a mutation on a slow consumer. A dropped notification is
// harmless since the subscriber refetches everything it observes.
type Subscription struct {
	id      int
	classes []string
	C       chan string
}

// Store is an explicit, injectable query cache keyed by
// (operation, serialized arguments). A result stays fresh until a
// mutation invalidates its class; there is no time-based expiry.
// Concurrent identical queries are coalesced into one fetch.
//
// All entry state is serialized behind a single mutex, the
// equivalent of the one UI thread the views would otherwise share.
type Store struct {
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
	// gens counts invalidations and drops per key. A fetch result
	// only lands when the generation it started under is still
	// current, so a superseded response is discarded. The counter
	// is kept outside the entries so dropping an entry cannot reset
	// it: a recreated entry must never accept a pre-drop response.
	gens    map[string]uint64
	subs    map[int]*Subscription
	nextSub int

	group singleflight.Group
}

// NewStore provides a ready to use empty cache store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:  logger,
		entries: make(map[string]*cacheEntry),
		gens:    make(map[string]uint64),
		subs:    make(map[int]*Subscription),
	}
}

func (s *Store) entry(key string) *cacheEntry {
	e, ok := s.entries[key]
	if !ok {
		e = &cacheEntry{}
		s.entries[key] = e
	}
	return e
}

// Query returns the cached value for key when it is fresh, otherwise
// it runs fetch and caches the outcome. Callers asking for the same
// key while a fetch is in flight share that single fetch. A result
// whose key was invalidated after the fetch started is handed to its
// callers but never written to the cache, so the next observation
// refetches.
func (s *Store) Query(ctx context.Context, key string, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	s.mu.Lock()
	e := s.entry(key)
	if e.status == StatusReady && !e.stale {
		data := e.data
		s.mu.Unlock()
		return data, nil
	}
	startGen := s.gens[key]
	e.status = StatusLoading
	s.mu.Unlock()

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return fetch(ctx)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[key] != startGen {
		s.logger.Debug("cache: discarding superseded response", zap.String("key", key), zap.Bool("shared", shared))
		return v, err
	}
	e = s.entry(key)
	if err != nil {
		e.status = StatusFailed
		e.err = err
		e.data = nil
	} else {
		e.status = StatusReady
		e.err = nil
		e.data = v
		e.stale = false
	}
	return v, err
}

// Prime stores a value for key as if it had just been fetched. Used
// to seed per-book detail entries from a fetched list page.
func (s *Store) Prime(key string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key)
	e.status = StatusReady
	e.data = data
	e.err = nil
	e.stale = false
	s.gens[key]++
}

// Drop removes the entry for key entirely. A subsequent Query starts
// from scratch; in-flight fetches for it are detached first and their
// responses discarded, since the generation counter outlives the entry.
func (s *Store) Drop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	s.gens[key]++
	s.group.Forget(key)
}

// Peek reports the current entry state without triggering a fetch.
func (s *Store) Peek(key string) (CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return CacheEntry{}, false
	}
	return CacheEntry{Status: e.status, Stale: e.stale, Data: e.data, Err: e.err}, true
}

// Invalidate marks every key under the given classes stale, detaches
// their in-flight fetches and notifies interested subscribers. It is
// deliberately conservative: a class wipes all its variants.
func (s *Store) Invalidate(classes ...string) {
	s.mu.Lock()
	for key, e := range s.entries {
		for _, class := range classes {
			if strings.HasPrefix(key, class) {
				e.stale = true
				s.gens[key]++
				s.group.Forget(key)
				break
			}
		}
	}
	notified := 0
	for _, sub := range s.subs {
		for _, class := range classes {
			if sub.wants(class) {
				select {
				case sub.C <- class:
				default: // drop, subscriber refetches on next notice anyway
				}
				notified++
			}
		}
	}
	s.mu.Unlock()
	s.logger.Debug("cache: invalidated", zap.Strings("classes", classes), zap.Int("subscribers", notified))
}

func (sub *Subscription) wants(class string) bool {
	for _, c := range sub.classes {
		if strings.HasPrefix(class, c) || strings.HasPrefix(c, class) {
			return true
		}
	}
	return false
}

// Subscribe registers interest in the given key classes. The caller
// owns the returned subscription and must Unsubscribe when its view
// goes away.
func (s *Store) Subscribe(classes ...string) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &Subscription{
		id:      s.nextSub,
		classes: classes,
		C:       make(chan string, 8),
	}
	s.nextSub++
	s.subs[sub.id] = sub
	return sub
}

// Unsubscribe withdraws a subscription and closes its channel so a
// receiver blocked on it unblocks instead of leaking. Closing under
// the same lock that guards Invalidate's sends rules out a
// send-on-closed-channel race. Unsubscribing twice is a no-op.
func (s *Store) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.id]; ok {
		delete(s.subs, sub.id)
		close(sub.C)
	}
}
