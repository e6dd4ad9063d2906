// Package memstore is an in-process kvstore.Store for development and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/memauth/kvstore"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Store keeps keys in a map guarded by a mutex. Expired keys are dropped
// lazily when touched.
type Store struct {
	entries map[string]entry
	lock    sync.RWMutex
	nowTime func() time.Time
}

var _ kvstore.Store = (*Store)(nil)

type Option func(*Store)

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

func New(options ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) newEntry(value string, ttl time.Duration) entry {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = s.nowTime().Add(ttl)
	}
	return e
}

// live returns the entry for key if present and unexpired. Caller holds the write lock.
func (s *Store) live(key string) (entry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(s.nowTime()) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.entries[key] = s.newEntry(value, ttl)
	return nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.lock.RLock()
	e, ok := s.entries[key]
	s.lock.RUnlock()

	if !ok || e.expired(s.nowTime()) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (s *Store) Replace(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.live(key); !ok {
		return false, nil
	}
	s.entries[key] = s.newEntry(value, ttl)
	return true, nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.live(key); !ok {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *Store) DeleteMatching(_ context.Context, pattern string) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	count := 0
	for key := range s.entries {
		if !globMatch(pattern, key) {
			continue
		}
		if _, ok := s.live(key); ok {
			delete(s.entries, key)
			count++
		}
	}
	return count, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// Len reports the number of unexpired keys.
func (s *Store) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	now := s.nowTime()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}
