package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"kuanb/gosm-matcher/routing"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// session is one online trajectory; mu serializes pushes to its state.
type session struct {
	mu      sync.Mutex
	state   *routing.MatchState
	created time.Time
}

// Sessions keeps online matching states that expire after a period
// without use.
type Sessions struct {
	cache    *ttlcache.Cache[string, *session]
	newState func() *routing.MatchState
	onCount  func(delta int)
	running  atomic.Bool
}

func NewSessions(ttl time.Duration, capacity uint64, newState func() *routing.MatchState) *Sessions {
	opts := []ttlcache.Option[string, *session]{ttlcache.WithTTL[string, *session](ttl)}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *session](capacity))
	}
	s := &Sessions{
		cache:    ttlcache.New(opts...),
		newState: newState,
		onCount:  func(int) {},
	}
	s.cache.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, _ *ttlcache.Item[string, *session]) {
		s.onCount(-1)
	})
	return s
}

// Start launches the expiry loop; Stop ends it.
func (s *Sessions) Start() {
	if s.running.CompareAndSwap(false, true) {
		go s.cache.Start()
	}
}

func (s *Sessions) Stop() {
	if s.running.CompareAndSwap(true, false) {
		s.cache.Stop()
	}
}

func (s *Sessions) Create() string {
	id := uuid.NewString()
	s.cache.Set(id, &session{state: s.newState(), created: time.Now()}, ttlcache.DefaultTTL)
	s.onCount(1)
	return id
}

// With runs fn on the session's state while holding its lock.
func (s *Sessions) With(id string, fn func(*routing.MatchState) error) error {
	item := s.cache.Get(id)
	if item == nil {
		return ErrSessionNotFound
	}
	sess := item.Value()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess.state)
}

func (s *Sessions) Delete(id string) error {
	if !s.cache.Has(id) {
		return ErrSessionNotFound
	}
	s.cache.Delete(id)
	return nil
}

func (s *Sessions) Len() int { return s.cache.Len() }
