// Package accountlock serializes ledger operations per account.
package accountlock

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bobmcallan/savings/internal/common"
	"github.com/bobmcallan/savings/internal/metrics"
)

// slot is a one-token semaphore shared by every waiter on a key.
type slot struct {
	sem  chan struct{}
	refs int
}

// Locker hands out exclusive, context-aware locks keyed by account id.
// Slots are created on first use and dropped when the last holder or waiter
// leaves, so the map only holds accounts with work in flight.
type Locker struct {
	mu      sync.Mutex
	slots   map[string]*slot
	metrics *metrics.Recorder
	logger  *common.Logger
}

// New creates a Locker. metrics may be nil.
func New(logger *common.Logger, m *metrics.Recorder) *Locker {
	return &Locker{
		slots:   make(map[string]*slot),
		metrics: m,
		logger:  logger,
	}
}

func (l *Locker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Locker) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Lock blocks until the account lock is held or ctx is done. The returned
// function releases the lock and is safe to call more than once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	started := time.Now()
	s := l.acquireSlot(key)

	select {
	case s.sem <- struct{}{}:
		// acquired
	case <-ctx.Done():
		l.releaseSlot(key, s)
		return nil, fmt.Errorf("waiting for account %s lock: %w", key, ctx.Err())
	}
	l.metrics.LockWait(time.Since(started))

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.sem
			l.releaseSlot(key, s)
		})
	}, nil
}

// Do runs fn while holding the account lock. A panic inside fn is recovered,
// logged and returned as an error so the lock is always released.
func (l *Locker) Do(ctx context.Context, key string, fn func(ctx context.Context) error) (err error) {
	unlock, err := l.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Str("account", key).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in account operation")
			err = fmt.Errorf("account %s operation panicked: %v", key, r)
		}
	}()
	return fn(ctx)
}

// Held reports how many accounts currently have a holder or waiter.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
