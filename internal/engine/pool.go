package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Pool caches one lazily created engine handle per language key and hands
// out exclusive leases. Concurrent callers sharing a key serialize on the
// lease; distinct keys proceed independently.
type Pool struct {
	mu      sync.Mutex
	factory Factory
	slots   map[Key]*slot
	closed  bool
}

// slot owns the cached handle for one key. The semaphore carries the lease:
// at most one holder at a time, acquisition blocks until free.
type slot struct {
	sem     chan struct{}
	handle  Handle
	corrupt bool
}

// Lease is exclusive ownership of a key's handle for one call. Release must
// run on every exit path; it is idempotent.
type Lease struct {
	pool     *Pool
	key      Key
	slot     *slot
	handle   Handle
	corrupt  bool
	released bool
	mu       sync.Mutex
}

// NewPool creates a pool backed by the given handle factory.
func NewPool(factory Factory) (*Pool, error) {
	if factory == nil {
		return nil, errors.New("engine: nil factory")
	}
	return &Pool{factory: factory, slots: make(map[Key]*slot)}, nil
}

// Checkout blocks until the handle for key is free, then returns an
// exclusive lease. A corrupt or missing handle is (re)created here; creation
// failure releases the slot untouched so a later attempt can try again.
func (p *Pool) Checkout(ctx context.Context, key Key) (*Lease, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New("engine: pool closed")
	}
	s, ok := p.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		p.slots[key] = s
	}
	p.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if s.corrupt && s.handle != nil {
		_ = s.handle.Close()
		s.handle = nil
		s.corrupt = false
	}
	if s.handle == nil {
		h, err := p.factory(key)
		if err != nil {
			<-s.sem
			return nil, fmt.Errorf("create engine instance for %q: %w", key, err)
		}
		s.handle = h
	}

	return &Lease{pool: p, key: key, slot: s, handle: s.handle}, nil
}

// Close shuts the pool down and closes every idle handle. Leases still held
// keep their handles valid until released.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var firstErr error
	for key, s := range p.slots {
		select {
		case s.sem <- struct{}{}:
			if s.handle != nil {
				if err := s.handle.Close(); err != nil && firstErr == nil {
					firstErr = fmt.Errorf("close engine instance for %q: %w", key, err)
				}
				s.handle = nil
			}
			<-s.sem
		default:
			// Held lease; its Release will hand the handle back to a closed
			// pool, which drops it.
		}
	}
	return firstErr
}

// Handle returns the leased engine instance.
func (l *Lease) Handle() Handle { return l.handle }

// Key returns the language key the lease was checked out for.
func (l *Lease) Key() Key { return l.key }

// MarkCorrupt flags the instance for lazy recreation on its next checkout.
func (l *Lease) MarkCorrupt() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.corrupt = true
}

// Release returns the handle to availability. Safe to call more than once;
// only the first call has effect.
func (l *Lease) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	corrupt := l.corrupt
	l.mu.Unlock()

	if corrupt {
		l.slot.corrupt = true
	}

	l.pool.mu.Lock()
	poolClosed := l.pool.closed
	l.pool.mu.Unlock()
	if poolClosed && l.slot.handle != nil {
		_ = l.slot.handle.Close()
		l.slot.handle = nil
	}

	<-l.slot.sem
}
