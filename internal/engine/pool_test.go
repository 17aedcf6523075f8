package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle records recognize/close calls for pool behavior tests.
type fakeHandle struct {
	id     int
	closed atomic.Bool
}

func (h *fakeHandle) Recognize(context.Context, []byte) (string, error) { return "text", nil }

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

// fakeFactory counts instantiations per key and can be told to fail.
type fakeFactory struct {
	mu      sync.Mutex
	created map[Key]int
	fail    error
	nextID  int
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{created: make(map[Key]int)}
}

func (f *fakeFactory) make(key Key) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.created[key]++
	f.nextID++
	return &fakeHandle{id: f.nextID}, nil
}

func (f *fakeFactory) createdFor(key Key) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created[key]
}

func (f *fakeFactory) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func TestKeyLanguages(t *testing.T) {
	tests := []struct {
		key  Key
		want []string
	}{
		{"eng", []string{"eng"}},
		{"eng+fra", []string{"eng", "fra"}},
		{"eng + fra", []string{"eng", "fra"}},
		{"", nil},
		{"+", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.key.Languages(), "key %q", tt.key)
	}
}

func TestPool_ReusesHandlePerKey(t *testing.T) {
	f := newFakeFactory()
	p, err := NewPool(f.make)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	for i := 0; i < 3; i++ {
		lease, err := p.Checkout(context.Background(), "eng")
		require.NoError(t, err)
		require.NotNil(t, lease.Handle())
		lease.Release()
	}

	assert.Equal(t, 1, f.createdFor("eng"))
}

func TestPool_DistinctKeysIndependent(t *testing.T) {
	f := newFakeFactory()
	p, err := NewPool(f.make)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	// Holding one key's lease must not block another key.
	engLease, err := p.Checkout(context.Background(), "eng")
	require.NoError(t, err)
	defer engLease.Release()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	fraLease, err := p.Checkout(ctx, "eng+fra")
	require.NoError(t, err)
	fraLease.Release()

	assert.Equal(t, 1, f.createdFor("eng"))
	assert.Equal(t, 1, f.createdFor("eng+fra"))
}

func TestPool_SameKeySerializes(t *testing.T) {
	f := newFakeFactory()
	p, err := NewPool(f.make)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := p.Checkout(context.Background(), "eng")
			if err != nil {
				return
			}
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			lease.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
	assert.Equal(t, 1, f.createdFor("eng"))
}

func TestPool_CheckoutHonorsContext(t *testing.T) {
	f := newFakeFactory()
	p, err := NewPool(f.make)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	lease, err := p.Checkout(context.Background(), "eng")
	require.NoError(t, err)
	defer lease.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Checkout(ctx, "eng")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_InitFailureLeavesSlotUncreated(t *testing.T) {
	f := newFakeFactory()
	p, err := NewPool(f.make)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	initErr := errors.New("trained data missing")
	f.setFail(initErr)

	_, err = p.Checkout(context.Background(), "eng")
	require.ErrorIs(t, err, initErr)

	// The slot stays free and a later attempt succeeds.
	f.setFail(nil)
	lease, err := p.Checkout(context.Background(), "eng")
	require.NoError(t, err)
	lease.Release()
	assert.Equal(t, 1, f.createdFor("eng"))
}

func TestPool_CorruptHandleRecreatedLazily(t *testing.T) {
	f := newFakeFactory()
	p, err := NewPool(f.make)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	lease, err := p.Checkout(context.Background(), "eng")
	require.NoError(t, err)
	first, ok := lease.Handle().(*fakeHandle)
	require.True(t, ok)
	lease.MarkCorrupt()
	lease.Release()

	// Recreation happens at the next checkout, not at release.
	assert.Equal(t, 1, f.createdFor("eng"))

	lease, err = p.Checkout(context.Background(), "eng")
	require.NoError(t, err)
	second, ok := lease.Handle().(*fakeHandle)
	require.True(t, ok)
	lease.Release()

	assert.Equal(t, 2, f.createdFor("eng"))
	assert.NotEqual(t, first.id, second.id)
	assert.True(t, first.closed.Load())
}

func TestLease_ReleaseIdempotent(t *testing.T) {
	f := newFakeFactory()
	p, err := NewPool(f.make)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	lease, err := p.Checkout(context.Background(), "eng")
	require.NoError(t, err)
	lease.Release()
	lease.Release()

	// The slot must be free exactly once; a double release would panic or
	// corrupt the semaphore.
	next, err := p.Checkout(context.Background(), "eng")
	require.NoError(t, err)
	next.Release()
}

func TestPool_CloseClosesIdleHandles(t *testing.T) {
	f := newFakeFactory()
	p, err := NewPool(f.make)
	require.NoError(t, err)

	lease, err := p.Checkout(context.Background(), "eng")
	require.NoError(t, err)
	h, ok := lease.Handle().(*fakeHandle)
	require.True(t, ok)
	lease.Release()

	require.NoError(t, p.Close())
	assert.True(t, h.closed.Load())

	_, err = p.Checkout(context.Background(), "eng")
	require.Error(t, err)
}
