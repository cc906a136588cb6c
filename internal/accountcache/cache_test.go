package accountcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves accounts from a fixed map and counts calls.
type fakeFetcher struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey][]byte
	slot     uint64
	calls    atomic.Int64
	batches  [][]solana.PublicKey
	delay    time.Duration
	fail     error
}

func (f *fakeFetcher) FetchAccounts(ctx context.Context, addrs []solana.PublicKey) (map[solana.PublicKey]Result, uint64, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, 0, f.fail
	}
	f.batches = append(f.batches, append([]solana.PublicKey(nil), addrs...))

	out := make(map[solana.PublicKey]Result, len(addrs))
	for _, addr := range addrs {
		if data, ok := f.accounts[addr]; ok {
			out[addr] = Result{Data: data}
		} else {
			out[addr] = Result{Err: ErrNotFound}
		}
	}
	return out, f.slot, nil
}

func (f *fakeFetcher) setSlot(slot uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slot = slot
}

func addrN(n byte) solana.PublicKey {
	var pk solana.PublicKey
	pk[0] = n
	return pk
}

func newTestCache(t *testing.T, f *fakeFetcher, cfg Config) *Cache {
	t.Helper()
	cfg.Fetcher = f
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestGetCachesResult(t *testing.T) {
	f := &fakeFetcher{accounts: map[solana.PublicKey][]byte{addrN(1): {0xaa}}, slot: 100}
	c := newTestCache(t, f, Config{})

	ctx := context.Background()
	data, err := c.Get(ctx, addrN(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xaa}, data)

	_, err = c.Get(ctx, addrN(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.calls.Load(), "second get must be a cache hit")
	assert.Equal(t, uint64(100), c.Slot())
}

func TestGetMissingAccount(t *testing.T) {
	f := &fakeFetcher{accounts: map[solana.PublicKey][]byte{}, slot: 5}
	c := newTestCache(t, f, Config{})

	_, err := c.Get(context.Background(), addrN(9))
	assert.ErrorIs(t, err, ErrNotFound)

	// Negative result is cached too.
	_, err = c.Get(context.Background(), addrN(9))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), f.calls.Load())
}

func TestGetSingleFlight(t *testing.T) {
	f := &fakeFetcher{
		accounts: map[solana.PublicKey][]byte{addrN(1): {0x01}},
		slot:     7,
		delay:    20 * time.Millisecond,
	}
	c := newTestCache(t, f, Config{})

	const goroutines = 100
	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Get(context.Background(), addrN(1))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "goroutine %d", i)
	}
	assert.Equal(t, int64(1), f.calls.Load(), "concurrent gets must coalesce into one fetch")
}

func TestGetManyBatchesMisses(t *testing.T) {
	f := &fakeFetcher{accounts: map[solana.PublicKey][]byte{
		addrN(1): {0x01}, addrN(2): {0x02}, addrN(3): {0x03},
	}, slot: 11}
	c := newTestCache(t, f, Config{})

	ctx := context.Background()

	// Prime one address, then request all three: the two misses go
	// out in one batch.
	_, err := c.Get(ctx, addrN(1))
	require.NoError(t, err)

	got, err := c.GetMany(ctx, []solana.PublicKey{addrN(1), addrN(2), addrN(3)})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, []byte{0x02}, got[addrN(2)])

	assert.Equal(t, int64(2), f.calls.Load())
	f.mu.Lock()
	lastBatch := f.batches[len(f.batches)-1]
	f.mu.Unlock()
	assert.Len(t, lastBatch, 2, "only misses are fetched")
}

func TestGetJoinsBatchFlight(t *testing.T) {
	f := &fakeFetcher{
		accounts: map[solana.PublicKey][]byte{addrN(1): {0x01}, addrN(2): {0x02}},
		slot:     9,
		delay:    50 * time.Millisecond,
	}
	c := newTestCache(t, f, Config{})

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		_, err := c.GetMany(ctx, []solana.PublicKey{addrN(1), addrN(2)})
		done <- err
	}()

	// Wait for the batch fetch to be in flight before joining it.
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, ok := c.inflight[addrN(1)]
		return ok
	}, time.Second, time.Millisecond)

	// A Get joining the batch's flight must see the fetched bytes,
	// not an empty result.
	data, err := c.Get(ctx, addrN(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, data)

	require.NoError(t, <-done)
	assert.Equal(t, int64(1), f.calls.Load(), "the joiner must not issue its own fetch")
}

func TestGetManyMissingAccountFails(t *testing.T) {
	f := &fakeFetcher{accounts: map[solana.PublicKey][]byte{addrN(1): {0x01}}, slot: 3}
	c := newTestCache(t, f, Config{})

	_, err := c.GetMany(context.Background(), []solana.PublicKey{addrN(1), addrN(8)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransportErrorIsTyped(t *testing.T) {
	f := &fakeFetcher{fail: fmt.Errorf("connection refused")}
	c := newTestCache(t, f, Config{})

	_, err := c.Get(context.Background(), addrN(1))
	assert.ErrorIs(t, err, ErrFetch)

	// Transport failures are not cached; the next call retries.
	_, err = c.Get(context.Background(), addrN(1))
	assert.ErrorIs(t, err, ErrFetch)
	assert.Equal(t, int64(2), f.calls.Load())
}

func TestStalenessTriggersRefetch(t *testing.T) {
	f := &fakeFetcher{accounts: map[solana.PublicKey][]byte{
		addrN(1): {0x01}, addrN(2): {0x02},
	}, slot: 100}
	c := newTestCache(t, f, Config{StalenessSlots: 10})

	ctx := context.Background()
	_, err := c.Get(ctx, addrN(1))
	require.NoError(t, err)

	// Advance the chain past the tolerance via a fetch of another
	// address, then the first entry must be refetched rather than
	// served stale.
	f.setSlot(200)
	_, err = c.Get(ctx, addrN(2))
	require.NoError(t, err)

	_, err = c.Get(ctx, addrN(1))
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.calls.Load(), "stale entry must be refetched")
}

func TestEvictionBound(t *testing.T) {
	accounts := make(map[solana.PublicKey][]byte)
	for i := byte(1); i <= 20; i++ {
		accounts[addrN(i)] = []byte{i}
	}
	f := &fakeFetcher{accounts: accounts, slot: 1}
	c := newTestCache(t, f, Config{MaxEntries: 8})

	ctx := context.Background()
	for i := byte(1); i <= 20; i++ {
		_, err := c.Get(ctx, addrN(i))
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, c.Len(), 8)

	// Oldest insertion is gone; fetching it again hits the transport.
	before := f.calls.Load()
	_, err := c.Get(ctx, addrN(1))
	require.NoError(t, err)
	assert.Equal(t, before+1, f.calls.Load())
}

func TestEvictionOrderStaysBounded(t *testing.T) {
	f := &fakeFetcher{accounts: map[solana.PublicKey][]byte{
		addrN(1): {0x01}, addrN(2): {0x02},
	}, slot: 100}
	c := newTestCache(t, f, Config{MaxEntries: 8, StalenessSlots: 10})

	// A stable address set under staleness-driven refetches never
	// grows the entry count, so the eviction bookkeeping must not
	// accumulate a record per overwrite.
	ctx := context.Background()
	slot := uint64(100)
	for i := 0; i < 1000; i++ {
		slot += 100
		f.setSlot(slot)
		// Refetching the first address advances the observed slot,
		// which makes the second stale and overwritten in turn.
		c.Invalidate(addrN(1))
		_, err := c.Get(ctx, addrN(1))
		require.NoError(t, err)
		_, err = c.Get(ctx, addrN(2))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len())
	c.mu.Lock()
	orderLen := len(c.order)
	c.mu.Unlock()
	assert.LessOrEqual(t, orderLen, 16, "overwritten records must be compacted away")
}

func TestInvalidate(t *testing.T) {
	f := &fakeFetcher{accounts: map[solana.PublicKey][]byte{addrN(1): {0x01}, addrN(2): {0x02}}, slot: 1}
	c := newTestCache(t, f, Config{})

	ctx := context.Background()
	_, _ = c.Get(ctx, addrN(1))
	_, _ = c.Get(ctx, addrN(2))
	require.Equal(t, int64(2), f.calls.Load())

	c.Invalidate(addrN(1))
	_, err := c.Get(ctx, addrN(1))
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.calls.Load())

	c.InvalidateAll()
	assert.Zero(t, c.Len())
	_, err = c.Get(ctx, addrN(2))
	require.NoError(t, err)
	assert.Equal(t, int64(4), f.calls.Load())
}
