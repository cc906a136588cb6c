package accountcache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound means the address has no account on chain. Negative
	// results are cached so missing accounts are not refetched every
	// request.
	ErrNotFound = errors.New("account not found")

	// ErrFetch wraps transport failures from the underlying fetcher.
	// Retryable; never mixed up with venue state errors.
	ErrFetch = errors.New("account fetch failed")
)

// Result is the per-address outcome of a batched fetch.
type Result struct {
	Data []byte
	Err  error
}

// Fetcher is the injected batched-read transport (an RPC client in
// production, a fixed map in tests). It returns one Result per
// requested address plus the chain slot the read was served at. A
// returned error means the whole batch failed at the transport level.
type Fetcher interface {
	FetchAccounts(ctx context.Context, addresses []solana.PublicKey) (map[solana.PublicKey]Result, uint64, error)
}

// Config holds construction parameters for the cache.
type Config struct {
	Fetcher Fetcher

	// MaxEntries bounds the cache size; oldest insertions are evicted
	// first. Zero means a default of 4096.
	MaxEntries int

	// StalenessSlots is how many slots behind the latest observed slot
	// an entry may be before it is refetched. Zero means entries never
	// expire on their own (explicit invalidation only).
	StalenessSlots uint64

	// FetchRatePerSec throttles underlying fetches; zero disables
	// throttling. Public RPC endpoints rate-limit aggressively.
	FetchRatePerSec float64
	FetchBurst      int

	Logger *logrus.Logger
}

type entry struct {
	data []byte
	err  error // ErrNotFound for negative entries
	slot uint64
	seq  uint64
}

type evictRecord struct {
	addr solana.PublicKey
	seq  uint64
}

// flight coalesces concurrent fetches of one or more addresses. Only
// transport-level failure is carried on the flight itself; per-address
// results land in the entries map before done is closed, so joiners
// read them from there.
type flight struct {
	done chan struct{}
	err  error
}

// Cache is a concurrency-safe store of raw account bytes shared
// across all venues. Concurrent requests for an address already being
// fetched wait for the in-flight fetch instead of issuing another.
type Cache struct {
	fetcher    Fetcher
	limiter    *rate.Limiter
	logger     *logrus.Logger
	maxEntries int
	staleness  uint64

	mu       sync.Mutex
	entries  map[solana.PublicKey]*entry
	order    []evictRecord
	inflight map[solana.PublicKey]*flight
	lastSlot uint64
	seq      uint64
}

// New creates a cache around the given fetcher.
func New(cfg Config) (*Cache, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 4096
	}

	var limiter *rate.Limiter
	if cfg.FetchRatePerSec > 0 {
		burst := cfg.FetchBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.FetchRatePerSec), burst)
	}

	return &Cache{
		fetcher:    cfg.Fetcher,
		limiter:    limiter,
		logger:     cfg.Logger,
		maxEntries: cfg.MaxEntries,
		staleness:  cfg.StalenessSlots,
		entries:    make(map[solana.PublicKey]*entry),
		inflight:   make(map[solana.PublicKey]*flight),
	}, nil
}

// Slot returns the most recent chain slot observed by any fetch.
func (c *Cache) Slot() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSlot
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// freshLocked reports whether e is within the staleness tolerance.
func (c *Cache) freshLocked(e *entry) bool {
	if c.staleness == 0 {
		return true
	}
	return c.lastSlot-e.slot <= c.staleness
}

// storeLocked inserts one fetch result and evicts down to the bound.
func (c *Cache) storeLocked(addr solana.PublicKey, res Result, slot uint64) {
	c.seq++
	c.entries[addr] = &entry{data: res.Data, err: res.Err, slot: slot, seq: c.seq}
	c.order = append(c.order, evictRecord{addr: addr, seq: c.seq})

	for len(c.entries) > c.maxEntries && len(c.order) > 0 {
		rec := c.order[0]
		c.order = c.order[1:]
		// The record is stale if the entry was overwritten since.
		if e, ok := c.entries[rec.addr]; ok && e.seq == rec.seq {
			delete(c.entries, rec.addr)
		}
	}

	// Overwrites (staleness refetches, invalidation) leave stale
	// records behind without shrinking the entry count, so the slice
	// would grow forever on a stable address set. Compact once the
	// stale records outnumber the live ones.
	if len(c.order) > 2*c.maxEntries {
		live := make([]evictRecord, 0, len(c.entries))
		for _, rec := range c.order {
			if e, ok := c.entries[rec.addr]; ok && e.seq == rec.seq {
				live = append(live, rec)
			}
		}
		c.order = live
	}
}

// Get returns the cached bytes for address, fetching on miss or when
// the entry is older than the staleness tolerance. Concurrent callers
// for the same uncached address share a single underlying fetch.
func (c *Cache) Get(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	c.mu.Lock()
	for {
		if e, ok := c.entries[address]; ok && c.freshLocked(e) {
			data, err := e.data, e.err
			c.mu.Unlock()
			return data, err
		}
		fl, ok := c.inflight[address]
		if !ok {
			break
		}
		// The flight may belong to a GetMany batch, which carries no
		// per-address data; wait for it and re-read from the cache.
		c.mu.Unlock()
		select {
		case <-fl.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if fl.err != nil {
			return nil, fl.err
		}
		c.mu.Lock()
	}

	fl := &flight{done: make(chan struct{})}
	c.inflight[address] = fl
	c.mu.Unlock()

	results, slot, err := c.fetch(ctx, []solana.PublicKey{address})

	c.mu.Lock()
	delete(c.inflight, address)
	var res Result
	if err == nil {
		res = results[address]
		c.storeLocked(address, res, slot)
	}
	c.mu.Unlock()
	fl.err = err
	close(fl.done)

	if err != nil {
		return nil, err
	}
	return res.Data, res.Err
}

// GetMany returns bytes for every address, serving hits from the
// cache, joining in-flight fetches, and batching the remaining misses
// into a single underlying fetch. Any per-address failure (including
// a missing account) fails the whole call, since a venue cannot build
// a snapshot from a partial account set.
func (c *Cache) GetMany(ctx context.Context, addresses []solana.PublicKey) (map[solana.PublicKey][]byte, error) {
	out := make(map[solana.PublicKey][]byte, len(addresses))

	var misses []solana.PublicKey
	var joined []*flight
	var joinedAddrs []solana.PublicKey

	c.mu.Lock()
	for _, addr := range addresses {
		if _, ok := out[addr]; ok {
			continue // duplicate input address
		}
		if e, ok := c.entries[addr]; ok && c.freshLocked(e) {
			if e.err != nil {
				c.mu.Unlock()
				return nil, fmt.Errorf("account %s: %w", addr, e.err)
			}
			out[addr] = e.data
			continue
		}
		if fl, ok := c.inflight[addr]; ok {
			joined = append(joined, fl)
			joinedAddrs = append(joinedAddrs, addr)
			continue
		}
		misses = append(misses, addr)
	}

	var lead *flight
	if len(misses) > 0 {
		lead = &flight{done: make(chan struct{})}
		for _, addr := range misses {
			c.inflight[addr] = lead
		}
	}
	c.mu.Unlock()

	if lead != nil {
		results, slot, err := c.fetch(ctx, misses)

		c.mu.Lock()
		for _, addr := range misses {
			delete(c.inflight, addr)
		}
		if err == nil {
			for _, addr := range misses {
				c.storeLocked(addr, results[addr], slot)
			}
		}
		c.mu.Unlock()
		lead.err = err
		close(lead.done)

		if err != nil {
			return nil, err
		}
		for _, addr := range misses {
			res := results[addr]
			if res.Err != nil {
				return nil, fmt.Errorf("account %s: %w", addr, res.Err)
			}
			out[addr] = res.Data
		}
	}

	// Join fetches issued by other callers. The leader stored results
	// in the cache before signaling, so a fresh lookup serves them.
	for i, fl := range joined {
		select {
		case <-fl.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if fl.err != nil {
			return nil, fl.err
		}
		data, err := c.Get(ctx, joinedAddrs[i])
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", joinedAddrs[i], err)
		}
		out[joinedAddrs[i]] = data
	}

	return out, nil
}

// fetch calls the underlying fetcher, honoring the rate limit.
func (c *Cache) fetch(ctx context.Context, addresses []solana.PublicKey) (map[solana.PublicKey]Result, uint64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	results, slot, err := c.fetcher.FetchAccounts(ctx, addresses)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"addresses": len(addresses),
			"error":     err,
		}).Warn("account fetch failed")
		return nil, 0, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	c.mu.Lock()
	if slot > c.lastSlot {
		c.lastSlot = slot
	}
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"addresses": len(addresses),
		"slot":      slot,
	}).Debug("fetched accounts")

	return results, slot, nil
}

// Invalidate evicts a single address, forcing a refetch on next use.
// Used after an action known to have changed on-chain state.
func (c *Cache) Invalidate(address solana.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, address)
}

// InvalidateAll clears every cached entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[solana.PublicKey]*entry)
	c.order = c.order[:0]
}
