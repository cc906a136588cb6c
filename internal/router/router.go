package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-venue-bounds/internal/store"
	"github.com/aman-zulfiqar/solana-venue-bounds/internal/venue"
)

// ErrUnknownVenue is returned when a market id has no registered venue.
var ErrUnknownVenue = errors.New("unknown venue")

// Config holds dependencies and tuning for the router.
type Config struct {
	Venues []venue.Venue
	Cache  venue.AccountSource

	// Store, when set, receives every recomputed boundary for
	// out-of-process consumers.
	Store *store.Store

	// RefreshInterval drives the Run loop. Zero defaults to 30s.
	RefreshInterval time.Duration

	// VerifyProbes, when positive, enables the post-search sampling
	// check against non-monotonic venues.
	VerifyProbes int

	Logger *logrus.Logger
}

// Router owns the refresh cycle: it updates each venue's state
// snapshot, recomputes its per-direction boundaries against the fresh
// snapshot, and serves boundary lookups to the hot path. A venue that
// fails a refresh is excluded from that cycle while its last-known-good
// boundaries remain readable.
type Router struct {
	venues  []venue.Venue
	byID    map[solana.PublicKey]venue.Venue
	cache   venue.AccountSource
	store   *store.Store
	logger  *logrus.Logger
	verify  int
	refresh time.Duration

	mu      sync.RWMutex
	bounds  map[solana.PublicKey]map[venue.Direction]venue.Boundary
	running bool
}

// New creates a router over the given venues.
func New(cfg Config) (*Router, error) {
	if cfg.Cache == nil {
		return nil, fmt.Errorf("account cache is nil")
	}
	if len(cfg.Venues) == 0 {
		return nil, fmt.Errorf("no venues configured")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}

	byID := make(map[solana.PublicKey]venue.Venue, len(cfg.Venues))
	for _, v := range cfg.Venues {
		byID[v.MarketID()] = v
	}

	return &Router{
		venues:  cfg.Venues,
		byID:    byID,
		cache:   cfg.Cache,
		store:   cfg.Store,
		logger:  cfg.Logger,
		verify:  cfg.VerifyProbes,
		refresh: cfg.RefreshInterval,
		bounds:  make(map[solana.PublicKey]map[venue.Direction]venue.Boundary),
	}, nil
}

// Venues returns the registered venues.
func (r *Router) Venues() []venue.Venue {
	return r.venues
}

// Venue looks up a venue by market id.
func (r *Router) Venue(marketID solana.PublicKey) (venue.Venue, error) {
	v, ok := r.byID[marketID]
	if !ok {
		return nil, fmt.Errorf("market %s: %w", marketID, ErrUnknownVenue)
	}
	return v, nil
}

// Bounds returns the boundary computed against the venue's current
// snapshot. The second return is false while the venue has never
// completed a refresh.
func (r *Router) Bounds(marketID solana.PublicKey, direction venue.Direction) (venue.Boundary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byDir, ok := r.bounds[marketID]
	if !ok {
		return venue.Boundary{}, false
	}
	b, ok := byDir[direction]
	return b, ok
}

// Quote prices a swap on one venue and reports whether the amount
// falls inside the current safe range.
func (r *Router) Quote(marketID solana.PublicKey, req venue.QuoteRequest) (venue.QuoteResult, venue.Boundary, error) {
	v, err := r.Venue(marketID)
	if err != nil {
		return venue.QuoteResult{}, venue.Boundary{}, err
	}
	res, err := v.Quote(req)
	if err != nil {
		return venue.QuoteResult{}, venue.Boundary{}, err
	}
	b, _ := r.Bounds(marketID, req.Direction)
	return res, b, nil
}

// RefreshAll refreshes every venue concurrently. Per-venue failures
// are logged and the venue keeps its last-known-good snapshot and
// boundaries; the first error is returned for observability.
func (r *Router) RefreshAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, len(r.venues))

	for i, v := range r.venues {
		wg.Add(1)
		go func(i int, v venue.Venue) {
			defer wg.Done()
			errs[i] = r.refreshVenue(ctx, v)
		}(i, v)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// refreshVenue updates one venue's snapshot and recomputes both
// directions' boundaries against it.
func (r *Router) refreshVenue(ctx context.Context, v venue.Venue) error {
	log := r.logger.WithFields(logrus.Fields{
		"venue":  v.Label(),
		"market": v.MarketID().String(),
	})

	if err := v.UpdateState(ctx, r.cache); err != nil {
		if venue.IsFatalState(err) {
			log.WithError(err).Error("venue state invalid, keeping last-known-good snapshot")
		} else {
			log.WithError(err).Warn("venue refresh failed, will retry next cycle")
		}
		return err
	}

	next := make(map[venue.Direction]venue.Boundary, 2)
	for _, d := range venue.Directions {
		b, err := r.computeBoundary(v, d)
		if err != nil {
			if errors.Is(err, venue.ErrNoSafeInput) {
				// Routable range is empty (e.g. drained pool); record a
				// zero boundary so the router sizes nothing through it.
				log.WithField("direction", d.String()).Info("venue has no safe input")
				next[d] = venue.Boundary{Direction: d}
				continue
			}
			log.WithError(err).WithField("direction", d.String()).Error("boundary search failed")
			return err
		}
		next[d] = b
	}

	r.mu.Lock()
	r.bounds[v.MarketID()] = next
	r.mu.Unlock()

	for _, b := range next {
		log.WithFields(logrus.Fields{
			"direction": b.Direction.String(),
			"min_safe":  b.MinSafeInput,
			"max_safe":  b.MaxSafeInput,
			"slot":      v.Slot(),
		}).Debug("boundary recomputed")

		if r.store != nil {
			if err := r.store.PublishBoundary(ctx, v.MarketID().String(), b, v.Slot()); err != nil {
				log.WithError(err).Warn("failed to publish boundary")
			}
		}
	}

	return nil
}

func (r *Router) computeBoundary(v venue.Venue, d venue.Direction) (venue.Boundary, error) {
	fn, err := v.QuoteFn(d)
	if err != nil {
		return venue.Boundary{}, err
	}
	absCap := v.AbsoluteCap(d)

	b, err := venue.FindBoundary(fn, d, absCap)
	if err != nil {
		return venue.Boundary{}, err
	}

	if r.verify > 0 {
		if err := venue.VerifyBoundary(fn, b, absCap, r.verify); err != nil {
			return venue.Boundary{}, err
		}
	}
	return b, nil
}

// Run refreshes all venues on the configured interval until the
// context is canceled.
func (r *Router) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("router already running")
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.logger.WithFields(logrus.Fields{
		"venues":   len(r.venues),
		"interval": r.refresh,
	}).Info("router refresh loop started")

	if err := r.RefreshAll(ctx); err != nil {
		r.logger.WithError(err).Warn("initial refresh incomplete")
	}

	ticker := time.NewTicker(r.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router refresh loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.RefreshAll(ctx); err != nil {
				r.logger.WithError(err).Warn("refresh cycle incomplete")
			}
		}
	}
}
