package cpamm

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-venue-bounds/internal/venue"
)

// SPL token account layout: mint (32) | owner (32) | amount (u64 LE) | ...
const (
	splTokenAccountLen = 165
	tokenAmountOffset  = 64
)

// PoolVenue adapts a constant-product pool into the venue capability
// set. The state snapshot is held behind an atomic pointer and
// replaced wholesale on UpdateState.
type PoolVenue struct {
	pool   *Pool
	tokens [2]venue.TokenInfo
	logger *logrus.Logger

	state atomic.Pointer[State]
}

var _ venue.Venue = (*PoolVenue)(nil)

// NewVenue wraps a registry pool as a routable venue. The venue is
// not quotable until UpdateState has run once.
func NewVenue(pool *Pool, logger *logrus.Logger) *PoolVenue {
	if logger == nil {
		logger = logrus.New()
	}
	return &PoolVenue{
		pool:   pool,
		logger: logger,
		tokens: [2]venue.TokenInfo{
			{Mint: pool.TokenMintA, Decimals: pool.DecimalsA},
			{Mint: pool.TokenMintB, Decimals: pool.DecimalsB},
		},
	}
}

func (v *PoolVenue) ProgramID() solana.PublicKey { return v.pool.ProgramID }
func (v *PoolVenue) MarketID() solana.PublicKey  { return v.pool.SwapAccount }
func (v *PoolVenue) Label() string               { return v.pool.Name }
func (v *PoolVenue) TokenInfo() [2]venue.TokenInfo {
	return v.tokens
}

// Pool exposes the static pool configuration.
func (v *PoolVenue) Pool() *Pool { return v.pool }

// RequiredAccounts lists the vault accounts a refresh reads.
func (v *PoolVenue) RequiredAccounts() []solana.PublicKey {
	return []solana.PublicKey{v.pool.VaultA, v.pool.VaultB}
}

func (v *PoolVenue) Initialized() bool {
	return v.state.Load() != nil
}

func (v *PoolVenue) Slot() uint64 {
	if s := v.state.Load(); s != nil {
		return s.Slot
	}
	return 0
}

// decodeTokenAmount extracts the balance from raw SPL token account
// bytes, validating length and that the account holds the expected
// mint.
func decodeTokenAmount(data []byte, wantMint solana.PublicKey) (uint64, error) {
	if len(data) != splTokenAccountLen {
		return 0, fmt.Errorf("token account length %d, want %d: %w",
			len(data), splTokenAccountLen, venue.ErrDecode)
	}
	var mint solana.PublicKey
	copy(mint[:], data[:32])
	if !mint.Equals(wantMint) {
		return 0, fmt.Errorf("vault holds mint %s, want %s: %w", mint, wantMint, venue.ErrInvalidState)
	}
	return binary.LittleEndian.Uint64(data[tokenAmountOffset : tokenAmountOffset+8]), nil
}

// UpdateState fetches both vault accounts in one batch and swaps in a
// fresh snapshot. Transport errors pass through untouched so callers
// can distinguish them from decode failures.
func (v *PoolVenue) UpdateState(ctx context.Context, src venue.AccountSource) error {
	accounts, err := src.GetMany(ctx, v.RequiredAccounts())
	if err != nil {
		return fmt.Errorf("fetch vaults for %s: %w", v.pool.Name, err)
	}

	reserveA, err := decodeTokenAmount(accounts[v.pool.VaultA], v.pool.TokenMintA)
	if err != nil {
		return fmt.Errorf("vault A of %s: %w", v.pool.Name, err)
	}
	reserveB, err := decodeTokenAmount(accounts[v.pool.VaultB], v.pool.TokenMintB)
	if err != nil {
		return fmt.Errorf("vault B of %s: %w", v.pool.Name, err)
	}

	next := &State{
		ReserveA: reserveA,
		ReserveB: reserveB,
		Slot:     src.Slot(),
	}
	v.state.Store(next)

	v.logger.WithFields(logrus.Fields{
		"pool":      v.pool.Name,
		"reserve_a": reserveA,
		"reserve_b": reserveB,
		"slot":      next.Slot,
	}).Debug("pool state refreshed")

	return nil
}

func (v *PoolVenue) quoteAt(s *State, req venue.QuoteRequest) (venue.QuoteResult, error) {
	reserveIn, reserveOut := s.reserves(req.Direction)
	amountOut, feeAmount, err := swapOutput(
		req.AmountIn, reserveIn, reserveOut,
		v.pool.FeeNumerator, v.pool.FeeDenominator,
	)
	if err != nil {
		return venue.QuoteResult{}, err
	}
	return venue.QuoteResult{
		AmountIn:  req.AmountIn,
		AmountOut: amountOut,
		FeeAmount: feeAmount,
	}, nil
}

// Quote prices a swap against the current snapshot.
func (v *PoolVenue) Quote(req venue.QuoteRequest) (venue.QuoteResult, error) {
	s := v.state.Load()
	if s == nil {
		return venue.QuoteResult{}, fmt.Errorf("pool %s: %w", v.pool.Name, venue.ErrNotInitialized)
	}
	return v.quoteAt(s, req)
}

// QuoteFn pins the current snapshot behind a QuoteFunc for the
// boundary search. The one allocation (the closure) happens here,
// before the search loop runs.
func (v *PoolVenue) QuoteFn(direction venue.Direction) (venue.QuoteFunc, error) {
	s := v.state.Load()
	if s == nil {
		return nil, fmt.Errorf("pool %s: %w", v.pool.Name, venue.ErrNotInitialized)
	}
	return func(amountIn uint64) (venue.QuoteResult, error) {
		return v.quoteAt(s, venue.QuoteRequest{AmountIn: amountIn, Direction: direction})
	}, nil
}

// AbsoluteCap bounds the boundary probe at twice the input-side vault
// balance; inputs beyond doubling the pool are never routable.
func (v *PoolVenue) AbsoluteCap(direction venue.Direction) uint64 {
	s := v.state.Load()
	if s == nil {
		return 0
	}
	reserveIn, _ := s.reserves(direction)
	if reserveIn > math.MaxUint64/2 {
		return math.MaxUint64
	}
	return reserveIn * 2
}

// SwapInstruction derives the user's associated token accounts and
// builds the on-chain swap instruction sized from req.
func (v *PoolVenue) SwapInstruction(req venue.QuoteRequest, minAmountOut uint64, user solana.PublicKey) (solana.Instruction, error) {
	inMint := v.pool.TokenMintA
	outMint := v.pool.TokenMintB
	if req.Direction == venue.DirectionBToA {
		inMint, outMint = outMint, inMint
	}

	userIn, _, err := solana.FindAssociatedTokenAddress(user, inMint)
	if err != nil {
		return nil, fmt.Errorf("derive input token account: %w", err)
	}
	userOut, _, err := solana.FindAssociatedTokenAddress(user, outMint)
	if err != nil {
		return nil, fmt.Errorf("derive output token account: %w", err)
	}

	return BuildSwapInstruction(v.pool, req.AmountIn, minAmountOut, user, userIn, userOut, req.Direction)
}
