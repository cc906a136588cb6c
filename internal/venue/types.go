package venue

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Direction identifies which of a venue's two tokens is the input side
// of a swap. Boundaries and quotes are computed independently per
// direction; a venue need not have symmetric bounds.
type Direction uint8

const (
	DirectionAToB Direction = iota
	DirectionBToA
)

// Directions lists both swap directions for iteration.
var Directions = [2]Direction{DirectionAToB, DirectionBToA}

func (d Direction) String() string {
	switch d {
	case DirectionAToB:
		return "a_to_b"
	case DirectionBToA:
		return "b_to_a"
	}
	return "unknown"
}

// Opposite returns the reverse swap direction.
func (d Direction) Opposite() Direction {
	if d == DirectionAToB {
		return DirectionBToA
	}
	return DirectionAToB
}

// ParseDirection converts a string (as used in API queries and Redis
// keys) back into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "a_to_b":
		return DirectionAToB, nil
	case "b_to_a":
		return DirectionBToA, nil
	}
	return 0, ErrUnknownDirection
}

// TokenInfo holds mint-level metadata for one side of a venue.
type TokenInfo struct {
	Mint        solana.PublicKey
	Decimals    uint8
	IsToken2022 bool

	// Transfer-fee extension values, present only for Token-2022 mints
	// that carry the extension.
	TransferFeeBps *uint16
	MaximumFee     *uint64
}

// QuoteRequest asks a venue how many output atoms a given input would
// produce. All amounts are integer atom units.
type QuoteRequest struct {
	AmountIn  uint64
	Direction Direction
}

// QuoteResult is a successful quote. AmountOut of zero is permitted
// only when AmountIn was zero.
type QuoteResult struct {
	AmountIn  uint64
	AmountOut uint64
	FeeAmount uint64
}

// Boundary is the safe input range for one direction, valid only
// against the state snapshot it was computed from. A refresh
// invalidates it.
type Boundary struct {
	Direction    Direction `json:"direction"`
	MinSafeInput uint64    `json:"min_safe_input"`
	MaxSafeInput uint64    `json:"max_safe_input"`
}

// Contains reports whether amount falls inside the safe range.
func (b Boundary) Contains(amount uint64) bool {
	return amount >= b.MinSafeInput && amount <= b.MaxSafeInput
}

// QuoteFunc is a venue's quote bound to one immutable state snapshot
// and one direction. Implementations must be pure, must not perform
// I/O or allocate, and must classify every input deterministically:
// either a QuoteResult or an error from the closed taxonomy in this
// package. Zero input must always succeed.
type QuoteFunc func(amountIn uint64) (QuoteResult, error)

// AccountSource abstracts account retrieval for venue state updates.
// Implemented by accountcache.Cache; test harnesses use fixed maps.
type AccountSource interface {
	// Get returns the raw bytes of a single account.
	Get(ctx context.Context, address solana.PublicKey) ([]byte, error)

	// GetMany fetches a set of addresses in as few underlying reads as
	// possible. Every requested address appears in the result map or
	// an error is returned.
	GetMany(ctx context.Context, addresses []solana.PublicKey) (map[solana.PublicKey][]byte, error)

	// Slot is the most recent chain slot observed by the source.
	Slot() uint64
}

// Venue is the capability set every liquidity venue must implement to
// plug into the router. Implementations own their state snapshot
// exclusively and replace it atomically on UpdateState; they never
// mutate a snapshot a search may be reading.
type Venue interface {
	// ProgramID is the on-chain program executing swaps for this venue.
	ProgramID() solana.PublicKey

	// MarketID uniquely identifies the pool/market instance.
	MarketID() solana.PublicKey

	// Label is a human-readable venue name for logs and APIs.
	Label() string

	// TokenInfo returns metadata for both sides, A first.
	TokenInfo() [2]TokenInfo

	// RequiredAccounts lists the addresses UpdateState reads. The
	// router may prefetch them in one batch.
	RequiredAccounts() []solana.PublicKey

	// UpdateState decodes fresh account bytes into a new immutable
	// state snapshot. Decode failures return ErrDecode/ErrInvalidState;
	// transport failures pass through from the source.
	UpdateState(ctx context.Context, src AccountSource) error

	// Initialized reports whether a state snapshot has been loaded.
	Initialized() bool

	// Slot is the chain slot of the current snapshot, zero if none.
	Slot() uint64

	// Quote prices a swap against the current snapshot.
	Quote(req QuoteRequest) (QuoteResult, error)

	// QuoteFn returns a QuoteFunc pinned to the current snapshot, for
	// use by the boundary search. The returned function keeps quoting
	// against that snapshot even if UpdateState runs concurrently.
	QuoteFn(direction Direction) (QuoteFunc, error)

	// AbsoluteCap is the largest input that could ever be meaningful
	// for the direction, e.g. a vault-size ceiling. Bounds the
	// exponential probe.
	AbsoluteCap(direction Direction) uint64

	// SwapInstruction builds the on-chain instruction for a swap sized
	// from req. Opaque to the boundary engine.
	SwapInstruction(req QuoteRequest, minAmountOut uint64, user solana.PublicKey) (solana.Instruction, error)
}
