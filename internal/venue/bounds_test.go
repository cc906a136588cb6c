package venue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// thresholdQuote builds a synthetic quote function that is safe for
// every input in [0, threshold] and reports insufficient liquidity
// above it.
func thresholdQuote(threshold uint64) QuoteFunc {
	return func(amountIn uint64) (QuoteResult, error) {
		if amountIn == 0 {
			return QuoteResult{}, nil
		}
		if amountIn > threshold {
			return QuoteResult{}, ErrInsufficientLiquidity
		}
		return QuoteResult{AmountIn: amountIn, AmountOut: amountIn/2 + 1}, nil
	}
}

// bandQuote is safe only inside [minSafe, maxSafe]; below minSafe the
// output rounds to zero (dust), above maxSafe liquidity runs out.
func bandQuote(minSafe, maxSafe uint64) QuoteFunc {
	return func(amountIn uint64) (QuoteResult, error) {
		if amountIn == 0 {
			return QuoteResult{}, nil
		}
		if amountIn > maxSafe {
			return QuoteResult{}, ErrInsufficientLiquidity
		}
		if amountIn < minSafe {
			return QuoteResult{AmountIn: amountIn, AmountOut: 0}, nil
		}
		return QuoteResult{AmountIn: amountIn, AmountOut: 1}, nil
	}
}

func TestFindBoundaryExactThreshold(t *testing.T) {
	const absCap = uint64(2_000_000)

	cases := []struct {
		name      string
		threshold uint64
		wantMax   uint64
	}{
		{"smallest", 1, 1},
		{"mid_range", 1_000_000, 1_000_000},
		{"near_cap", absCap - 1, absCap - 1},
		{"at_cap", absCap, absCap},
		{"above_cap", absCap * 10, absCap}, // safe throughout, clamps to cap
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := FindBoundary(thresholdQuote(tc.threshold), DirectionAToB, absCap)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), b.MinSafeInput)
			assert.Equal(t, tc.wantMax, b.MaxSafeInput)
			assert.Equal(t, DirectionAToB, b.Direction)
		})
	}
}

func TestFindBoundaryMinimalSafeInput(t *testing.T) {
	// Dust inputs round to zero output, so the safe band starts above 1.
	b, err := FindBoundary(bandQuote(37, 90_000), DirectionBToA, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(37), b.MinSafeInput)
	assert.Equal(t, uint64(90_000), b.MaxSafeInput)
}

func TestFindBoundaryMonotonicConsistency(t *testing.T) {
	const absCap = uint64(1 << 30)
	const threshold = uint64(123_456_789)

	fn := thresholdQuote(threshold)
	b, err := FindBoundary(fn, DirectionAToB, absCap)
	require.NoError(t, err)

	// Every probe at or below the boundary is safe, every probe above
	// it (up to the cap) is unsafe.
	for _, amt := range []uint64{0, 1, b.MaxSafeInput / 2, b.MaxSafeInput - 1, b.MaxSafeInput} {
		ok, err := probe(fn, amt)
		require.NoError(t, err)
		assert.True(t, ok, "amount %d should be safe", amt)
	}
	for _, amt := range []uint64{b.MaxSafeInput + 1, b.MaxSafeInput * 2, absCap} {
		ok, err := probe(fn, amt)
		require.NoError(t, err)
		assert.False(t, ok, "amount %d should be unsafe", amt)
	}
}

func TestFindBoundaryIdempotent(t *testing.T) {
	fn := thresholdQuote(777_777)

	first, err := FindBoundary(fn, DirectionAToB, 2_000_000)
	require.NoError(t, err)
	second, err := FindBoundary(fn, DirectionAToB, 2_000_000)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFindBoundaryNoSafeInput(t *testing.T) {
	fn := func(amountIn uint64) (QuoteResult, error) {
		if amountIn == 0 {
			return QuoteResult{}, nil
		}
		return QuoteResult{}, ErrInsufficientLiquidity
	}

	_, err := FindBoundary(fn, DirectionAToB, 2_000_000)
	assert.ErrorIs(t, err, ErrNoSafeInput)

	_, err = FindBoundary(thresholdQuote(100), DirectionAToB, 0)
	assert.ErrorIs(t, err, ErrNoSafeInput)
}

func TestFindBoundaryFatalStateAborts(t *testing.T) {
	calls := 0
	fn := func(amountIn uint64) (QuoteResult, error) {
		calls++
		if amountIn >= 4 {
			return QuoteResult{}, ErrDecode
		}
		return QuoteResult{AmountIn: amountIn, AmountOut: 1}, nil
	}

	_, err := FindBoundary(fn, DirectionAToB, 1<<40)
	assert.ErrorIs(t, err, ErrDecode)
	// Aborted on the fatal probe, not retried to exhaustion.
	assert.LessOrEqual(t, calls, 4)
}

func TestFindBoundaryOverflowErrorIsUnsafe(t *testing.T) {
	// Arithmetic overflow at size is a boundary condition, exactly
	// like running out of liquidity.
	fn := func(amountIn uint64) (QuoteResult, error) {
		if amountIn > 50_000 {
			return QuoteResult{}, ErrAmountOverflow
		}
		return QuoteResult{AmountIn: amountIn, AmountOut: amountIn}, nil
	}

	b, err := FindBoundary(fn, DirectionBToA, 2_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000), b.MaxSafeInput)
}

func TestVerifyBoundaryDetectsNonMonotonicVenue(t *testing.T) {
	// Pathological venue: safe in [1,100], unsafe in (100,500), safe
	// again in [500,1000]. The search reports 100 and cannot know
	// better; the sampling check should catch the upper safe region.
	fn := func(amountIn uint64) (QuoteResult, error) {
		if amountIn == 0 {
			return QuoteResult{}, nil
		}
		if amountIn <= 100 || (amountIn >= 500 && amountIn <= 1000) {
			return QuoteResult{AmountIn: amountIn, AmountOut: 1}, nil
		}
		return QuoteResult{}, ErrInsufficientLiquidity
	}

	b, err := FindBoundary(fn, DirectionAToB, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), b.MaxSafeInput)

	err = VerifyBoundary(fn, b, 1000, 256)
	assert.ErrorIs(t, err, ErrBoundaryInvariant)
}

func TestVerifyBoundaryPassesMonotonicVenue(t *testing.T) {
	fn := thresholdQuote(100)
	b, err := FindBoundary(fn, DirectionAToB, 1000)
	require.NoError(t, err)
	assert.NoError(t, VerifyBoundary(fn, b, 1000, 64))
}

func TestFindBoundaryDoesNotAllocate(t *testing.T) {
	fn := thresholdQuote(123_456_789)

	allocs := testing.AllocsPerRun(100, func() {
		_, err := FindBoundary(fn, DirectionAToB, 1<<40)
		if err != nil {
			t.Fatal(err)
		}
	})
	assert.Zero(t, allocs)
}

func BenchmarkFindBoundary(b *testing.B) {
	fn := thresholdQuote(123_456_789)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := FindBoundary(fn, DirectionAToB, 1<<40); err != nil {
			b.Fatal(err)
		}
	}
}
