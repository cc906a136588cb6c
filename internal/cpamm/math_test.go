package cpamm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-venue-bounds/internal/venue"
)

func TestSwapOutputZeroInput(t *testing.T) {
	out, fee, err := swapOutput(0, 1_000_000, 1_000_000, 3, 1000)
	require.NoError(t, err)
	assert.Zero(t, out)
	assert.Zero(t, fee)
}

func TestSwapOutputClosedForm(t *testing.T) {
	// Reserves 1_000_000 / 1_000_000, 0.3% fee on input.
	// afterFee = floor(in * 997 / 1000)
	// out      = floor(afterFee * 1_000_000 / (1_000_000 + afterFee))
	cases := []struct {
		name     string
		amountIn uint64
		wantOut  uint64
		wantFee  uint64
	}{
		{"dust_rounds_to_zero", 2, 0, 1},      // afterFee=1, out=floor(1e6/1000001)=0
		{"first_nonzero_output", 3, 1, 1},     // afterFee=2, out=1
		{"mid_size", 100_000, 90_661, 300},    // afterFee=99700, out=floor(99700e6/1099700)
		{"pool_sized", 1_000_000, 499_248, 3000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, fee, err := swapOutput(tc.amountIn, 1_000_000, 1_000_000, 3, 1000)
			require.NoError(t, err)
			assert.Equal(t, tc.wantOut, out)
			assert.Equal(t, tc.wantFee, fee)
		})
	}
}

func TestSwapOutputEmptyPool(t *testing.T) {
	_, _, err := swapOutput(100, 0, 1_000_000, 3, 1000)
	assert.ErrorIs(t, err, venue.ErrInsufficientLiquidity)

	_, _, err = swapOutput(100, 1_000_000, 0, 3, 1000)
	assert.ErrorIs(t, err, venue.ErrInsufficientLiquidity)
}

func TestSwapOutputOverflowClassified(t *testing.T) {
	// Input reserve near the top of the u64 range: adding the input
	// overflows and must surface as the overflow error, not wrap.
	_, _, err := swapOutput(1000, math.MaxUint64-10, 1_000_000, 0, 1000)
	assert.ErrorIs(t, err, venue.ErrAmountOverflow)
}

func TestSwapOutputDoesNotAllocate(t *testing.T) {
	allocs := testing.AllocsPerRun(1000, func() {
		_, _, err := swapOutput(123_456, 1_000_000_000, 2_000_000_000, 25, 10_000)
		if err != nil {
			t.Fatal(err)
		}
	})
	assert.Zero(t, allocs)
}

func TestFeeBps(t *testing.T) {
	assert.Equal(t, uint16(30), FeeBps(3, 1000))
	assert.Equal(t, uint16(25), FeeBps(25, 10_000))
	assert.Equal(t, uint16(0), FeeBps(1, 0))
}

func TestPriceImpact(t *testing.T) {
	// Swapping against equal reserves always executes below spot.
	impact := PriceImpact(100_000, 90_661, 1_000_000, 1_000_000)
	assert.Greater(t, impact, 0.0)
	assert.Less(t, impact, 1.0)

	assert.Zero(t, PriceImpact(0, 0, 1_000_000, 1_000_000))
}

func BenchmarkSwapOutput(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _, _ = swapOutput(123_456, 1_000_000_000, 2_000_000_000, 25, 10_000)
	}
}
