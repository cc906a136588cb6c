package cpamm

import (
	"math"
	"math/bits"

	"github.com/aman-zulfiqar/solana-venue-bounds/internal/venue"
)

// swapOutput computes constant-product output (x * y = k) with the
// fee applied to the input. Intermediates are 128-bit via math/bits
// so the quote path never allocates; any value that would not fit
// back into 64 bits is classified as an overflow error, never
// silently truncated.
func swapOutput(amountIn, reserveIn, reserveOut, feeNumerator, feeDenominator uint64) (amountOut, feeAmount uint64, err error) {
	if amountIn == 0 {
		// Zero input is always quotable: zero out, zero fee.
		return 0, 0, nil
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, 0, venue.ErrInsufficientLiquidity
	}

	// amountInAfterFee = amountIn * (feeDenominator - feeNumerator) / feeDenominator
	hi, lo := bits.Mul64(amountIn, feeDenominator-feeNumerator)
	if hi >= feeDenominator {
		return 0, 0, venue.ErrAmountOverflow
	}
	afterFee, _ := bits.Div64(hi, lo, feeDenominator)
	feeAmount = amountIn - afterFee

	// out = (amountInAfterFee * reserveOut) / (reserveIn + amountInAfterFee)
	denominator := reserveIn + afterFee
	if denominator < reserveIn {
		return 0, 0, venue.ErrAmountOverflow
	}
	hi, lo = bits.Mul64(afterFee, reserveOut)
	if hi >= denominator {
		return 0, 0, venue.ErrAmountOverflow
	}
	amountOut, _ = bits.Div64(hi, lo, denominator)

	if amountOut >= reserveOut {
		return 0, 0, venue.ErrInsufficientLiquidity
	}

	return amountOut, feeAmount, nil
}

// FeeBps converts a fee numerator/denominator pair to basis points
func FeeBps(feeNumerator, feeDenominator uint64) uint16 {
	if feeDenominator == 0 {
		return 0
	}
	return uint16((feeNumerator * 10000) / feeDenominator)
}

// PriceImpact estimates how far the execution rate falls below the
// spot rate, as a fraction (0.01 = 1%). Float math; display only,
// never on the quoting hot path.
func PriceImpact(amountIn, amountOut, reserveIn, reserveOut uint64) float64 {
	if amountIn == 0 || reserveIn == 0 {
		return 0
	}
	idealRate := float64(reserveOut) / float64(reserveIn)
	if idealRate <= 0 {
		return 0
	}
	executionRate := float64(amountOut) / float64(amountIn)
	return math.Max(0, 1-(executionRate/idealRate))
}
