package venue

import (
	"fmt"
	"math/rand/v2"
)

// maxProbesPerPhase structurally bounds each search phase. 64
// doublings (or halvings) cover the entire uint64 domain, so a
// conforming venue can never exhaust the budget; a misbehaving one
// cannot stall the engine.
const maxProbesPerPhase = 64

// probe evaluates the safety verdict at one input amount.
//
// Safe means: the quote succeeded and produced nonzero output (zero
// input is safe by contract regardless of output). Unsafe-at-input
// errors count as unsafe probes; anything else is fatal and aborts
// the search.
func probe(fn QuoteFunc, amount uint64) (bool, error) {
	res, err := fn(amount)
	if err != nil {
		if IsUnsafe(err) {
			return false, nil
		}
		return false, err
	}
	if amount == 0 {
		return true, nil
	}
	return res.AmountOut > 0, nil
}

// doubleCapped doubles x without passing cap.
func doubleCapped(x, cap uint64) uint64 {
	if x > cap/2 {
		return cap
	}
	return x * 2
}

// FindBoundary computes the safe input range for one direction of a
// venue, probing fn with exponential bracketing followed by exact
// binary refinement. fn must be pinned to one immutable snapshot; the
// result is invalid the moment that snapshot is replaced.
//
// Under the venue-conformance assumption that safety is a single
// contiguous band, the returned MinSafeInput and MaxSafeInput are the
// exact thresholds, not approximations. If the venue is safe all the
// way up to absoluteCap, MaxSafeInput is absoluteCap. If no input up
// to absoluteCap is safe, ErrNoSafeInput is returned.
//
// The probe count is bounded structurally; the search performs no
// heap allocation.
func FindBoundary(fn QuoteFunc, direction Direction, absoluteCap uint64) (Boundary, error) {
	if fn == nil {
		return Boundary{}, fmt.Errorf("find boundary: nil quote function")
	}
	if absoluteCap == 0 {
		return Boundary{}, fmt.Errorf("find boundary: %w", ErrNoSafeInput)
	}

	// Phase 1: double upward from 1 until the first safe probe.
	// unsafeLo tracks the largest amount known unsafe below it.
	var unsafeLo uint64
	x := uint64(1)
	safeFound := false
	for i := 0; i < maxProbesPerPhase; i++ {
		ok, err := probe(fn, x)
		if err != nil {
			return Boundary{}, err
		}
		if ok {
			safeFound = true
			break
		}
		unsafeLo = x
		if x >= absoluteCap {
			break
		}
		x = doubleCapped(x, absoluteCap)
	}
	if !safeFound {
		return Boundary{}, fmt.Errorf("no safe input in [1, %d]: %w", absoluteCap, ErrNoSafeInput)
	}

	// Refine the minimal safe input between unsafeLo (unsafe) and x
	// (safe). When x == 1 quoted safely on the first probe, the
	// minimum is 1 and there is nothing to refine.
	minSafe := x
	if unsafeLo > 0 {
		lo, hi := unsafeLo, x
		for i := 0; i < maxProbesPerPhase && hi-lo > 1; i++ {
			mid := lo + (hi-lo)/2
			ok, err := probe(fn, mid)
			if err != nil {
				return Boundary{}, err
			}
			if ok {
				hi = mid
			} else {
				lo = mid
			}
		}
		minSafe = hi
	}

	// Phase 2: keep doubling from the known-safe x until the first
	// unsafe probe or the cap.
	lo := x
	if lo >= absoluteCap {
		return Boundary{Direction: direction, MinSafeInput: minSafe, MaxSafeInput: absoluteCap}, nil
	}
	var hi uint64
	unsafeFound := false
	next := doubleCapped(lo, absoluteCap)
	for i := 0; i < maxProbesPerPhase; i++ {
		ok, err := probe(fn, next)
		if err != nil {
			return Boundary{}, err
		}
		if !ok {
			hi = next
			unsafeFound = true
			break
		}
		lo = next
		if next >= absoluteCap {
			break
		}
		next = doubleCapped(next, absoluteCap)
	}
	if !unsafeFound {
		// Safe at the cap itself; terminate without refinement.
		return Boundary{Direction: direction, MinSafeInput: minSafe, MaxSafeInput: absoluteCap}, nil
	}

	// Refinement: lo is safe, hi is unsafe. Narrow to hi-lo == 1.
	for i := 0; i < maxProbesPerPhase && hi-lo > 1; i++ {
		mid := lo + (hi-lo)/2
		ok, err := probe(fn, mid)
		if err != nil {
			return Boundary{}, err
		}
		if ok {
			lo = mid
		} else {
			hi = mid
		}
	}

	return Boundary{Direction: direction, MinSafeInput: minSafe, MaxSafeInput: lo}, nil
}

// VerifyBoundary spot-checks the monotonicity assumption behind
// FindBoundary by probing n random amounts strictly above
// b.MaxSafeInput (up to absoluteCap). A safe probe up there means the
// venue's safety is not a single contiguous band and the reported
// boundary cannot be trusted; that surfaces as ErrBoundaryInvariant.
//
// The check is probabilistic and optional; callers that trust their
// venues can skip it.
func VerifyBoundary(fn QuoteFunc, b Boundary, absoluteCap uint64, n int) error {
	if b.MaxSafeInput >= absoluteCap || n <= 0 {
		return nil
	}
	span := absoluteCap - b.MaxSafeInput
	for i := 0; i < n; i++ {
		x := b.MaxSafeInput + 1 + rand.Uint64N(span)
		ok, err := probe(fn, x)
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("input %d quotes safely above reported max %d: %w",
				x, b.MaxSafeInput, ErrBoundaryInvariant)
		}
	}
	return nil
}
