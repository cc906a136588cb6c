package venue

import "errors"

// The error taxonomy is closed: a conforming venue classifies every
// input as either a QuoteResult or one of these errors. The boundary
// engine distinguishes expected boundary conditions (unsafe-at-input,
// which drive the search) from fatal state errors (which abort it).
var (
	// Unsafe-at-input: expected boundary conditions.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity for input amount")
	ErrAmountOverflow        = errors.New("input amount overflows venue arithmetic")

	// Fatal state errors: the snapshot is unusable.
	ErrNotInitialized = errors.New("venue state not loaded")
	ErrDecode         = errors.New("account data decode failed")
	ErrInvalidState   = errors.New("venue account state invalid")

	// Boundary engine outcomes.
	ErrNoSafeInput       = errors.New("no safe input amount below cap")
	ErrBoundaryInvariant = errors.New("safety is not monotonic above boundary")

	ErrUnknownDirection = errors.New("unknown swap direction")
)

// IsUnsafe reports whether err is an expected boundary condition that
// should drive the search like a zero-output result, rather than
// propagate as a failure.
func IsUnsafe(err error) bool {
	return errors.Is(err, ErrInsufficientLiquidity) || errors.Is(err, ErrAmountOverflow)
}

// IsFatalState reports whether err means the venue's snapshot is
// corrupted or missing, so any search over it is meaningless.
func IsFatalState(err error) bool {
	return errors.Is(err, ErrNotInitialized) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrInvalidState)
}
