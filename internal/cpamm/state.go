package cpamm

import "github.com/aman-zulfiqar/solana-venue-bounds/internal/venue"

// State is an immutable snapshot of pool vault balances observed at a
// chain slot. A refresh builds a new State and swaps it in atomically;
// an existing snapshot is never mutated, so a boundary search keeps
// quoting against the state it started with even while a concurrent
// refresh runs.
type State struct {
	ReserveA uint64
	ReserveB uint64
	Slot     uint64
}

// reserves returns the reserves in (input, output) order for a
// swap direction
func (s *State) reserves(d venue.Direction) (reserveIn, reserveOut uint64) {
	if d == venue.DirectionAToB {
		return s.ReserveA, s.ReserveB
	}
	return s.ReserveB, s.ReserveA
}
