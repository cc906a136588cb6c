package server

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK   bool   `json:"ok"`             // Service health status
	Slot uint64 `json:"slot,omitempty"` // Most recent chain slot observed
}

// TokenResponse describes one side of a venue
type TokenResponse struct {
	Mint     string `json:"mint"`
	Decimals uint8  `json:"decimals"`
}

// VenueResponse describes a registered venue and its refresh status
type VenueResponse struct {
	Label       string        `json:"label"`
	Market      string        `json:"market"`
	Program     string        `json:"program"`
	TokenA      TokenResponse `json:"token_a"`
	TokenB      TokenResponse `json:"token_b"`
	Initialized bool          `json:"initialized"`
	Slot        uint64        `json:"slot"`
}

// BoundsResponse is the safe input range for one direction of a venue
type BoundsResponse struct {
	Market       string `json:"market"`
	Direction    string `json:"direction"`
	MinSafeInput uint64 `json:"min_safe_input"`
	MaxSafeInput uint64 `json:"max_safe_input"`
	Slot         uint64 `json:"slot"`
}

// QuoteResponse is a priced swap plus its position relative to the
// current safe range
type QuoteResponse struct {
	Market    string `json:"market"`
	Direction string `json:"direction"`
	AmountIn  uint64 `json:"amount_in"`
	AmountOut uint64 `json:"amount_out"`
	FeeAmount uint64 `json:"fee_amount"`
	InBounds  bool   `json:"in_bounds"`

	MinSafeInput uint64 `json:"min_safe_input"`
	MaxSafeInput uint64 `json:"max_safe_input"`
}
