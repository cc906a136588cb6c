package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/solana-venue-bounds/internal/venue"
)

// Quote prices a swap on one venue and reports whether the amount sits
// inside the current safe range
// Query parameters: market (base58), direction (a_to_b|b_to_a), amount (uint64)
func (h *Handlers) Quote(c echo.Context) error {
	marketStr := strings.TrimSpace(c.QueryParam("market"))
	directionStr := strings.TrimSpace(c.QueryParam("direction"))
	amountStr := strings.TrimSpace(c.QueryParam("amount"))

	if marketStr == "" {
		return h.err(c, http.StatusBadRequest, "invalid market", map[string]any{"market": "required"})
	}
	market, err := solana.PublicKeyFromBase58(marketStr)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid market", map[string]any{"market": "must be a base58 public key"})
	}

	if directionStr == "" {
		return h.err(c, http.StatusBadRequest, "invalid direction", map[string]any{"direction": "required"})
	}
	direction, err := venue.ParseDirection(directionStr)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid direction", map[string]any{"direction": "must be a_to_b or b_to_a"})
	}

	if amountStr == "" {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "required"})
	}
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "must be uint64"})
	}

	res, bounds, err := h.Router.Quote(market, venue.QuoteRequest{
		AmountIn:  amount,
		Direction: direction,
	})
	if err != nil {
		return h.quoteError(c, err)
	}

	return c.JSON(http.StatusOK, QuoteResponse{
		Market:       market.String(),
		Direction:    direction.String(),
		AmountIn:     res.AmountIn,
		AmountOut:    res.AmountOut,
		FeeAmount:    res.FeeAmount,
		InBounds:     bounds.Contains(amount),
		MinSafeInput: bounds.MinSafeInput,
		MaxSafeInput: bounds.MaxSafeInput,
	})
}
