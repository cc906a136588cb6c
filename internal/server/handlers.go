package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-venue-bounds/internal/router"
	"github.com/aman-zulfiqar/solana-venue-bounds/internal/venue"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Router  *router.Router     // Venue registry and boundary lookups
	Cache   venue.AccountSource // Used for the observed chain slot in /health
	DevMode bool               // Enable detailed error responses in development
	Logger  *logrus.Logger     // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	resp := HealthResponse{OK: true}
	if h.Cache != nil {
		resp.Slot = h.Cache.Slot()
	}
	return c.JSON(http.StatusOK, resp)
}

// Echo returns the received JSON payload as-is (useful for testing)
func (h *Handlers) Echo(c echo.Context) error {
	var v any
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(&v); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	return c.JSON(http.StatusOK, v)
}

// Venues lists every registered venue with its refresh status
func (h *Handlers) Venues(c echo.Context) error {
	venues := h.Router.Venues()
	items := make([]VenueResponse, 0, len(venues))
	for _, v := range venues {
		tokens := v.TokenInfo()
		items = append(items, VenueResponse{
			Label:   v.Label(),
			Market:  v.MarketID().String(),
			Program: v.ProgramID().String(),
			TokenA: TokenResponse{
				Mint:     tokens[0].Mint.String(),
				Decimals: tokens[0].Decimals,
			},
			TokenB: TokenResponse{
				Mint:     tokens[1].Mint.String(),
				Decimals: tokens[1].Decimals,
			},
			Initialized: v.Initialized(),
			Slot:        v.Slot(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Bounds returns the safe input range for one venue
// Accepts an optional direction query parameter; both directions are
// returned when it is absent
func (h *Handlers) Bounds(c echo.Context) error {
	market, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.Param("market")))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid market", map[string]any{"market": "must be a base58 public key"})
	}
	v, err := h.Router.Venue(market)
	if err != nil {
		return h.err(c, http.StatusNotFound, "unknown venue", nil)
	}

	directions := venue.Directions[:]
	if raw := strings.TrimSpace(c.QueryParam("direction")); raw != "" {
		d, err := venue.ParseDirection(raw)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid direction", map[string]any{"direction": "must be a_to_b or b_to_a"})
		}
		directions = []venue.Direction{d}
	}

	items := make([]BoundsResponse, 0, len(directions))
	for _, d := range directions {
		b, ok := h.Router.Bounds(market, d)
		if !ok {
			// The venue exists but has not completed a refresh yet.
			return h.err(c, http.StatusServiceUnavailable, "bounds not yet computed", nil)
		}
		items = append(items, BoundsResponse{
			Market:       market.String(),
			Direction:    d.String(),
			MinSafeInput: b.MinSafeInput,
			MaxSafeInput: b.MaxSafeInput,
			Slot:         v.Slot(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) quoteError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, router.ErrUnknownVenue):
		return h.err(c, http.StatusNotFound, "unknown venue", nil)
	case errors.Is(err, venue.ErrNotInitialized):
		return h.err(c, http.StatusServiceUnavailable, "venue state not loaded", nil)
	case venue.IsUnsafe(err):
		return h.err(c, http.StatusUnprocessableEntity, "amount not executable", map[string]any{"reason": err.Error()})
	default:
		h.Logger.WithError(err).Error("quote failed")
		return h.err(c, http.StatusInternalServerError, "quote failed", nil)
	}
}
