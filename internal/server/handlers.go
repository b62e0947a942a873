package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-ledger/internal/constants"
	"github.com/aman-zulfiqar/amm-ledger/internal/engine"
	"github.com/aman-zulfiqar/amm-ledger/internal/storage"
	"github.com/aman-zulfiqar/amm-ledger/internal/tokens"
)

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Engine  *engine.Engine     // Ledger engine
	Events  storage.EventCache // Redis-backed recent events (optional)
	Tokens  *tokens.Store      // Redis-backed token directory (optional)
	DevMode bool               // Enable detailed error responses in development
	Logger  *logrus.Logger     // Structured logger
	Timeout time.Duration      // Per-request timeout for engine calls
	Now     func() time.Time   // Clock; defaults to time.Now
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

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *Handlers) logger() *logrus.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true, Pools: h.Engine.PoolCount()})
}

// FeeTiers lists the supported fee tiers
func (h *Handlers) FeeTiers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"items": h.Engine.FeeTiers()})
}

// RecentEvents returns the most recent ledger events with optional limit parameter
// Accepts limit query parameter (default: 100, range: 1-200)
func (h *Handlers) RecentEvents(c echo.Context) error {
	if h.Events == nil {
		return h.err(c, http.StatusBadRequest, "event cache is not configured", nil)
	}
	limitStr := c.QueryParam("limit")
	limit := constants.MaxRecentEvents
	if limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > constants.MaxPageEvents {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Events.GetRecentEvents(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get events", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// TokensList returns every symbol override in the token directory
func (h *Handlers) TokensList(c echo.Context) error {
	if h.Tokens == nil {
		return h.err(c, http.StatusBadRequest, "token directory is not configured", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Tokens.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list tokens", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// TokensUpsert sets the display symbol of a mint
func (h *Handlers) TokensUpsert(c echo.Context) error {
	if h.Tokens == nil {
		return h.err(c, http.StatusBadRequest, "token directory is not configured", nil)
	}
	mint := strings.TrimSpace(c.Param("mint"))
	if err := tokens.ValidateMint(mint); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": err.Error()})
	}
	var req TokenUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := tokens.ValidateSymbol(req.Symbol); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid symbol", map[string]any{"symbol": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Tokens.Upsert(ctx, mint, req.Symbol)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert token", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// TokensGet retrieves the symbol override of a mint
// Returns 404 if none is stored
func (h *Handlers) TokensGet(c echo.Context) error {
	if h.Tokens == nil {
		return h.err(c, http.StatusBadRequest, "token directory is not configured", nil)
	}
	mint := strings.TrimSpace(c.Param("mint"))
	if err := tokens.ValidateMint(mint); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Tokens.Get(ctx, mint)
	if err != nil {
		if errors.Is(err, tokens.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "token not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get token", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// TokensDelete removes a symbol override
// Returns 204 No Content on successful deletion
func (h *Handlers) TokensDelete(c echo.Context) error {
	if h.Tokens == nil {
		return h.err(c, http.StatusBadRequest, "token directory is not configured", nil)
	}
	mint := strings.TrimSpace(c.Param("mint"))
	if err := tokens.ValidateMint(mint); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid mint", map[string]any{"mint": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Tokens.Delete(ctx, mint); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete token", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
