package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/amm-ledger/internal/constants"
	"github.com/aman-zulfiqar/amm-ledger/internal/curve"
	"github.com/aman-zulfiqar/amm-ledger/internal/engine"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/pool"
	"github.com/aman-zulfiqar/amm-ledger/internal/registry"
)

// ListPools returns a summary of every pool in creation order
func (h *Handlers) ListPools(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	items := make([]PoolResponse, 0, h.Engine.PoolCount())
	for sum := range h.Engine.ListPools(ctx) {
		items = append(items, toPoolResponse(sum))
	}
	if err := ctx.Err(); err != nil {
		return h.ledgerErr(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// CreatePool registers a new pool
// Stable pools default to amplification 100 when none is given
// An initial_liquidity body creates the pool and its first position together
func (h *Handlers) CreatePool(c echo.Context) error {
	var req CreatePoolRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	t0, err := models.ParseTokenID(strings.TrimSpace(req.Token0))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid token0", map[string]any{"token0": err.Error()})
	}
	t1, err := models.ParseTokenID(strings.TrimSpace(req.Token1))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid token1", map[string]any{"token1": err.Error()})
	}
	kind, err := curve.ParseKind(req.Curve)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid curve", map[string]any{"curve": "must be volatile or stable"})
	}
	var amp uint64
	if req.Amplification != nil {
		amp = *req.Amplification
	} else if kind == curve.Stable {
		amp = constants.DefaultAmplification
	}
	def := registry.Definition{
		Token0:        t0,
		Token1:        t1,
		FeeTierBps:    req.FeeBps,
		Curve:         kind,
		Amplification: amp,
	}

	var dep *engine.InitialDeposit
	if req.InitialLiquidity != nil {
		parsed, ok := h.initialDeposit(c, req.InitialLiquidity)
		if !ok {
			return nil
		}
		dep = &parsed
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	if dep != nil {
		res, err := h.Engine.CreatePoolWithLiquidity(ctx, def, *dep, h.now())
		if err != nil {
			return h.ledgerErr(c, err)
		}
		pos := toLiquidityResponse(res)
		return c.JSON(http.StatusCreated, CreatePoolResponse{PoolResponse: pos.Pool, Position: &pos})
	}

	sum, err := h.Engine.CreatePool(ctx, def, h.now())
	if err != nil {
		return h.ledgerErr(c, err)
	}
	return c.JSON(http.StatusCreated, CreatePoolResponse{PoolResponse: toPoolResponse(sum)})
}

// initialDeposit parses the optional first deposit of CreatePool, writing a
// 400 when a field is malformed.
func (h *Handlers) initialDeposit(c echo.Context, body *InitialLiquidityBody) (engine.InitialDeposit, bool) {
	bad := func(msg, field string, err error) (engine.InitialDeposit, bool) {
		_ = h.err(c, http.StatusBadRequest, msg, map[string]any{"initial_liquidity." + field: err.Error()})
		return engine.InitialDeposit{}, false
	}
	owner, err := models.ParseOwnerID(strings.TrimSpace(body.Owner))
	if err != nil {
		return bad("invalid owner", "owner", err)
	}
	a0, err := requireAmount(body.Amount0)
	if err != nil {
		return bad("invalid amount0", "amount0", err)
	}
	a1, err := requireAmount(body.Amount1)
	if err != nil {
		return bad("invalid amount1", "amount1", err)
	}
	minShares, err := parseAmount(body.MinShares)
	if err != nil {
		return bad("invalid min_shares", "min_shares", err)
	}
	return engine.InitialDeposit{
		Owner:     owner,
		Amount0:   a0,
		Amount1:   a1,
		MinShares: minShares,
		Deadline:  deadline(body.Deadline),
	}, true
}

// LookupPool finds a pool by token pair (either order) and fee tier
func (h *Handlers) LookupPool(c echo.Context) error {
	t0, err := models.ParseTokenID(strings.TrimSpace(c.QueryParam("token0")))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid token0", map[string]any{"token0": "required base58 mint"})
	}
	t1, err := models.ParseTokenID(strings.TrimSpace(c.QueryParam("token1")))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid token1", map[string]any{"token1": "required base58 mint"})
	}
	fee, err := strconv.ParseUint(strings.TrimSpace(c.QueryParam("fee")), 10, 64)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid fee", map[string]any{"fee": "must be bps"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	sum, err := h.Engine.LookupPool(ctx, t0, t1, fee)
	if err != nil {
		return h.ledgerErr(c, err)
	}
	return c.JSON(http.StatusOK, toPoolResponse(sum))
}

// GetPool returns a pool with its derived statistics
func (h *Handlers) GetPool(c echo.Context) error {
	id, ok := h.poolID(c)
	if !ok {
		return nil
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	sum, err := h.Engine.GetPool(ctx, id)
	if err != nil {
		return h.ledgerErr(c, err)
	}
	st, err := h.Engine.PoolStats(ctx, id, h.now())
	if err != nil {
		return h.ledgerErr(c, err)
	}
	return c.JSON(http.StatusOK, PoolDetailResponse{Pool: toPoolResponse(sum), Stats: toStatsResponse(st)})
}

// AddLiquidity deposits into a pool, minting or topping up a position
func (h *Handlers) AddLiquidity(c echo.Context) error {
	id, ok := h.poolID(c)
	if !ok {
		return nil
	}
	var req AddLiquidityRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	owner, err := models.ParseOwnerID(strings.TrimSpace(req.Owner))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": err.Error()})
	}
	a0, err := requireAmount(req.Amount0)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount0", map[string]any{"amount0": err.Error()})
	}
	a1, err := requireAmount(req.Amount1)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount1", map[string]any{"amount1": err.Error()})
	}
	minShares, err := parseAmount(req.MinShares)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid min_shares", map[string]any{"min_shares": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	res, err := h.Engine.AddLiquidity(ctx, engine.AddLiquidityRequest{
		PoolID:     id,
		PositionID: req.PositionID,
		Owner:      owner,
		Amount0:    a0,
		Amount1:    a1,
		MinShares:  minShares,
		Deadline:   deadline(req.Deadline),
	}, h.now())
	if err != nil {
		return h.ledgerErr(c, err)
	}
	code := http.StatusOK
	if req.PositionID == 0 {
		code = http.StatusCreated
	}
	return c.JSON(code, toLiquidityResponse(res))
}

// poolID parses the :id path parameter, writing a 400 when it is malformed.
func (h *Handlers) poolID(c echo.Context) (pool.ID, bool) {
	id, err := pool.ParseID(strings.TrimSpace(c.Param("id")))
	if err != nil {
		_ = h.err(c, http.StatusBadRequest, "invalid pool id", map[string]any{"id": "must be 64 hex characters"})
		return pool.ID{}, false
	}
	return id, true
}
