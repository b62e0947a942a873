package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/amm-ledger/internal/engine"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
	"github.com/aman-zulfiqar/amm-ledger/internal/ledger"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
)

// GetPosition returns a position with its underlying amounts, pending fees and IL
func (h *Handlers) GetPosition(c echo.Context) error {
	id, ok := h.positionID(c)
	if !ok {
		return nil
	}
	return h.renderPosition(c, id)
}

// GetPositionByHandle resolves an NFT handle to its position
func (h *Handlers) GetPositionByHandle(c echo.Context) error {
	id, err := ledger.ParseHandle(strings.TrimSpace(c.Param("handle")))
	if err != nil {
		return h.ledgerErr(c, err)
	}
	return h.renderPosition(c, id)
}

func (h *Handlers) renderPosition(c echo.Context, id uint64) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	view, err := h.Engine.GetPosition(ctx, id)
	if err != nil {
		return h.ledgerErr(c, err)
	}
	return c.JSON(http.StatusOK, toPositionResponse(view))
}

// OwnerPositions lists every position held by an owner
func (h *Handlers) OwnerPositions(c echo.Context) error {
	owner, err := models.ParseOwnerID(strings.TrimSpace(c.Param("owner")))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	views, err := h.Engine.PositionsByOwner(ctx, owner)
	if err != nil {
		return h.ledgerErr(c, err)
	}
	items := make([]PositionResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toPositionResponse(v))
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Withdraw removes shares from a position
func (h *Handlers) Withdraw(c echo.Context) error {
	id, ok := h.positionID(c)
	if !ok {
		return nil
	}
	var req WithdrawRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	owner, err := models.ParseOwnerID(strings.TrimSpace(req.Owner))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": err.Error()})
	}
	shares, err := requireAmount(req.Shares)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid shares", map[string]any{"shares": err.Error()})
	}
	min0, err := parseAmount(req.MinAmount0)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid min_amount0", map[string]any{"min_amount0": err.Error()})
	}
	min1, err := parseAmount(req.MinAmount1)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid min_amount1", map[string]any{"min_amount1": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	res, err := h.Engine.RemoveLiquidity(ctx, engine.RemoveLiquidityRequest{
		PositionID: id,
		Owner:      owner,
		Shares:     shares,
		MinAmount0: min0,
		MinAmount1: min1,
		Deadline:   deadline(req.Deadline),
	}, h.now())
	if err != nil {
		return h.ledgerErr(c, err)
	}
	return c.JSON(http.StatusOK, toLiquidityResponse(res))
}

// Claim pays out the fees a position has earned
func (h *Handlers) Claim(c echo.Context) error {
	id, ok := h.positionID(c)
	if !ok {
		return nil
	}
	var req OwnerRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	owner, err := models.ParseOwnerID(strings.TrimSpace(req.Owner))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	res, err := h.Engine.ClaimFees(ctx, id, owner, h.now())
	if err != nil {
		return h.ledgerErr(c, err)
	}
	return c.JSON(http.StatusOK, ClaimResponse{
		PositionID: res.PositionID,
		Amount0:    dec(res.Amount0),
		Amount1:    dec(res.Amount1),
		Scale:      fixedpoint.Decimals,
	})
}

// Transfer hands a position to a new holder
func (h *Handlers) Transfer(c echo.Context) error {
	id, ok := h.positionID(c)
	if !ok {
		return nil
	}
	var req TransferRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	from, err := models.ParseOwnerID(strings.TrimSpace(req.Owner))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": err.Error()})
	}
	to, err := models.ParseOwnerID(strings.TrimSpace(req.To))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid to", map[string]any{"to": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	view, err := h.Engine.TransferPosition(ctx, id, from, to, h.now())
	if err != nil {
		return h.ledgerErr(c, err)
	}
	return c.JSON(http.StatusOK, toPositionResponse(view))
}

// Burn destroys an empty position, paying out any fees still owed
// The holder is given by the owner query parameter
func (h *Handlers) Burn(c echo.Context) error {
	id, ok := h.positionID(c)
	if !ok {
		return nil
	}
	owner, err := models.ParseOwnerID(strings.TrimSpace(c.QueryParam("owner")))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid owner", map[string]any{"owner": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	res, err := h.Engine.BurnPosition(ctx, id, owner, h.now())
	if err != nil {
		return h.ledgerErr(c, err)
	}
	return c.JSON(http.StatusOK, BurnResponse{
		PositionID: res.Position.ID,
		Handle:     res.Position.Handle(),
		Claimed0:   dec(res.Claimed0),
		Claimed1:   dec(res.Claimed1),
		Scale:      fixedpoint.Decimals,
	})
}

// positionID parses the numeric :id path parameter, writing a 400 when it is malformed.
func (h *Handlers) positionID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id == 0 {
		_ = h.err(c, http.StatusBadRequest, "invalid position id", map[string]any{"id": "must be a positive integer"})
		return 0, false
	}
	return id, true
}
