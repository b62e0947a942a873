package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/amm-ledger/internal/constants"
	"github.com/aman-zulfiqar/amm-ledger/internal/engine"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
)

// Quote prices a swap against the current reserves without executing it
// Query: tokenIn (mint), amountIn (raw), optional slippageBps (default 50)
func (h *Handlers) Quote(c echo.Context) error {
	id, ok := h.poolID(c)
	if !ok {
		return nil
	}

	tokenInStr := strings.TrimSpace(c.QueryParam("tokenIn"))
	amountStr := strings.TrimSpace(c.QueryParam("amountIn"))

	if tokenInStr == "" {
		return h.err(c, http.StatusBadRequest, "invalid tokenIn", map[string]any{"tokenIn": "required"})
	}
	tokenIn, err := models.ParseTokenID(tokenInStr)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid tokenIn", map[string]any{"tokenIn": "must be a base58 mint"})
	}
	if amountStr == "" {
		return h.err(c, http.StatusBadRequest, "invalid amountIn", map[string]any{"amountIn": "required"})
	}
	amountIn, err := fixedpoint.Parse(amountStr)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amountIn", map[string]any{"amountIn": "must be a raw integer"})
	}

	slippageBps := uint64(constants.DefaultSlippageBps)
	if v := strings.TrimSpace(c.QueryParam("slippageBps")); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil || n > fixedpoint.Bps {
			return h.err(c, http.StatusBadRequest, "invalid slippageBps", map[string]any{"slippageBps": "0 to 10000"})
		}
		slippageBps = n
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	out, err := h.Engine.Quote(ctx, id, tokenIn, amountIn, slippageBps)
	if err != nil {
		return h.ledgerErr(c, err)
	}

	q := out.Quote
	return c.JSON(http.StatusOK, QuoteResponse{
		PoolID:          id.String(),
		TokenIn:         out.TokenIn.String(),
		TokenOut:        out.TokenOut.String(),
		AmountIn:        dec(q.AmountIn),
		AmountInNet:     dec(q.AmountInNet),
		FeeAmount:       dec(q.FeeAmount),
		AmountOut:       dec(q.AmountOut),
		MinimumReceived: dec(out.MinimumReceived),
		SlippageBps:     out.SlippageBps,
		PriceImpactBps:  q.PriceImpactBps,
		SpotPrice:       fixedpoint.FormatWAD(q.SpotPrice),
		Scale:           fixedpoint.Decimals,
	})
}

// Swap executes a swap
// min_amount_out and deadline are enforced before anything changes
func (h *Handlers) Swap(c echo.Context) error {
	id, ok := h.poolID(c)
	if !ok {
		return nil
	}
	var req SwapRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	tokenIn, err := models.ParseTokenID(strings.TrimSpace(req.TokenIn))
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid token_in", map[string]any{"token_in": err.Error()})
	}
	amountIn, err := requireAmount(req.AmountIn)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount_in", map[string]any{"amount_in": err.Error()})
	}
	minOut, err := parseAmount(req.MinAmountOut)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid min_amount_out", map[string]any{"min_amount_out": err.Error()})
	}
	var trader models.OwnerID
	if s := strings.TrimSpace(req.Trader); s != "" {
		if trader, err = models.ParseOwnerID(s); err != nil {
			return h.err(c, http.StatusBadRequest, "invalid trader", map[string]any{"trader": err.Error()})
		}
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	res, err := h.Engine.Swap(ctx, engine.SwapRequest{
		PoolID:       id,
		TokenIn:      tokenIn,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
		Deadline:     deadline(req.Deadline),
		Trader:       trader,
	}, h.now())
	if err != nil {
		return h.ledgerErr(c, err)
	}

	q := res.Quote
	return c.JSON(http.StatusOK, SwapResponse{
		TokenIn:        res.TokenIn.String(),
		TokenOut:       res.TokenOut.String(),
		AmountIn:       dec(q.AmountIn),
		FeeAmount:      dec(q.FeeAmount),
		AmountOut:      dec(q.AmountOut),
		PriceImpactBps: q.PriceImpactBps,
		Pool:           toPoolResponse(res.Pool),
		Scale:          fixedpoint.Decimals,
	})
}
