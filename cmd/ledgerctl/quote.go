package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/amm-ledger/internal/curve"
	"github.com/aman-zulfiqar/amm-ledger/internal/fixedpoint"
	"github.com/aman-zulfiqar/amm-ledger/internal/guard"
	"github.com/aman-zulfiqar/amm-ledger/internal/ledger"
)

type quoteOutput struct {
	Curve           string `json:"curve"`
	Direction       string `json:"direction"`
	AmountIn        string `json:"amount_in"`
	FeeAmount       string `json:"fee_amount"`
	AmountOut       string `json:"amount_out"`
	MinimumReceived string `json:"minimum_received"`
	SpotPrice       string `json:"spot_price"`
	PriceImpactBps  uint64 `json:"price_impact_bps"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	r0s, _ := flags.GetString("reserve0")
	r1s, _ := flags.GetString("reserve1")
	ins, _ := flags.GetString("amount-in")
	tokenIn, _ := flags.GetInt("token-in")
	feeBps, _ := flags.GetUint64("fee-bps")
	curveName, _ := flags.GetString("curve")
	amp, _ := flags.GetUint64("amp")
	slippageBps, _ := flags.GetUint64("slippage-bps")

	r0, err := fixedpoint.ParseUnits(r0s)
	if err != nil {
		return fmt.Errorf("reserve0: %w", err)
	}
	r1, err := fixedpoint.ParseUnits(r1s)
	if err != nil {
		return fmt.Errorf("reserve1: %w", err)
	}
	amountIn, err := fixedpoint.ParseUnits(ins)
	if err != nil {
		return fmt.Errorf("amount-in: %w", err)
	}
	dir, err := curve.DirectionFromIndex(tokenIn)
	if err != nil {
		return err
	}
	kind, err := curve.ParseKind(curveName)
	if err != nil {
		return err
	}
	if kind == curve.Volatile {
		amp = 0
	}
	c, err := curve.New(kind, amp)
	if err != nil {
		return err
	}

	q, err := c.Quote(curve.Reserves{Reserve0: r0, Reserve1: r1}, amountIn, feeBps, dir)
	if err != nil {
		return err
	}
	logger.WithField("curve", kind).Debug("quoted")

	minOut := guard.ApplySlippage(q.AmountOut, slippageBps)
	out := quoteOutput{
		Curve:           string(kind),
		Direction:       dir.String(),
		AmountIn:        fixedpoint.FormatUnits(q.AmountIn),
		FeeAmount:       fixedpoint.FormatUnits(q.FeeAmount),
		AmountOut:       fixedpoint.FormatUnits(q.AmountOut),
		MinimumReceived: fixedpoint.FormatUnits(minOut),
		SpotPrice:       fixedpoint.FormatWAD(q.SpotPrice),
		PriceImpactBps:  q.PriceImpactBps,
	}
	return emit(cmd, cfg, out,
		fmt.Sprintf("amount_out:       %s", out.AmountOut),
		fmt.Sprintf("fee:              %s", out.FeeAmount),
		fmt.Sprintf("minimum_received: %s (%s%% slippage)", out.MinimumReceived, fixedpoint.FormatBpsPercent(slippageBps)),
		fmt.Sprintf("price_impact:     %s%%", fixedpoint.FormatBpsPercent(q.PriceImpactBps)),
		fmt.Sprintf("spot_price:       %s", out.SpotPrice),
	)
}

type ilOutput struct {
	PriceRatio string `json:"price_ratio"`
	LossBps    uint64 `json:"loss_bps"`
	Percent    string `json:"percent"`
}

func runIL(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	entryStr, _ := cmd.Flags().GetString("entry-price")
	currentStr, _ := cmd.Flags().GetString("current-price")

	entry, err := fixedpoint.ParseWAD(entryStr)
	if err != nil {
		return fmt.Errorf("entry-price: %w", err)
	}
	current, err := fixedpoint.ParseWAD(currentStr)
	if err != nil {
		return fmt.Errorf("current-price: %w", err)
	}
	il, err := ledger.ComputeImpermanentLoss(entry, current)
	if err != nil {
		return err
	}

	out := ilOutput{PriceRatio: fixedpoint.FormatWAD(il.PriceRatio), LossBps: il.LossBps, Percent: il.Percent()}
	return emit(cmd, cfg, out,
		fmt.Sprintf("price_ratio: %s", out.PriceRatio),
		fmt.Sprintf("il:          %s%%", out.Percent),
	)
}
