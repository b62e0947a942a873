package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/amm-ledger/internal/cache"
	"github.com/aman-zulfiqar/amm-ledger/internal/engine"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
	"github.com/aman-zulfiqar/amm-ledger/internal/scenario"
)

type simulatePool struct {
	ID          string `json:"id"`
	Pair        string `json:"pair"`
	Reserve0    string `json:"reserve0"`
	Reserve1    string `json:"reserve1"`
	TotalShares string `json:"total_shares"`
	SwapCount   uint64 `json:"swap_count"`
}

type simulateOutput struct {
	Steps []scenario.StepResult `json:"steps"`
	Pools []simulatePool        `json:"pools"`
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}
	sc, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(engine.Config{Logger: logger, MaxPriceImpactBps: cfg.MaxPriceImpactBps})
	report, runErr := scenario.Run(ctx, eng, sc)
	if report == nil {
		return runErr
	}

	out := simulateOutput{Steps: report.Steps}
	for _, p := range report.Pools {
		out.Pools = append(out.Pools, simulatePool{
			ID:          p.State.ID.String(),
			Pair:        p.Pair,
			Reserve0:    p.State.Reserve0.Dec(),
			Reserve1:    p.State.Reserve1.Dec(),
			TotalShares: p.State.TotalShares.Dec(),
			SwapCount:   p.State.SwapCount,
		})
	}

	lines := make([]string, 0, len(out.Steps)+len(out.Pools))
	for _, s := range out.Steps {
		lines = append(lines, formatStep(s))
	}
	for _, p := range out.Pools {
		lines = append(lines, fmt.Sprintf("pool %s reserves=%s/%s shares=%s swaps=%d",
			p.Pair, p.Reserve0, p.Reserve1, p.TotalShares, p.SwapCount))
	}
	if err := emit(cmd, cfg, out, lines...); err != nil {
		return err
	}
	logger.WithField("steps", len(report.Steps)).Info("scenario finished")
	return runErr
}

func formatStep(s scenario.StepResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %-8s", s.Index, s.Op)
	if s.Kind != "" {
		fmt.Fprintf(&b, " rejected=%s", s.Kind)
	}
	keys := make([]string, 0, len(s.Values))
	for k := range s.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, s.Values[k])
	}
	return b.String()
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pubsub := cache.NewPubSubManager(cfg.RedisAddr, logger)
	defer func() { _ = pubsub.Close() }()

	handler := func(ev *models.LedgerEvent) {
		if err := emit(cmd, cfg, ev, formatEvent(ev)); err != nil {
			logger.WithError(err).Warn("failed to print event")
		}
	}
	logger.WithFields(logrus.Fields{"addr": cfg.RedisAddr, "channel": cfg.Channel}).Info("watching")
	if strings.ContainsAny(cfg.Channel, "*?[") {
		return pubsub.PSubscribe(ctx, cfg.Channel, handler)
	}
	return pubsub.Subscribe(ctx, cfg.Channel, handler)
}

func formatEvent(ev *models.LedgerEvent) string {
	line := fmt.Sprintf("%s #%d %-20s %s", ev.Timestamp.Format("15:04:05"), ev.Seq, ev.Type, ev.Pair)
	if ev.PositionID != 0 {
		line += fmt.Sprintf(" position=%d", ev.PositionID)
	}
	if ev.Amount0 != "" || ev.Amount1 != "" {
		line += fmt.Sprintf(" amount0=%s amount1=%s", ev.Amount0, ev.Amount1)
	}
	if ev.Fee != "" {
		line += " fee=" + ev.Fee
	}
	return line
}
