// Command ledgerctl is the offline companion of the ledger API: it prices
// swaps, computes impermanent loss, replays scenario files and tails the
// live event channels.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/amm-ledger/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "AMM ledger toolbox",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("output", "text", "output format (text, json)")
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a swap against given reserves",
		RunE:  runQuote,
	}
	quoteCmd.Flags().String("reserve0", "", "token0 reserve, human units")
	quoteCmd.Flags().String("reserve1", "", "token1 reserve, human units")
	quoteCmd.Flags().String("amount-in", "", "amount sold, human units")
	quoteCmd.Flags().Int("token-in", 0, "index of the token sold (0 or 1)")
	quoteCmd.Flags().Uint64("fee-bps", 30, "fee tier in bps")
	quoteCmd.Flags().String("curve", "volatile", "curve (volatile, stable)")
	quoteCmd.Flags().Uint64("amp", 100, "amplification, stable only")
	quoteCmd.Flags().Uint64("slippage-bps", 50, "slippage tolerance in bps")
	root.AddCommand(quoteCmd)

	ilCmd := &cobra.Command{
		Use:   "il",
		Short: "Impermanent loss between two prices",
		RunE:  runIL,
	}
	ilCmd.Flags().String("entry-price", "", "price of token0 in token1 at entry")
	ilCmd.Flags().String("current-price", "", "price of token0 in token1 now")
	root.AddCommand(ilCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a scenario file against a fresh ledger",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().String("scenario", "", "scenario JSON path")
	simulateCmd.Flags().Uint64("max-price-impact-bps", 0, "reject swaps above this impact, 0 disables")
	root.AddCommand(simulateCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Print ledger events from a Redis channel",
		RunE:  runWatch,
	}
	watchCmd.Flags().String("redis-addr", "localhost:6379", "Redis address")
	watchCmd.Flags().String("channel", "ledger:all", "channel or pattern (ledger:pool:*)")
	root.AddCommand(watchCmd)

	return root
}

func loadConfig(cmd *cobra.Command) (config.CLIConfig, *logrus.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadCLI(cfgFile, cmd.Flags())
	if err != nil {
		return config.CLIConfig{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return config.CLIConfig{}, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger, nil
}

// emit prints v as indented JSON, or the text lines when output is text.
func emit(cmd *cobra.Command, cfg config.CLIConfig, v any, lines ...string) error {
	out := cmd.OutOrStdout()
	if cfg.Output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(out, l); err != nil {
			return err
		}
	}
	return nil
}
