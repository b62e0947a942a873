package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// CLIConfig holds ledgerctl settings loaded from flags, env, or config file.
type CLIConfig struct {
	LogLevel          string
	Output            string // "text" or "json"
	Scenario          string
	RedisAddr         string
	Channel           string
	MaxPriceImpactBps uint64
}

// LoadCLI merges config file, LEDGERCTL_* environment variables, and flags.
// Flags win over env, env wins over the file.
func LoadCLI(cfgFile string, flags *pflag.FlagSet) (CLIConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("LEDGERCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "warn")
	v.SetDefault("output", "text")
	v.SetDefault("redis-addr", "localhost:6379")
	v.SetDefault("channel", "ledger:all")
	v.SetDefault("max-price-impact-bps", uint64(0))

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return CLIConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return CLIConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("ledgerctl")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return CLIConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := CLIConfig{
		LogLevel:          v.GetString("log-level"),
		Output:            strings.ToLower(v.GetString("output")),
		Scenario:          v.GetString("scenario"),
		RedisAddr:         v.GetString("redis-addr"),
		Channel:           v.GetString("channel"),
		MaxPriceImpactBps: v.GetUint64("max-price-impact-bps"),
	}
	if cfg.Output != "text" && cfg.Output != "json" {
		return CLIConfig{}, fmt.Errorf("output must be text or json, got %q", cfg.Output)
	}
	return cfg, nil
}
