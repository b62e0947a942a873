package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cliFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("ledgerctl", pflag.ContinueOnError)
	fs.String("output", "text", "")
	fs.String("scenario", "", "")
	fs.String("log-level", "warn", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadCLIPrecedence(t *testing.T) {
	t.Setenv("LEDGERCTL_SCENARIO", "from-env.json")
	t.Setenv("LEDGERCTL_REDIS_ADDR", "redis:6380")

	cfg, err := LoadCLI("", cliFlags(t, "--output", "json"))
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, "from-env.json", cfg.Scenario, "unset flags fall through to env")
	assert.Equal(t, "redis:6380", cfg.RedisAddr)
	assert.Equal(t, "ledger:all", cfg.Channel)

	cfg, err = LoadCLI("", cliFlags(t, "--scenario", "from-flag.json"))
	require.NoError(t, err)
	assert.Equal(t, "from-flag.json", cfg.Scenario)
}

func TestLoadCLIConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledgerctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channel: ledger:positions\nmax-price-impact-bps: 500\n"), 0o600))

	cfg, err := LoadCLI(path, cliFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "ledger:positions", cfg.Channel)
	assert.Equal(t, uint64(500), cfg.MaxPriceImpactBps)

	_, err = LoadCLI(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadCLIRejectsOutput(t *testing.T) {
	_, err := LoadCLI("", cliFlags(t, "--output", "xml"))
	assert.ErrorContains(t, err, "output")
}
