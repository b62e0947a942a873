package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aman-zulfiqar/amm-ledger/internal/constants"
	"github.com/aman-zulfiqar/amm-ledger/internal/curve"
	"github.com/aman-zulfiqar/amm-ledger/internal/models"
)

// SeedConfig represents a pool entry in the JSON seed file
type SeedConfig struct {
	Name          string `json:"name"`
	Token0        string `json:"token0"`
	Token1        string `json:"token1"`
	FeeTierBps    uint64 `json:"fee_bps"`
	Curve         string `json:"curve,omitempty"`
	Amplification uint64 `json:"amplification,omitempty"`
}

// LoadDefinitionsFromJSON reads and parses pool definitions
func LoadDefinitionsFromJSON(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var configs []SeedConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return ParseSeedConfigs(configs)
}

// ParseSeedConfigs validates seed entries in order, naming the first bad one.
func ParseSeedConfigs(configs []SeedConfig) ([]Definition, error) {
	defs := make([]Definition, 0, len(configs))
	for i, cfg := range configs {
		def, err := parseSeedConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("pool %d (%s): %w", i, cfg.Name, err)
		}
		defs = append(defs, def)
	}

	return defs, nil
}

// parseSeedConfig converts a config entry to a Definition with validation
func parseSeedConfig(cfg SeedConfig) (Definition, error) {
	t0, err := models.ParseTokenID(cfg.Token0)
	if err != nil {
		return Definition{}, err
	}
	t1, err := models.ParseTokenID(cfg.Token1)
	if err != nil {
		return Definition{}, err
	}
	kind, err := curve.ParseKind(cfg.Curve)
	if err != nil {
		return Definition{}, err
	}
	amp := cfg.Amplification
	if kind == curve.Stable && amp == 0 {
		amp = constants.DefaultAmplification
	}

	def := Definition{
		Name:          cfg.Name,
		Token0:        t0,
		Token1:        t1,
		FeeTierBps:    cfg.FeeTierBps,
		Curve:         kind,
		Amplification: amp,
	}
	if err := Validate(def); err != nil {
		return Definition{}, err
	}
	return def, nil
}
