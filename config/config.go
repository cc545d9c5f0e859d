package config

import (
	"strings"
	"time"

	sdkerrors "cosmossdk.io/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/lattica-ai/settle/chain"
	"github.com/lattica-ai/settle/checkpoint"
	"github.com/lattica-ai/settle/proof"
	"github.com/lattica-ai/settle/settlement"
)

const codespace = "config"

var ErrInvalidConfig = sdkerrors.Register(codespace, 2, "invalid configuration")

// ChainEntry is one chain in the configuration file.
type ChainEntry struct {
	ChainID            uint64
	Name               string
	TokenSymbol        string
	TokenDecimals      uint8
	Contract           string
	HostPercent        uint64
	TreasuryPercent    uint64
	ConfirmationBlocks uint64
}

// Config is the full configuration of the settlement core.
type Config struct {
	ProofMode string
	ModelPath string

	CheckpointThreshold uint64
	MinProvenTokens     uint64
	CheckpointContract  string

	MaxRetries            int
	InitialDelay          time.Duration
	MaxDelay              time.Duration
	ExponentialBase       float64
	ConcurrentSettlements int

	// Chains overrides the built-in chain set when non-empty.
	Chains []ChainEntry
}

// Load reads configuration from the optional file at path, with
// environment variables (prefix SETTLE_) taking precedence over file
// values and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SETTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("proof.mode", string(proof.ModeMock))
	v.SetDefault("model.path", "./models/model.gguf")
	v.SetDefault("checkpoint.threshold", 100)
	v.SetDefault("checkpoint.min_proven_tokens", 0)
	v.SetDefault("checkpoint.contract", "")
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("retry.max_delay", "60s")
	v.SetDefault("retry.exponential_base", 2.0)
	v.SetDefault("settlement.concurrent", 10)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sdkerrors.Wrapf(ErrInvalidConfig, "read %s: %v", path, err)
		}
	}

	cfg := &Config{
		ProofMode:             v.GetString("proof.mode"),
		ModelPath:             v.GetString("model.path"),
		CheckpointThreshold:   v.GetUint64("checkpoint.threshold"),
		MinProvenTokens:       v.GetUint64("checkpoint.min_proven_tokens"),
		CheckpointContract:    v.GetString("checkpoint.contract"),
		MaxRetries:            v.GetInt("retry.max_retries"),
		InitialDelay:          v.GetDuration("retry.initial_delay"),
		MaxDelay:              v.GetDuration("retry.max_delay"),
		ExponentialBase:       v.GetFloat64("retry.exponential_base"),
		ConcurrentSettlements: v.GetInt("settlement.concurrent"),
	}

	chains, err := parseChains(v.Get("chains"))
	if err != nil {
		return nil, err
	}
	cfg.Chains = chains

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseChains converts the raw chains list into entries. Entries come
// from YAML or JSON as a slice of loosely typed maps.
func parseChains(raw interface{}) ([]ChainEntry, error) {
	if raw == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(raw)
	if err != nil {
		return nil, sdkerrors.Wrapf(ErrInvalidConfig, "chains: %v", err)
	}

	entries := make([]ChainEntry, 0, len(items))
	for i, item := range items {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, sdkerrors.Wrapf(ErrInvalidConfig, "chains[%d]: %v", i, err)
		}
		entry := ChainEntry{
			ChainID:            cast.ToUint64(m["chain_id"]),
			Name:               cast.ToString(m["name"]),
			TokenSymbol:        cast.ToString(m["token_symbol"]),
			TokenDecimals:      cast.ToUint8(m["token_decimals"]),
			Contract:           cast.ToString(m["contract"]),
			HostPercent:        cast.ToUint64(m["host_percent"]),
			TreasuryPercent:    cast.ToUint64(m["treasury_percent"]),
			ConfirmationBlocks: cast.ToUint64(m["confirmation_blocks"]),
		}
		if entry.ChainID == 0 {
			return nil, sdkerrors.Wrapf(ErrInvalidConfig, "chains[%d]: missing chain_id", i)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch proof.Mode(c.ProofMode) {
	case proof.ModeMock, proof.ModeGroth16:
	default:
		return sdkerrors.Wrapf(ErrInvalidConfig, "unknown proof mode %q", c.ProofMode)
	}
	if c.CheckpointThreshold == 0 {
		return sdkerrors.Wrap(ErrInvalidConfig, "checkpoint threshold must be positive")
	}
	if c.MaxRetries < 1 {
		return sdkerrors.Wrap(ErrInvalidConfig, "max retries must be at least 1")
	}
	if c.ExponentialBase < 1 {
		return sdkerrors.Wrap(ErrInvalidConfig, "exponential base must be at least 1")
	}
	for _, e := range c.Chains {
		if e.HostPercent+e.TreasuryPercent != 100 {
			return sdkerrors.Wrapf(ErrInvalidConfig, "chain %d: split %d/%d does not sum to 100",
				e.ChainID, e.HostPercent, e.TreasuryPercent)
		}
	}
	return nil
}

// ChainRegistry builds the chain registry from the configured chains,
// falling back to the built-in defaults when none are configured.
func (c *Config) ChainRegistry() *chain.Registry {
	if len(c.Chains) == 0 {
		return chain.DefaultRegistry()
	}
	r := chain.NewRegistry()
	for _, e := range c.Chains {
		r.Register(chain.Config{
			ChainID:             e.ChainID,
			Name:                e.Name,
			NativeToken:         chain.Token{Symbol: e.TokenSymbol, Decimals: e.TokenDecimals},
			ContractAddress:     e.Contract,
			HostEarningsPercent: e.HostPercent,
			TreasuryFeePercent:  e.TreasuryPercent,
			ConfirmationBlocks:  e.ConfirmationBlocks,
		})
	}
	return r
}

// CheckpointConfig derives the checkpoint tracker configuration.
func (c *Config) CheckpointConfig() checkpoint.Config {
	return checkpoint.Config{
		Threshold:       c.CheckpointThreshold,
		MinProvenTokens: c.MinProvenTokens,
		ModelPath:       c.ModelPath,
		Contract:        c.CheckpointContract,
	}
}

// SettlementConfig derives the orchestrator configuration.
func (c *Config) SettlementConfig() settlement.Config {
	return settlement.Config{
		Retry: settlement.RetryConfig{
			MaxRetries:      c.MaxRetries,
			InitialDelay:    c.InitialDelay,
			MaxDelay:        c.MaxDelay,
			ExponentialBase: c.ExponentialBase,
		},
		ConcurrentSettlements: c.ConcurrentSettlements,
	}
}

// ProofEngine constructs the configured proof engine.
func (c *Config) ProofEngine() (proof.Engine, error) {
	return proof.NewEngine(proof.Mode(c.ProofMode))
}
