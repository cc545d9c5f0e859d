package chain

import (
	"sort"
	"sync"
)

// Token describes a chain's native currency.
type Token struct {
	Symbol   string
	Decimals uint8
}

// Config holds the settlement parameters of one supported chain.
type Config struct {
	ChainID             uint64
	Name                string
	NativeToken         Token
	ContractAddress     string
	HostEarningsPercent uint64
	TreasuryFeePercent  uint64
	ConfirmationBlocks  uint64
}

// Valid reports whether the split percentages cover the whole payment.
func (c Config) Valid() bool {
	return c.HostEarningsPercent+c.TreasuryFeePercent == 100
}

// Registry is a concurrency-safe set of supported chain configurations.
type Registry struct {
	mu     sync.RWMutex
	chains map[uint64]Config
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{chains: make(map[uint64]Config)}
}

// DefaultRegistry returns a registry preloaded with the default
// testnet chains and the standard 90/10 host/treasury split.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Config{
		ChainID:             84532,
		Name:                "Base Sepolia",
		NativeToken:         Token{Symbol: "ETH", Decimals: 18},
		ContractAddress:     "0x8B70f5b6EcBcFbd41D01B1Cb1e2D4B0FbfDb1b79",
		HostEarningsPercent: 90,
		TreasuryFeePercent:  10,
		ConfirmationBlocks:  2,
	})
	r.Register(Config{
		ChainID:             5611,
		Name:                "opBNB Testnet",
		NativeToken:         Token{Symbol: "BNB", Decimals: 18},
		ContractAddress:     "0x3C5bD23E5D2C2e43a06a43A58a0d5bD47C70a0d4",
		HostEarningsPercent: 90,
		TreasuryFeePercent:  10,
		ConfirmationBlocks:  2,
	})
	return r
}

// Register adds or replaces a chain configuration.
func (r *Registry) Register(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[cfg.ChainID] = cfg
}

// Config looks up a chain by id.
func (r *Registry) Config(chainID uint64) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.chains[chainID]
	return cfg, ok
}

// Supported reports whether the chain id is registered.
func (r *Registry) Supported(chainID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.chains[chainID]
	return ok
}

// IDs returns the registered chain ids in ascending order.
func (r *Registry) IDs() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
