package cpamm

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
)

// PoolConfig represents a pool entry in the JSON config
type PoolConfig struct {
	Name           string `json:"name"`
	ProgramID      string `json:"program_id"`
	SwapAccount    string `json:"swap_account"`
	Authority      string `json:"authority"`
	TokenMintA     string `json:"token_mint_a"`
	TokenMintB     string `json:"token_mint_b"`
	DecimalsA      uint8  `json:"decimals_a"`
	DecimalsB      uint8  `json:"decimals_b"`
	VaultA         string `json:"vault_a"`
	VaultB         string `json:"vault_b"`
	PoolMint       string `json:"pool_mint"`
	FeeAccount     string `json:"fee_account"`
	HostFeeAccount string `json:"host_fee_account,omitempty"`
	FeeNumerator   uint64 `json:"fee_numerator"`
	FeeDenominator uint64 `json:"fee_denominator"`
}

// Pool represents a parsed, ready-to-use pool configuration
type Pool struct {
	Name           string
	ProgramID      solana.PublicKey
	SwapAccount    solana.PublicKey
	Authority      solana.PublicKey
	TokenMintA     solana.PublicKey
	TokenMintB     solana.PublicKey
	DecimalsA      uint8
	DecimalsB      uint8
	VaultA         solana.PublicKey
	VaultB         solana.PublicKey
	PoolMint       solana.PublicKey
	FeeAccount     solana.PublicKey
	HostFeeAccount *solana.PublicKey
	FeeNumerator   uint64
	FeeDenominator uint64
}

// Registry holds all configured pools
type Registry struct {
	pools []Pool
}

// NewRegistry loads pools from a JSON file
func NewRegistry(configPath string) (*Registry, error) {
	pools, err := LoadPoolsFromJSON(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pools: %w", err)
	}

	return &Registry{
		pools: pools,
	}, nil
}

// LoadPoolsFromJSON reads and parses pool configurations
func LoadPoolsFromJSON(path string) ([]Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configs []PoolConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	pools := make([]Pool, 0, len(configs))
	for i, cfg := range configs {
		pool, err := parsePoolConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("pool %d (%s): %w", i, cfg.Name, err)
		}
		pools = append(pools, pool)
	}

	return pools, nil
}

// parsePoolConfig converts a config struct to a Pool with validation
func parsePoolConfig(cfg PoolConfig) (Pool, error) {
	if cfg.FeeDenominator == 0 {
		return Pool{}, fmt.Errorf("fee_denominator must be > 0")
	}
	if cfg.FeeNumerator >= cfg.FeeDenominator {
		return Pool{}, fmt.Errorf("fee_numerator must be < fee_denominator")
	}

	pool := Pool{
		Name:           cfg.Name,
		ProgramID:      solana.MustPublicKeyFromBase58(cfg.ProgramID),
		SwapAccount:    solana.MustPublicKeyFromBase58(cfg.SwapAccount),
		Authority:      solana.MustPublicKeyFromBase58(cfg.Authority),
		TokenMintA:     solana.MustPublicKeyFromBase58(cfg.TokenMintA),
		TokenMintB:     solana.MustPublicKeyFromBase58(cfg.TokenMintB),
		DecimalsA:      cfg.DecimalsA,
		DecimalsB:      cfg.DecimalsB,
		VaultA:         solana.MustPublicKeyFromBase58(cfg.VaultA),
		VaultB:         solana.MustPublicKeyFromBase58(cfg.VaultB),
		PoolMint:       solana.MustPublicKeyFromBase58(cfg.PoolMint),
		FeeAccount:     solana.MustPublicKeyFromBase58(cfg.FeeAccount),
		FeeNumerator:   cfg.FeeNumerator,
		FeeDenominator: cfg.FeeDenominator,
	}

	// Parse optional host fee account
	if cfg.HostFeeAccount != "" {
		hostFee := solana.MustPublicKeyFromBase58(cfg.HostFeeAccount)
		pool.HostFeeAccount = &hostFee
	}

	return pool, nil
}

// FindByMints searches for a pool matching the given token pair
func (r *Registry) FindByMints(mintA, mintB solana.PublicKey) (*Pool, error) {
	for i := range r.pools {
		pool := &r.pools[i]

		// Check both directions: A->B and B->A
		if (pool.TokenMintA.Equals(mintA) && pool.TokenMintB.Equals(mintB)) ||
			(pool.TokenMintA.Equals(mintB) && pool.TokenMintB.Equals(mintA)) {
			return pool, nil
		}
	}

	return nil, fmt.Errorf("no pool found for mints %s / %s", mintA, mintB)
}

// FindByName searches for a pool by its name
func (r *Registry) FindByName(name string) (*Pool, error) {
	for i := range r.pools {
		if r.pools[i].Name == name {
			return &r.pools[i], nil
		}
	}
	return nil, fmt.Errorf("pool not found: %s", name)
}

// All returns all registered pools
func (r *Registry) All() []Pool {
	return r.pools
}

// Count returns the number of registered pools
func (r *Registry) Count() int {
	return len(r.pools)
}
