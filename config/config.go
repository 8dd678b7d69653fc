// Package config loads the engine's YAML configuration, following the
// pattern of the teacher's services/governd/config package: a typed struct
// decoded with gopkg.in/yaml.v3, defaults applied post-decode, and a
// Validate method returning wrapped errors.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is the root configuration record (spec.md §6).
type Config struct {
	APIKeys        APIKeys                  `yaml:"api_keys"`
	FallbackChain  FallbackChainConfig      `yaml:"fallback_chain"`
	Retry          RetryConfig              `yaml:"retry"`
	Concurrency    ConcurrencyConfig        `yaml:"concurrency"`
	Cache          CacheConfig              `yaml:"cache"`
	SnapshotStore  SnapshotStoreConfig      `yaml:"snapshot_store"`
	VotingBlocks   VotingBlocksConfig       `yaml:"voting_blocks"`
	Simulator      SimulatorConfig          `yaml:"simulator"`
}

// APIKeys holds the optional credentials for each external source. Absence
// of a key triggers AuthMissing from that adapter (spec.md §6).
type APIKeys struct {
	Etherscan string `yaml:"etherscan"`
	Graph     string `yaml:"graph"`
	Alchemy   string `yaml:"alchemy"`
	Infura    string `yaml:"infura"`
	Ethplorer string `yaml:"ethplorer"`
}

// FallbackChainConfig gives the ordered list of source ids to try per data
// kind (spec.md §4.2).
type FallbackChainConfig struct {
	Holders     []string `yaml:"holders"`
	Proposals   []string `yaml:"proposals"`
	Votes       []string `yaml:"votes"`
	Delegations []string `yaml:"delegations"`
}

// RetryConfig parameterizes the per-source retry state machine (spec.md §4.2).
type RetryConfig struct {
	BaseMS      int `yaml:"base_ms"`
	CeilingMS   int `yaml:"ceiling_ms"`
	MaxAttempts int `yaml:"max_attempts"`
}

func (r RetryConfig) Base() time.Duration    { return time.Duration(r.BaseMS) * time.Millisecond }
func (r RetryConfig) Ceiling() time.Duration { return time.Duration(r.CeilingMS) * time.Millisecond }

// ConcurrencyConfig bounds in-flight calls per source and globally.
type ConcurrencyConfig struct {
	PerSource int `yaml:"per_source"`
	Global    int `yaml:"global"`
}

// CacheConfig controls the response cache's TTLs and LRU bound (spec.md §4.2).
type CacheConfig struct {
	HoldersTTLSeconds   int `yaml:"holders_ttl_s"`
	ProposalsTTLSeconds int `yaml:"proposals_ttl_s"`
	VotesTTLSeconds     int `yaml:"votes_ttl_s"`
	MaxEntries          int `yaml:"max_entries"`
}

func (c CacheConfig) HoldersTTL() time.Duration   { return time.Duration(c.HoldersTTLSeconds) * time.Second }
func (c CacheConfig) ProposalsTTL() time.Duration { return time.Duration(c.ProposalsTTLSeconds) * time.Second }
func (c CacheConfig) VotesTTL() time.Duration     { return time.Duration(c.VotesTTLSeconds) * time.Second }

// SnapshotStoreConfig selects and configures the durable backend (spec.md §6).
type SnapshotStoreConfig struct {
	Backend string `yaml:"backend"` // "mem" or "disk"
	Path    string `yaml:"path"`
}

// VotingBlocksConfig parameterizes the co-voting graph analysis (spec.md §4.7).
type VotingBlocksConfig struct {
	MinOverlap          int     `yaml:"min_overlap"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	LargeComponentSplit int     `yaml:"large_component_split"`
}

// SimulatorConfig parameterizes the deterministic synthetic generators
// (spec.md §4.4).
type SimulatorConfig struct {
	Seed          int64   `yaml:"seed"`
	Profile       string  `yaml:"profile"` // "power-law", "protocol-dominated", "community"
	HolderCount   int     `yaml:"holder_count"`
	Supply        string  `yaml:"supply"` // decimal string, parsed as *big.Int
	Alpha         float64 `yaml:"alpha"`
	DominantShare float64 `yaml:"dominant_share"`
	MeanProposals float64 `yaml:"mean_proposals"`
	ForRate       float64 `yaml:"for_rate"`
	AgainstRate   float64 `yaml:"against_rate"`
	AbstainRate   float64 `yaml:"abstain_rate"`
}

// Default returns a Config with the defaults spec.md implies where it leaves
// a knob unspecified.
func Default() Config {
	return Config{
		FallbackChain: FallbackChainConfig{
			Holders:     []string{"etherscan", "ethplorer", "thegraph", "simulator"},
			Proposals:   []string{"thegraph", "simulator"},
			Votes:       []string{"thegraph", "simulator"},
			Delegations: []string{"thegraph", "simulator"},
		},
		Retry: RetryConfig{BaseMS: 250, CeilingMS: 8000, MaxAttempts: 5},
		Concurrency: ConcurrencyConfig{PerSource: 4, Global: 16},
		Cache: CacheConfig{
			HoldersTTLSeconds:   300,
			ProposalsTTLSeconds: 60,
			VotesTTLSeconds:     30,
			MaxEntries:          4096,
		},
		SnapshotStore: SnapshotStoreConfig{Backend: "mem"},
		VotingBlocks: VotingBlocksConfig{
			MinOverlap:          3,
			SimilarityThreshold: 0.8,
			LargeComponentSplit: 64,
		},
		Simulator: SimulatorConfig{
			Seed:          42,
			Profile:       "power-law",
			HolderCount:   250,
			Supply:        "1000000000000000000000000",
			Alpha:         1.16,
			DominantShare: 0.6,
			MeanProposals: 6,
			ForRate:       0.55,
			AgainstRate:   0.35,
			AbstainRate:   0.10,
		},
	}
}

// Load reads and validates YAML configuration from path, merging decoded
// values over Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := decodeYAML(data, &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration's enumerated invariants (spec.md §6).
func (c Config) Validate() error {
	switch c.SnapshotStore.Backend {
	case "", "mem", "disk":
	default:
		return fmt.Errorf("snapshot_store.backend must be mem or disk, got %q", c.SnapshotStore.Backend)
	}
	if c.SnapshotStore.Backend == "disk" && strings.TrimSpace(c.SnapshotStore.Path) == "" {
		return fmt.Errorf("snapshot_store.path is required when backend is disk")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive")
	}
	if c.Retry.BaseMS <= 0 || c.Retry.CeilingMS <= 0 {
		return fmt.Errorf("retry.base_ms and retry.ceiling_ms must be positive")
	}
	if c.Concurrency.PerSource <= 0 || c.Concurrency.Global <= 0 {
		return fmt.Errorf("concurrency.per_source and concurrency.global must be positive")
	}
	if c.VotingBlocks.MinOverlap <= 0 {
		return fmt.Errorf("voting_blocks.min_overlap must be positive")
	}
	if c.VotingBlocks.SimilarityThreshold <= 0 || c.VotingBlocks.SimilarityThreshold > 1 {
		return fmt.Errorf("voting_blocks.similarity_threshold must be in (0,1]")
	}
	return nil
}
