package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds node-local settings for running a proposer: where it keeps
// its chain data, the authorised validator set, and the round-timing
// parameters that are implementation choices rather than part of the
// consensus contract (spec.md §9). It intentionally carries nothing about
// transport, RPC, or peer discovery — those remain out of scope.
type Config struct {
	NodeID  string `json:"node_id"`
	DataDir string `json:"data_dir"`

	// MaxBlockExtrinsics is a per-proposal cap on pool transactions. No
	// package in this module reads it: Propose bounds a proposal only by the
	// aggregate byte budget proposer.MaxTransactionsSize.
	MaxBlockExtrinsics int `json:"max_block_extrinsics"`

	// Validators lists the authorised proposer ed25519 public keys, hex
	// encoded, in the fixed order used for round-robin leader selection.
	Validators []string `json:"validators"`

	// ProposeTimeout is the interval between rounds of cmd/proposernode's
	// propose loop (2s when zero or negative). Propose itself never waits
	// for the pool; it packs whatever is Ready when called.
	ProposeTimeout time.Duration `json:"propose_timeout"`
	// MaxVoteOfflineSeconds is carried in the config file but not read by
	// any package in this module. The proposer's offline-report cutoff is
	// proposer.Options.OfflineReportWindow, and evaluate() bounds future
	// candidate timestamps with its own fixed 600-second limit.
	MaxVoteOfflineSeconds uint64 `json:"max_vote_offline_seconds"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:                "node0",
		DataDir:               "./data",
		MaxBlockExtrinsics:    500,
		ProposeTimeout:        2 * time.Second,
		MaxVoteOfflineSeconds: 30,
	}
}

// Load reads a JSON config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if len(c.Validators) == 0 {
		return fmt.Errorf("validators list must not be empty")
	}
	for i, v := range c.Validators {
		b, err := hex.DecodeString(v)
		if err != nil || len(b) != 32 {
			return fmt.Errorf("validators[%d]: must be 64-char hex (32 bytes ed25519 pubkey), got %q", i, v)
		}
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
