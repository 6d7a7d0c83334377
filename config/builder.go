// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"time"
)

// NetworkType represents different deployment scales.
type NetworkType string

const (
	MainnetNetwork NetworkType = "mainnet"
	TestnetNetwork NetworkType = "testnet"
	LocalNetwork   NetworkType = "local"
)

// Config holds all engine-level parameters for one Dumbo deployment.
type Config struct {
	// Fault model
	N             int `json:"n"`
	F             int `json:"f"`
	CoinThreshold int `json:"coinThreshold"`

	// Epoch scheduling
	EpochWindow          int           `json:"epochWindow"`
	MaxOutstandingEpochs int           `json:"maxOutstandingEpochs"`
	EpochTimeout         time.Duration `json:"epochTimeout"`
	MinEpochInterval     time.Duration `json:"minEpochInterval"`

	// Network characteristics (for reference, optional)
	NetworkLatency time.Duration `json:"networkLatency,omitempty"`
}

// ToParameters converts c into the Parameters shape dumbo.New accepts,
// bridging the fluent Builder path into the engine constructor (NB:
// Config.NetworkLatency is reference/tuning-only and is not copied;
// the result's NetworkLatency is left zero, the same default
// Parameters.NetworkLatency carries outside the builder).
func (c *Config) ToParameters() Parameters {
	return Parameters{
		N:                    c.N,
		F:                    c.F,
		CoinThreshold:        c.CoinThreshold,
		EpochWindow:          c.EpochWindow,
		MaxOutstandingEpochs: c.MaxOutstandingEpochs,
		EpochTimeout:         c.EpochTimeout,
		MinEpochInterval:     c.MinEpochInterval,
	}
}

// Builder provides a fluent interface for constructing engine
// configurations.
type Builder struct {
	config *Config
	err    error
}

// NewBuilder creates a new configuration builder seeded with
// DefaultParams-equivalent values.
func NewBuilder() *Builder {
	return &Builder{
		config: &Config{
			N:                    4,
			F:                    1,
			CoinThreshold:        2,
			EpochWindow:          8,
			MaxOutstandingEpochs: 1024,
			EpochTimeout:         2 * time.Minute,
			MinEpochInterval:     10 * time.Millisecond,
		},
	}
}

// FromPreset loads a preset configuration.
func (b *Builder) FromPreset(preset NetworkType) *Builder {
	if b.err != nil {
		return b
	}

	switch preset {
	case MainnetNetwork:
		b.config = &MainnetConfig
	case TestnetNetwork:
		b.config = &TestnetConfig
	case LocalNetwork:
		b.config = &LocalConfig
	default:
		b.err = fmt.Errorf("unknown preset: %s", preset)
	}

	// Clone to avoid modifying presets.
	if b.config != nil {
		clone := *b.config
		b.config = &clone
	}

	return b
}

// WithFaultTolerance sets f and derives the minimal membership n=3f+1
// and coin threshold f+1, the smallest quorum able to tolerate f
// Byzantine nodes.
func (b *Builder) WithFaultTolerance(f int) *Builder {
	if b.err != nil {
		return b
	}

	if f < 0 {
		b.err = fmt.Errorf("f must be >= 0, got %d", f)
		return b
	}

	b.config.F = f
	b.config.N = 3*f + 1
	b.config.CoinThreshold = f + 1

	return b
}

// WithMembership sets n and f directly, for deployments over-
// provisioned past the minimal 3f+1.
func (b *Builder) WithMembership(n, f int) *Builder {
	if b.err != nil {
		return b
	}

	if f < 0 {
		b.err = fmt.Errorf("f must be >= 0, got %d", f)
		return b
	}
	if n < 3*f+1 {
		b.err = fmt.Errorf("n must be >= 3f+1, got n=%d f=%d", n, f)
		return b
	}

	b.config.N = n
	b.config.F = f
	if b.config.CoinThreshold < f+1 || b.config.CoinThreshold > n {
		b.config.CoinThreshold = f + 1
	}

	return b
}

// WithCoinThreshold sets the threshold-signature reconstruction
// threshold explicitly. Must lie in [f+1, n].
func (b *Builder) WithCoinThreshold(threshold int) *Builder {
	if b.err != nil {
		return b
	}

	if threshold < b.config.F+1 {
		b.err = fmt.Errorf("coin threshold must be >= f+1 (%d), got %d", b.config.F+1, threshold)
		return b
	}
	if threshold > b.config.N {
		b.err = fmt.Errorf("coin threshold must be <= n (%d), got %d", b.config.N, threshold)
		return b
	}

	b.config.CoinThreshold = threshold
	return b
}

// WithEpochWindow sets how many epochs ahead of the active one the
// engine admits lazily.
func (b *Builder) WithEpochWindow(window int) *Builder {
	if b.err != nil {
		return b
	}

	if window < 1 {
		b.err = fmt.Errorf("epoch window must be at least 1, got %d", window)
		return b
	}

	b.config.EpochWindow = window
	return b
}

// WithEpochTimeout sets the per-epoch timeout value. The engine does
// not read it and arms no timer itself.
func (b *Builder) WithEpochTimeout(timeout time.Duration) *Builder {
	if b.err != nil {
		return b
	}

	b.config.EpochTimeout = timeout
	return b
}

// WithMinEpochInterval sets the minimum interval between starting
// consecutive epochs.
func (b *Builder) WithMinEpochInterval(interval time.Duration) *Builder {
	if b.err != nil {
		return b
	}

	b.config.MinEpochInterval = interval
	return b
}

// ForNodeCount sets n to totalNodes and f to the largest value that
// n >= 3f+1 allows, (n-1)/3, but never below 1.
func (b *Builder) ForNodeCount(totalNodes int) *Builder {
	if b.err != nil {
		return b
	}

	f := (totalNodes - 1) / 3
	if f < 1 {
		f = 1
	}

	b.config.N = totalNodes
	b.config.F = f
	b.config.CoinThreshold = f + 1

	if totalNodes > 50 && b.config.EpochWindow < 16 {
		b.config.EpochWindow = 16
	}

	return b
}

// OptimizeForLatency trims epoch timing for faster finality at the
// cost of headroom under network jitter.
func (b *Builder) OptimizeForLatency() *Builder {
	if b.err != nil {
		return b
	}

	b.config.MinEpochInterval = time.Millisecond
	b.config.MaxOutstandingEpochs = 4096

	return b
}

// OptimizeForThroughput widens the admissible epoch window and raises
// the outstanding-epoch ceiling for maximum pipelining.
func (b *Builder) OptimizeForThroughput() *Builder {
	if b.err != nil {
		return b
	}

	b.config.EpochWindow *= 2
	b.config.MaxOutstandingEpochs = 8192

	return b
}

// Build returns the final configuration, validated.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}

	validator := NewValidator()
	if err := validator.Validate(b.config); err != nil {
		return nil, err
	}

	return b.config, nil
}

// Preset configurations.
var (
	MainnetConfig = Config{
		N:                    100,
		F:                    33,
		CoinThreshold:        34,
		EpochWindow:          32,
		MaxOutstandingEpochs: 4096,
		EpochTimeout:         5 * time.Minute,
		MinEpochInterval:     50 * time.Millisecond,
	}

	TestnetConfig = Config{
		N:                    16,
		F:                    5,
		CoinThreshold:        6,
		EpochWindow:          16,
		MaxOutstandingEpochs: 2048,
		EpochTimeout:         3 * time.Minute,
		MinEpochInterval:     25 * time.Millisecond,
	}

	LocalConfig = Config{
		N:                    4,
		F:                    1,
		CoinThreshold:        2,
		EpochWindow:          8,
		MaxOutstandingEpochs: 256,
		EpochTimeout:         10 * time.Second,
		MinEpochInterval:     time.Millisecond,
	}
)
