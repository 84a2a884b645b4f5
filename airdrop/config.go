// Package airdrop defines the configuration of a token airdrop: how
// contributions are priced, how holder and contributor points are weighted,
// how much a single account may receive, and when claims may progress.
//
// This package provides:
//   - Network presets (DefaultConfig, FakeNetConfig)
//   - The external identifiers of the token ledger and the governance module
//   - Validation and deep copying of the configuration
//
// The Config type is owned by the state store and replaced wholesale by an
// admin; nothing mutates it field by field.
package airdrop

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rony4d/go-airdrop-claim/inter"
)

const (
	// TokenDecimals is the number of decimals of the distributed token and of
	// the contributed currency. Amounts are always held in base units.
	TokenDecimals = 8

	// DefaultExchangeRate prices one whole contributed token at 5 USD,
	// expressed in micro-USD.
	DefaultExchangeRate uint64 = 5_000_000

	// DefaultIngestRateLimit is the number of ingestion batches accepted per day.
	DefaultIngestRateLimit uint32 = 500
)

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid airdrop config")

	// BaseUnit is 10^TokenDecimals.
	BaseUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
)

// Weights scale holder points and contributor points into the total score.
type Weights struct {
	Holder      uint32
	Contributor uint32
}

// Config is the complete airdrop configuration.
//
// Note: Config holds *big.Int fields. Use Copy() before handing it to code
// that may mutate it.
type Config struct {
	// Name identifies the preset (e.g. "default", "fake").
	Name string

	// Operator is the identity the engine acts as when it calls the ledger.
	Operator common.Address

	// Ledger and Governance address the external collaborators used when a
	// slot is finalized.
	Ledger     common.Address
	Governance common.Address

	// PoolAccount holds the tokens being distributed.
	PoolAccount inter.AccountID

	// ExchangeRate is the price of one whole contributed token in micro-USD.
	ExchangeRate uint64

	// ClaimStart and ClaimEnd bound the claim window [ClaimStart, ClaimEnd).
	ClaimStart inter.Timestamp
	ClaimEnd   inter.Timestamp

	// PerAccountMaxTokens caps a single allocation, in base units. Zero
	// disables the cap.
	PerAccountMaxTokens *big.Int

	// MinHolding is the smallest snapshot balance that earns holder points.
	MinHolding *big.Int

	// IngestRateLimitPerDay bounds ingestion batches. Zero disables the limit.
	IngestRateLimitPerDay uint32

	Weights Weights
}

// DefaultConfig returns the production preset. The claim window is left
// closed; admins open it explicitly.
func DefaultConfig() Config {
	return Config{
		Name:                  "default",
		ExchangeRate:          DefaultExchangeRate,
		PerAccountMaxTokens:   new(big.Int).Mul(big.NewInt(1_000_000), BaseUnit), // 1M tokens
		MinHolding:            new(big.Int).Set(BaseUnit),                         // 1 token
		IngestRateLimitPerDay: DefaultIngestRateLimit,
		Weights:               Weights{Holder: 1, Contributor: 1},
	}
}

// FakeNetConfig returns a preset for local runs and tests:
//   - a claim window open for 30 days from now
//   - no per-account cap
//   - no holding threshold and no ingestion limit
func FakeNetConfig(now time.Time) Config {
	cfg := DefaultConfig()
	cfg.Name = "fake"
	cfg.ClaimStart = inter.FromTime(now)
	cfg.ClaimEnd = inter.FromTime(now.Add(30 * 24 * time.Hour))
	cfg.PerAccountMaxTokens = new(big.Int)
	cfg.MinHolding = new(big.Int)
	cfg.IngestRateLimitPerDay = 0
	return cfg
}

// PresetByName looks up a preset by its identifier, so a CLI flag like
// --preset=fake can select it. now anchors time-relative presets.
func PresetByName(name string, now time.Time) (Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "fake":
		return FakeNetConfig(now), nil
	default:
		return Config{}, fmt.Errorf("unknown preset: %q (valid: default, fake)", name)
	}
}

// Window returns the configured claim window.
func (c Config) Window() inter.Window {
	return inter.Window{Start: c.ClaimStart, End: c.ClaimEnd}
}

// Capped reports whether PerAccountMaxTokens limits allocations.
func (c Config) Capped() bool {
	return c.PerAccountMaxTokens != nil && c.PerAccountMaxTokens.Sign() > 0
}

// Validate checks the invariants admins must respect when replacing the
// config.
func (c Config) Validate() error {
	if c.ClaimStart > c.ClaimEnd {
		return fmt.Errorf("%w: claim start %d after end %d", ErrInvalidConfig, c.ClaimStart, c.ClaimEnd)
	}
	if c.PerAccountMaxTokens != nil && c.PerAccountMaxTokens.Sign() < 0 {
		return fmt.Errorf("%w: negative per-account cap", ErrInvalidConfig)
	}
	if c.MinHolding != nil && c.MinHolding.Sign() < 0 {
		return fmt.Errorf("%w: negative minimum holding", ErrInvalidConfig)
	}
	return nil
}

// Copy creates a deep copy of Config. Nil big integers come back as zero so
// the copy is always safe to encode.
func (c Config) Copy() Config {
	cp := c
	cp.PerAccountMaxTokens = copyBig(c.PerAccountMaxTokens)
	cp.MinHolding = copyBig(c.MinHolding)
	return cp
}

// String returns a JSON representation for logs.
func (c Config) String() string {
	b, _ := json.Marshal(&c)
	return string(b)
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
