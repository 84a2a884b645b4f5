// This file maps CLI context and the YAML config file onto the launcher config.

package launcher

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/rony4d/go-airdrop-claim/airdrop"
	"github.com/rony4d/go-airdrop-claim/inter"
)

// Config aggregates everything one CLI invocation needs.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Airdrop AirdropConfig `yaml:"airdrop"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`

	// Caller is the account the inbound call is made as.
	Caller string `yaml:"caller"`
	// Now pins the engine clock; empty means wall time.
	Now string `yaml:"now"`
}

type NodeConfig struct {
	DataDir     string        `yaml:"datadir"`
	StableStore string        `yaml:"stablestore"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// AirdropConfig selects a preset and overrides parts of it. Nil and empty
// fields keep the preset's value.
type AirdropConfig struct {
	Preset      string `yaml:"preset"`
	Operator    string `yaml:"operator"`
	Governance  string `yaml:"governance"`
	PoolAccount string `yaml:"pool_account"`

	ExchangeRate          uint64  `yaml:"exchange_rate"`
	ClaimStart            string  `yaml:"claim_start"`
	ClaimEnd              string  `yaml:"claim_end"`
	PerAccountMaxTokens   string  `yaml:"per_account_max_tokens"`
	MinHolding            string  `yaml:"min_holding"`
	IngestRateLimitPerDay *uint32 `yaml:"ingest_rate_limit_per_day"`
	HolderWeight          *uint32 `yaml:"holder_weight"`
	ContributorWeight     *uint32 `yaml:"contributor_weight"`
}

type MetricsConfig struct {
	Enable   bool   `yaml:"enable"`
	HTTPAddr string `yaml:"addr"`
	HTTPPort int    `yaml:"port"`
}

type LoggingConfig struct {
	Verbosity int    `yaml:"verbosity"`
	Format    string `yaml:"format"`
	Color     bool   `yaml:"color"`
	SentryDSN string `yaml:"sentry_dsn"`
}

// -----------------------------------------------------------------------------
// Default config + builders
// -----------------------------------------------------------------------------

func defaultConfig() Config {
	def := DefaultConfig()
	return Config{
		Node: NodeConfig{
			DataDir:     resolvePath(def.Node.DataDir),
			StableStore: def.Node.StableStore,
			CallTimeout: def.Node.CallTimeout,
		},
		Airdrop: AirdropConfig{
			Preset:      def.Airdrop.Preset,
			Operator:    def.Airdrop.Operator,
			Governance:  def.Airdrop.Governance,
			PoolAccount: def.Airdrop.PoolAccount,
		},
		Metrics: MetricsConfig{
			Enable:   def.Metrics.Enable,
			HTTPAddr: def.Metrics.HTTPAddr,
			HTTPPort: def.Metrics.HTTPPort,
		},
		Logging: LoggingConfig{
			Verbosity: def.Logging.Verbosity,
			Format:    def.Logging.Format,
			Color:     def.Logging.Color,
			SentryDSN: def.Logging.SentryDSN,
		},
	}
}

// MakeAllConfigs merges defaults, the optional config file, and CLI
// overrides into a single config struct, then makes sure the data
// directory exists.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if file := globalString(ctx, "config"); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}

	applyCLIOverrides(ctx, &cfg)

	if err := ensureDir(cfg.Node.DataDir); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// -----------------------------------------------------------------------------
// Config-file / CLI wiring
// -----------------------------------------------------------------------------

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	cfg.Node.DataDir = resolvePath(cfg.Node.DataDir)
	return nil
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) {
	if isSet(ctx, "datadir") {
		cfg.Node.DataDir = resolvePath(globalString(ctx, "datadir"))
	}
	if isSet(ctx, "call.timeout") {
		cfg.Node.CallTimeout = ctx.GlobalDuration("call.timeout")
	}

	if isSet(ctx, "caller") {
		cfg.Caller = globalString(ctx, "caller")
	}
	if isSet(ctx, "now") {
		cfg.Now = globalString(ctx, "now")
	}
	if isSet(ctx, "preset") {
		cfg.Airdrop.Preset = globalString(ctx, "preset")
	}

	if isSet(ctx, "log.format") {
		cfg.Logging.Format = globalString(ctx, "log.format")
	}
	if isSet(ctx, "log.verbosity") {
		cfg.Logging.Verbosity = ctx.GlobalInt("log.verbosity")
	}
	if isSet(ctx, "log.color") {
		cfg.Logging.Color = ctx.GlobalBool("log.color")
	}
	if isSet(ctx, "sentry.dsn") {
		cfg.Logging.SentryDSN = globalString(ctx, "sentry.dsn")
	}

	if ctx.GlobalBool("metrics") {
		cfg.Metrics.Enable = true
	}
	if isSet(ctx, "metrics.addr") {
		cfg.Metrics.HTTPAddr = globalString(ctx, "metrics.addr")
	}
	if isSet(ctx, "metrics.port") {
		cfg.Metrics.HTTPPort = ctx.GlobalInt("metrics.port")
	}
}

// isSet reports whether name was given, as a global or a command flag.
func isSet(ctx *cli.Context, name string) bool {
	return ctx.GlobalIsSet(name) || ctx.IsSet(name)
}

func globalString(ctx *cli.Context, name string) string {
	if ctx.IsSet(name) {
		return ctx.String(name)
	}
	return ctx.GlobalString(name)
}

// Build resolves the preset and applies the overrides.
func (c AirdropConfig) Build(now time.Time) (airdrop.Config, error) {
	cfg, err := airdrop.PresetByName(c.Preset, now)
	if err != nil {
		return cfg, err
	}

	if cfg.Operator, err = parseAddress("operator", c.Operator); err != nil {
		return cfg, err
	}
	if cfg.Governance, err = parseAddress("governance", c.Governance); err != nil {
		return cfg, err
	}
	if c.PoolAccount != "" {
		if cfg.PoolAccount, err = inter.ParseAccountID(c.PoolAccount); err != nil {
			return cfg, fmt.Errorf("pool account: %w", err)
		}
	}

	if c.ExchangeRate != 0 {
		cfg.ExchangeRate = c.ExchangeRate
	}
	if c.ClaimStart != "" {
		t, err := parseTime(c.ClaimStart)
		if err != nil {
			return cfg, fmt.Errorf("claim start: %w", err)
		}
		cfg.ClaimStart = inter.FromTime(t)
	}
	if c.ClaimEnd != "" {
		t, err := parseTime(c.ClaimEnd)
		if err != nil {
			return cfg, fmt.Errorf("claim end: %w", err)
		}
		cfg.ClaimEnd = inter.FromTime(t)
	}
	if c.PerAccountMaxTokens != "" {
		if cfg.PerAccountMaxTokens, err = parseTokens(c.PerAccountMaxTokens); err != nil {
			return cfg, fmt.Errorf("per-account cap: %w", err)
		}
	}
	if c.MinHolding != "" {
		if cfg.MinHolding, err = parseTokens(c.MinHolding); err != nil {
			return cfg, fmt.Errorf("min holding: %w", err)
		}
	}
	if c.IngestRateLimitPerDay != nil {
		cfg.IngestRateLimitPerDay = *c.IngestRateLimitPerDay
	}
	if c.HolderWeight != nil {
		cfg.Weights.Holder = *c.HolderWeight
	}
	if c.ContributorWeight != nil {
		cfg.Weights.Contributor = *c.ContributorWeight
	}
	return cfg, cfg.Validate()
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func parseAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

// parseTokens converts a decimal amount of whole tokens into base units.
func parseTokens(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", s)
	}
	units := d.Shift(airdrop.TokenDecimals)
	if !units.Equal(units.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", s, airdrop.TokenDecimals)
	}
	return units.BigInt(), nil
}

// formatTokens renders base units as whole tokens.
func formatTokens(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -airdrop.TokenDecimals).String()
}

// parseTime accepts unix seconds or RFC3339.
func parseTime(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
