package launcher

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-airdrop-claim/airdrop"
	"github.com/rony4d/go-airdrop-claim/flags"
	"github.com/rony4d/go-airdrop-claim/inter"
)

// helper to run MakeAllConfigs with a synthetic CLI context.

func runConfigFromArgs(t *testing.T, args []string) Config {

	t.Helper()

	app := cli.NewApp()

	app.HideHelp = true
	app.HideVersion = true

	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, flags.EngineFlags()...)

	var got Config

	app.Action = func(c *cli.Context) error {
		var err error
		got, err = MakeAllConfigs(c)
		return err
	}

	if err := app.Run(append([]string{"claim"}, args...)); err != nil {
		t.Fatalf("app.Run failed: %v", err)
	}
	return got
}

// TestMakeAllConfigs_flagOverrides verifies that the global flags override
// the corresponding fields of the aggregated Config.
func TestMakeAllConfigs_flagOverrides(t *testing.T) {

	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want func(t *testing.T, cfg Config)
	}{
		{
			name: "defaults",
			args: []string{"--datadir", dir},
			want: func(t *testing.T, cfg Config) {
				if cfg.Airdrop.Preset != "default" {
					t.Fatalf("Preset = %q, want default", cfg.Airdrop.Preset)
				}
				if cfg.Node.StableStore != "stable.db" {
					t.Fatalf("StableStore = %q, want stable.db", cfg.Node.StableStore)
				}
				if cfg.Metrics.Enable {
					t.Fatal("metrics should be off by default")
				}
			},
		},
		{
			name: "datadir and caller",
			args: []string{"--datadir", filepath.Join(dir, "node"), "--caller", "0x00000000000000000000000000000000000000a1"},
			want: func(t *testing.T, cfg Config) {
				if cfg.Node.DataDir != filepath.Join(dir, "node") {
					t.Fatalf("DataDir = %q, want %q", cfg.Node.DataDir, filepath.Join(dir, "node"))
				}
				if _, err := os.Stat(cfg.Node.DataDir); err != nil {
					t.Fatalf("datadir not created: %v", err)
				}
				if cfg.Caller != "0x00000000000000000000000000000000000000a1" {
					t.Fatalf("Caller = %q", cfg.Caller)
				}
			},
		},
		{
			name: "logging and metrics",
			args: []string{"--datadir", dir, "--log.format", "json", "--log.verbosity", "5", "--metrics", "--metrics.port", "9100", "--sentry.dsn", "https://key@sentry.invalid/1"},
			want: func(t *testing.T, cfg Config) {
				if cfg.Logging.Format != "json" || cfg.Logging.Verbosity != 5 {
					t.Fatalf("Logging = %+v", cfg.Logging)
				}
				if !cfg.Metrics.Enable || cfg.Metrics.HTTPPort != 9100 {
					t.Fatalf("Metrics = %+v", cfg.Metrics)
				}
				if cfg.Logging.SentryDSN == "" {
					t.Fatal("SentryDSN not applied")
				}
			},
		},
		{
			name: "engine flags",
			args: []string{"--datadir", dir, "--preset", "fake", "--now", "1767225600", "--call.timeout", "5s"},
			want: func(t *testing.T, cfg Config) {
				if cfg.Airdrop.Preset != "fake" || cfg.Now != "1767225600" {
					t.Fatalf("Preset/Now = %q/%q", cfg.Airdrop.Preset, cfg.Now)
				}
				if cfg.Node.CallTimeout != 5*time.Second {
					t.Fatalf("CallTimeout = %v, want 5s", cfg.Node.CallTimeout)
				}
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := runConfigFromArgs(t, test.args)
			test.want(t, cfg)
			t.Logf("args = %#v", test.args)
		})
	}

}

// TestConfigFile verifies the YAML file is applied before flag overrides.
func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "claim.yaml")
	body := `
node:
  datadir: ` + dir + `
  call_timeout: 10s
caller: "0x00000000000000000000000000000000000000b1"
airdrop:
  preset: fake
  per_account_max_tokens: "250"
  ingest_rate_limit_per_day: 0
  contributor_weight: 3
logging:
  verbosity: 2
`
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := runConfigFromArgs(t, []string{"--config", file, "--log.verbosity", "4"})
	if cfg.Node.DataDir != dir {
		t.Fatalf("DataDir = %q, want %q", cfg.Node.DataDir, dir)
	}
	if cfg.Node.CallTimeout != 10*time.Second {
		t.Fatalf("CallTimeout = %v, want 10s", cfg.Node.CallTimeout)
	}
	if cfg.Logging.Verbosity != 4 {
		t.Fatalf("Verbosity = %d, flag should win over file", cfg.Logging.Verbosity)
	}

	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	ad, err := cfg.Airdrop.Build(now)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wantCap := new(big.Int).Mul(big.NewInt(250), airdrop.BaseUnit)
	if ad.PerAccountMaxTokens.Cmp(wantCap) != 0 {
		t.Fatalf("cap = %v, want %v", ad.PerAccountMaxTokens, wantCap)
	}
	if ad.Weights.Contributor != 3 || ad.Weights.Holder != 1 {
		t.Fatalf("Weights = %+v", ad.Weights)
	}
	if ad.IngestRateLimitPerDay != 0 {
		t.Fatalf("IngestRateLimitPerDay = %d", ad.IngestRateLimitPerDay)
	}
	if !ad.Window().Contains(inter.FromTime(now)) {
		t.Fatalf("fake preset window %s should be open", ad.Window())
	}
}

func TestBuildRejects(t *testing.T) {
	now := time.Now()
	bad := []AirdropConfig{
		{Preset: "mainnet"},
		{Preset: "default", Operator: "not-an-address"},
		{Preset: "default", PoolAccount: "0x12"},
		{Preset: "default", MinHolding: "-3"},
		{Preset: "default", ClaimStart: "2026-02-01T00:00:00Z", ClaimEnd: "2026-01-01T00:00:00Z"},
	}
	for _, c := range bad {
		if _, err := c.Build(now); err == nil {
			t.Errorf("Build(%+v) succeeded, want error", c)
		}
	}
}
