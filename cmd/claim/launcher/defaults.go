package launcher

import "time"

// Defaults bundles the baseline configuration values the launcher will use
// before flags/config files override them.

type Defaults struct {
	Node    NodeDefaults
	Airdrop AirdropDefaults
	Metrics MetricsDefaults
	Logging LoggingDefaults
}

// NodeDefaults captures where the host keeps its stable memory.

type NodeDefaults struct {
	DataDir     string        //	Filesystem root of the host. Changing it keeps several engines apart.
	StableStore string        //	sqlite file under DataDir holding every upgrade blob.
	CallTimeout time.Duration //	Upper bound on one call that reaches the ledger.
}

// AirdropDefaults seed the engine config used by init and set-params. The
// preset supplies every economic parameter; a config file may override them.
type AirdropDefaults struct {
	Preset      string //	default or fake; selects the base airdrop.Config.
	Operator    string //	Identity the engine approves and transfers as.
	Governance  string //	Owner of the staking accounts of the simulated ledger.
	PoolAccount string //	Account holding the tokens being distributed.
}

type MetricsDefaults struct {
	Enable   bool   //	Serve Prometheus metrics while a command runs.
	HTTPAddr string //	IP/interface the metrics server binds to.
	HTTPPort int    //	TCP port of the metrics server.
}

// LoggingDefaults controls log verbosity/format.
type LoggingDefaults struct {
	Verbosity int    //	Log level numeric (0=fatal, 1=error, 2=warn, 3=info, 4=debug, 5=trace).
	Format    string //	Log output format (text vs json).
	Color     bool   //	Whether to use ANSI color codes in logs.
	SentryDSN string //	Errors are forwarded to Sentry when set.
}

// DefaultConfig returns a fully populated Defaults instance.

func DefaultConfig() Defaults {
	return Defaults{
		Node: NodeDefaults{
			DataDir:     "~/.airdrop-claim",
			StableStore: "stable.db",
			CallTimeout: 30 * time.Second,
		},
		Airdrop: AirdropDefaults{
			Preset:      "default",
			Operator:    "0x00000000000000000000000000000000000a1d09",
			Governance:  "0x000000000000000000000000000000000000900d",
			PoolAccount: "0x0000000000000000000000000000000000000b00",
		},
		Metrics: MetricsDefaults{
			Enable:   false,
			HTTPAddr: "127.0.0.1",
			HTTPPort: 6060,
		},
		Logging: LoggingDefaults{
			Verbosity: 3,
			Format:    "text",
			Color:     false,
		},
	}
}
