package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// EngineFlags covers the identity of the inbound call and the engine's view
// of time.

func EngineFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "caller",
			Usage: "Account the call is made as (0x<owner>[.<base58 subaccount>])",
		},
		cli.StringFlag{
			Name:  "preset",
			Usage: "Airdrop preset used by init (default|fake)",
			Value: "default",
		},
		cli.StringFlag{
			Name:  "now",
			Usage: "Pin the engine clock (RFC3339 or unix seconds); defaults to wall time",
		},
		cli.DurationFlag{
			Name:  "call.timeout",
			Usage: "Timeout for calls that reach the ledger",
			Value: 30 * time.Second,
		},
	}
}

// Per-command flags.
var (
	AccountFlag = cli.StringFlag{
		Name:  "account",
		Usage: "Target account",
	}
	SlotFlag = cli.IntFlag{
		Name:  "slot",
		Usage: "Ladder slot index (0-7); -1 selects every slot",
		Value: -1,
	}
	AmountFlag = cli.StringFlag{
		Name:  "amount",
		Usage: "Token amount, in whole tokens with up to 8 decimals",
	}
	FileFlag = cli.StringFlag{
		Name:  "file",
		Usage: "CSV file of account,amount rows",
	}
	StartFlag = cli.StringFlag{
		Name:  "start",
		Usage: "Window start (RFC3339 or unix seconds); defaults to now",
	}
	EndFlag = cli.StringFlag{
		Name:  "end",
		Usage: "Window end (RFC3339 or unix seconds)",
	}
	DurationFlag = cli.DurationFlag{
		Name:  "duration",
		Usage: "Window length when --end is not given",
		Value: 30 * 24 * time.Hour,
	}
	AdminsFlag = cli.StringFlag{
		Name:  "admins",
		Usage: "Comma-separated admin accounts",
	}
	HistoryFlag = cli.IntFlag{
		Name:  "limit",
		Usage: "Number of versions to list (0 = all)",
		Value: 10,
	}
)
