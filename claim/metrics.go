package claim

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SlotTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_claim_slot_transitions_total",
			Help: "Total number of slot transition attempts",
		},
		[]string{"transition", "status"},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "airdrop_claim_external_call_duration_seconds",
			Help:    "Duration of ledger and governance calls",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"op"},
	)

	AdminCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_claim_admin_calls_total",
			Help: "Total number of admin operations",
		},
		[]string{"op", "status"},
	)

	IngestedEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_claim_ingested_entries_total",
			Help: "Total number of ingested snapshot and contribution entries",
		},
		[]string{"source"},
	)

	PoolBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airdrop_claim_pool_balance_tokens",
			Help: "Undistributed pool balance in whole tokens",
		},
	)

	CompletedAccounts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airdrop_claim_completed_accounts",
			Help: "Number of accounts with every ladder slot claimed",
		},
	)
)

const (
	statusOK    = "ok"
	statusError = "error"
	statusNoop  = "noop"
)

func outcome(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}

// tokensFloat converts base units to whole tokens for gauges only.
func tokensFloat(v *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), new(big.Float).SetInt(baseUnit)).Float64()
	return f
}
