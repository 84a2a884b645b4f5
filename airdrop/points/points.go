// Package points turns raw holdings and contributions into scores.
//
// Holder points compress balances logarithmically (one point per decimal
// digit) so that large holders cannot dominate on snapshot size alone.
// Contributor points are linear in the USD value of a contribution up to
// TierThresholdUSD and count double beyond it.
//
// All functions are pure and saturate at math.MaxUint64 instead of wrapping.
package points

import (
	"math"
	"math/big"
	"math/bits"

	"github.com/rony4d/go-airdrop-claim/airdrop"
	"github.com/rony4d/go-airdrop-claim/inter"
)

const (
	// TierThresholdUSD is the contribution value scored at one point per USD.
	TierThresholdUSD uint64 = 100_000

	// TierMultiplier applies to every USD beyond the threshold.
	TierMultiplier uint64 = 2
)

var (
	// contributionDivisor converts base units x micro-USD rate into micro-USD.
	// Contributions are denominated in 8-decimal base units.
	contributionDivisor = big.NewInt(100_000_000)

	microPerUnit = big.NewInt(1_000_000)
	ten          = big.NewInt(10)
)

// HolderPoints returns the number of decimal digits of amount, 0 for 0.
func HolderPoints(amount *big.Int) uint64 {
	if amount == nil || amount.Sign() <= 0 {
		return 0
	}
	n := new(big.Int).Set(amount)
	var digits uint64
	for n.Sign() > 0 {
		n.Quo(n, ten)
		digits++
	}
	return digits
}

// MicroUSD converts a contribution in base units into micro-USD using a rate
// expressed in micro-USD per whole token.
func MicroUSD(contributed, rate uint64) *big.Int {
	v := new(big.Int).SetUint64(contributed)
	v.Mul(v, new(big.Int).SetUint64(rate))
	return v.Quo(v, contributionDivisor)
}

// USD truncates MicroUSD to whole USD, saturating at MaxUint64.
func USD(contributed, rate uint64) uint64 {
	usd := MicroUSD(contributed, rate)
	usd.Quo(usd, microPerUnit)
	if !usd.IsUint64() {
		return math.MaxUint64
	}
	return usd.Uint64()
}

// ContributorPoints scores a contribution: 1 point per USD up to
// TierThresholdUSD, TierMultiplier points per USD beyond.
func ContributorPoints(contributed, rate uint64) uint64 {
	usd := USD(contributed, rate)
	if usd <= TierThresholdUSD {
		return usd
	}
	excess := mulSat(usd-TierThresholdUSD, TierMultiplier)
	return addSat(TierThresholdUSD, excess)
}

// Total is the weighted sum w.Holder*holder + w.Contributor*contrib.
func Total(w airdrop.Weights, holder, contrib uint64) uint64 {
	return addSat(mulSat(uint64(w.Holder), holder), mulSat(uint64(w.Contributor), contrib))
}

// Compute derives the full breakdown for one account. Holdings below
// cfg.MinHolding earn no holder points.
func Compute(cfg airdrop.Config, holding *big.Int, contributed uint64) inter.PointsBreakdown {
	var holder uint64
	if holding != nil && (cfg.MinHolding == nil || holding.Cmp(cfg.MinHolding) >= 0) {
		holder = HolderPoints(holding)
	}
	contrib := ContributorPoints(contributed, cfg.ExchangeRate)
	return inter.PointsBreakdown{
		Holder:      holder,
		Contributor: contrib,
		Total:       Total(cfg.Weights, holder, contrib),
	}
}

func mulSat(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

func addSat(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}
