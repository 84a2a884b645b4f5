// Package allocation converts point scores into token amounts and lays an
// amount out over the vesting ladder.
package allocation

import (
	"math/big"

	"github.com/rony4d/go-airdrop-claim/inter"
)

// SlotPeriod is the vesting step between consecutive slots: slot i is
// locked for (i+1) periods.
const SlotPeriod uint64 = 6 * 30 * 24 * 60 * 60 // ~6 months in seconds

// Allocate returns the account's proportional share of pool:
//
//	floor(pool * accountPoints / totalPoints)
//
// clamped to limit when limit is positive. A zero denominator yields zero.
func Allocate(pool *big.Int, accountPoints uint64, totalPoints, limit *big.Int) *big.Int {
	if pool == nil || pool.Sign() <= 0 || accountPoints == 0 || totalPoints == nil || totalPoints.Sign() <= 0 {
		return new(big.Int)
	}
	share := new(big.Int).Mul(pool, new(big.Int).SetUint64(accountPoints))
	share.Quo(share, totalPoints)
	if limit != nil && limit.Sign() > 0 && share.Cmp(limit) > 0 {
		share.Set(limit)
	}
	return share
}

// DefaultLadder splits total into LadderSize slots of equal amount with
// delays growing one SlotPeriod per slot. The division remainder (at most
// LadderSize-1 base units) goes to the last, longest-locked slot so the
// slots always sum to total.
func DefaultLadder(total *big.Int) inter.Ladder {
	if total == nil {
		total = new(big.Int)
	}
	per, rem := new(big.Int).QuoRem(total, big.NewInt(inter.LadderSize), new(big.Int))

	var ladder inter.Ladder
	for i := range ladder {
		amount := new(big.Int).Set(per)
		if i == inter.LadderSize-1 {
			amount.Add(amount, rem)
		}
		ladder[i] = inter.LadderSlot{
			Index:         uint8(i),
			DissolveDelay: SlotDelay(uint8(i)),
			Amount:        amount,
			Status:        inter.SlotPending,
		}
	}
	return ladder
}

// SlotDelay is the lock duration of slot i in seconds.
func SlotDelay(i uint8) uint64 {
	return SlotPeriod * (uint64(i) + 1)
}
