package inter

import (
	"fmt"
	"math/big"
	"math/bits"
)

// LadderSize is the number of vesting slots in every claim record.
const LadderSize = 8

// SlotStatus is the lifecycle position of one ladder slot.
//
//	Pending -> Ready -> Staked -> Claimed
//
// Transitions only move forward, with one exception: an admin may put a
// Ready slot back to Pending.
type SlotStatus uint8

const (
	// SlotPending: allocated but not yet released for claiming.
	SlotPending SlotStatus = iota
	// SlotReady: the owner triggered the claim inside the window.
	SlotReady
	// SlotStaked: tokens moved to governance and locked; LockID is set.
	SlotStaked
	// SlotClaimed: the lock matured and the payout was confirmed. Terminal.
	SlotClaimed
)

func (s SlotStatus) String() string {
	switch s {
	case SlotPending:
		return "pending"
	case SlotReady:
		return "ready"
	case SlotStaked:
		return "staked"
	case SlotClaimed:
		return "claimed"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Valid reports whether s is one of the four known statuses.
func (s SlotStatus) Valid() bool {
	return s <= SlotClaimed
}

// SlotSet is a set of slot indices. With eight slots a uint8 bitmask can
// only ever hold indices in 0..7.
type SlotSet uint8

// Add inserts i and reports whether the set changed.
func (s *SlotSet) Add(i uint8) bool {
	if i >= LadderSize {
		return false
	}
	bit := SlotSet(1) << i
	if *s&bit != 0 {
		return false
	}
	*s |= bit
	return true
}

// Has reports whether i is in the set.
func (s SlotSet) Has(i uint8) bool {
	return i < LadderSize && s&(SlotSet(1)<<i) != 0
}

// Len returns the number of indices in the set.
func (s SlotSet) Len() int {
	return bits.OnesCount8(uint8(s))
}

// Full reports whether every slot index is present.
func (s SlotSet) Full() bool {
	return s.Len() == LadderSize
}

// Indices lists the members in ascending order.
func (s SlotSet) Indices() []uint8 {
	out := make([]uint8, 0, s.Len())
	for i := uint8(0); i < LadderSize; i++ {
		if s.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

// LadderSlot is one time-locked tranche of an allocation.
type LadderSlot struct {
	Index         uint8
	DissolveDelay uint64 // seconds the governance lock holds the tokens
	Amount        *big.Int
	Status        SlotStatus
	LockID        uint64 // governance lock reference; meaningful once Staked
}

// Copy returns a deep copy.
func (s LadderSlot) Copy() LadderSlot {
	cp := s
	cp.Amount = new(big.Int)
	if s.Amount != nil {
		cp.Amount.Set(s.Amount)
	}
	return cp
}

func (s LadderSlot) String() string {
	return fmt.Sprintf("slot %d: %s %v (delay=%ds lock=%d)", s.Index, s.Status, s.Amount, s.DissolveDelay, s.LockID)
}

// Ladder is the full vesting schedule of one account.
type Ladder [LadderSize]LadderSlot

// Copy returns a deep copy.
func (l Ladder) Copy() Ladder {
	var cp Ladder
	for i := range l {
		cp[i] = l[i].Copy()
	}
	return cp
}

// Sum adds up the slot amounts.
func (l Ladder) Sum() *big.Int {
	sum := new(big.Int)
	for _, s := range l {
		if s.Amount != nil {
			sum.Add(sum, s.Amount)
		}
	}
	return sum
}

// CountStatus returns how many slots are in status st.
func (l Ladder) CountStatus(st SlotStatus) int {
	n := 0
	for _, s := range l {
		if s.Status == st {
			n++
		}
	}
	return n
}

// ClaimRecord is the per-account claim state. It is created the first time
// the account prepares its claim and is never deleted.
type ClaimRecord struct {
	TotalAllocation *big.Int
	Ladder          Ladder
	ClaimedSlots    SlotSet
	LastClaimTs     Timestamp // 0 until the first slot is claimed
}

// Copy returns a deep copy.
func (r *ClaimRecord) Copy() *ClaimRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.TotalAllocation = new(big.Int)
	if r.TotalAllocation != nil {
		cp.TotalAllocation.Set(r.TotalAllocation)
	}
	cp.Ladder = r.Ladder.Copy()
	return &cp
}

// Complete reports whether all eight slots have been claimed.
func (r *ClaimRecord) Complete() bool {
	return r != nil && r.ClaimedSlots.Full()
}

// PointsBreakdown is a derived score. It is recomputed from the snapshot and
// contribution maps whenever it is needed.
type PointsBreakdown struct {
	Holder      uint64
	Contributor uint64
	Total       uint64
}

// ClaimPreview is what an account would receive if it prepared its claim
// right now.
type ClaimPreview struct {
	Account         AccountID
	TotalAllocation *big.Int
	Ladder          Ladder
	Points          PointsBreakdown
	AllPoints       *big.Int // normalization denominator
	Cap             *big.Int // zero means uncapped
	WithinCap       bool
}
