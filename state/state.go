package state

import (
	"math/big"
	"sort"

	"github.com/rony4d/go-airdrop-claim/airdrop"
	"github.com/rony4d/go-airdrop-claim/airdrop/points"
	"github.com/rony4d/go-airdrop-claim/inter"
)

// State is the whole mutable record of one claim engine. It is only reached
// through a Store, which serializes access to it.
type State struct {
	Admins map[inter.AccountID]struct{}
	Config airdrop.Config

	// PoolBalance is what is left to distribute. It never goes negative.
	PoolBalance *big.Int
	// PoolFunded is everything ever funded; allocations are normalized
	// against it so early and late claimers get the same share.
	PoolFunded *big.Int
	Window     inter.Window

	// Data sources, populated by ingestion only.
	Snapshot      map[inter.AccountID]*big.Int
	Contributions map[inter.AccountID]uint64

	// Derived from the data sources and the config by RecomputePoints.
	Points      map[inter.AccountID]uint64
	TotalPoints *big.Int

	Claims       map[inter.AccountID]*inter.ClaimRecord
	ClaimedCount uint32
}

// New returns an empty, default-initialized state.
func New() *State {
	return &State{
		Admins:        make(map[inter.AccountID]struct{}),
		Config:        airdrop.Config{}.Copy(),
		PoolBalance:   new(big.Int),
		PoolFunded:    new(big.Int),
		Snapshot:      make(map[inter.AccountID]*big.Int),
		Contributions: make(map[inter.AccountID]uint64),
		Points:        make(map[inter.AccountID]uint64),
		TotalPoints:   new(big.Int),
		Claims:        make(map[inter.AccountID]*inter.ClaimRecord),
	}
}

// IsAdmin reports whether id is in the admin set.
func (s *State) IsAdmin(id inter.AccountID) bool {
	_, ok := s.Admins[id]
	return ok
}

// AdminList returns the admin set in canonical order.
func (s *State) AdminList() []inter.AccountID {
	out := make([]inter.AccountID, 0, len(s.Admins))
	for id := range s.Admins {
		out = append(out, id)
	}
	sortAccounts(out)
	return out
}

// Participants returns every account present in the snapshot or the
// contribution map, in canonical order.
func (s *State) Participants() []inter.AccountID {
	seen := make(map[inter.AccountID]struct{}, len(s.Snapshot)+len(s.Contributions))
	for id := range s.Snapshot {
		seen[id] = struct{}{}
	}
	for id := range s.Contributions {
		seen[id] = struct{}{}
	}
	out := make([]inter.AccountID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sortAccounts(out)
	return out
}

// Breakdown computes the points of one account from the current data.
func (s *State) Breakdown(id inter.AccountID) inter.PointsBreakdown {
	return points.Compute(s.Config, s.Snapshot[id], s.Contributions[id])
}

// RecomputePoints rebuilds the derived points map and its total. It must be
// called after every ingestion and every config replacement.
func (s *State) RecomputePoints() {
	s.Points = make(map[inter.AccountID]uint64, len(s.Points))
	total := new(big.Int)
	for _, id := range s.Participants() {
		p := s.Breakdown(id).Total
		if p == 0 {
			continue
		}
		s.Points[id] = p
		total.Add(total, new(big.Int).SetUint64(p))
	}
	s.TotalPoints = total
}

// CreditPool adds amount to the pool and to the funded total.
func (s *State) CreditPool(amount *big.Int) {
	s.PoolBalance = new(big.Int).Add(s.PoolBalance, amount)
	s.PoolFunded = new(big.Int).Add(s.PoolFunded, amount)
}

// DebitPool reserves amount from the pool. It reports false and leaves the
// balance untouched when the pool cannot cover amount.
func (s *State) DebitPool(amount *big.Int) bool {
	if s.PoolBalance.Cmp(amount) < 0 {
		return false
	}
	s.PoolBalance = new(big.Int).Sub(s.PoolBalance, amount)
	return true
}

// RefundPool returns a reservation taken with DebitPool. The funded total is
// left untouched.
func (s *State) RefundPool(amount *big.Int) {
	s.PoolBalance = new(big.Int).Add(s.PoolBalance, amount)
}

func sortAccounts(ids []inter.AccountID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
