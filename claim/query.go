package claim

import (
	"fmt"
	"math/big"

	"github.com/rony4d/go-airdrop-claim/airdrop"
	"github.com/rony4d/go-airdrop-claim/airdrop/allocation"
	"github.com/rony4d/go-airdrop-claim/inter"
	"github.com/rony4d/go-airdrop-claim/state"
)

// Status summarizes the engine for operators.
type Status struct {
	Config       airdrop.Config
	Admins       []inter.AccountID
	PoolBalance  *big.Int
	PoolFunded   *big.Int
	Window       inter.Window
	WindowOpen   bool
	Participants int
	TotalPoints  *big.Int
	Records      int
	ClaimedCount uint32
}

// Accounts lists every account present in the snapshot or the contribution
// data, in canonical order.
func (e *Engine) Accounts() ([]inter.AccountID, error) {
	var out []inter.AccountID
	err := e.store.View(func(st *state.State) error {
		out = st.Participants()
		return nil
	})
	return out, err
}

// Holding returns the ingested snapshot balance of account, zero if absent.
func (e *Engine) Holding(account inter.AccountID) (*big.Int, error) {
	out := new(big.Int)
	err := e.store.View(func(st *state.State) error {
		if v, ok := st.Snapshot[account]; ok {
			out.Set(v)
		}
		return nil
	})
	return out, err
}

// Contribution returns the ingested contribution of account, zero if absent.
func (e *Engine) Contribution(account inter.AccountID) (uint64, error) {
	var out uint64
	err := e.store.View(func(st *state.State) error {
		out = st.Contributions[account]
		return nil
	})
	return out, err
}

// Points returns the current score breakdown of account.
func (e *Engine) Points(account inter.AccountID) (inter.PointsBreakdown, error) {
	var out inter.PointsBreakdown
	err := e.store.View(func(st *state.State) error {
		out = st.Breakdown(account)
		return nil
	})
	return out, err
}

// PoolBalance returns the undistributed pool balance.
func (e *Engine) PoolBalance() (*big.Int, error) {
	out := new(big.Int)
	err := e.store.View(func(st *state.State) error {
		out.Set(st.PoolBalance)
		return nil
	})
	return out, err
}

// IsAdmin reports whether account is currently an admin.
func (e *Engine) IsAdmin(account inter.AccountID) (bool, error) {
	var out bool
	err := e.store.View(func(st *state.State) error {
		out = st.IsAdmin(account)
		return nil
	})
	return out, err
}

// Preview returns what account receives. Once a claim record exists its
// frozen allocation and current slot statuses are returned; before that the
// allocation is computed from the current data. Preview never mutates state
// and works whether or not the claim window is open.
func (e *Engine) Preview(account inter.AccountID) (inter.ClaimPreview, error) {
	var out inter.ClaimPreview
	err := e.store.View(func(st *state.State) error {
		out = preview(st, account)
		return nil
	})
	return out, err
}

func preview(st *state.State, account inter.AccountID) inter.ClaimPreview {
	pts := st.Breakdown(account)
	limit := new(big.Int).Set(st.Config.PerAccountMaxTokens)
	uncapped := allocation.Allocate(st.PoolFunded, st.Points[account], st.TotalPoints, nil)

	p := inter.ClaimPreview{
		Account:   account,
		Points:    pts,
		AllPoints: new(big.Int).Set(st.TotalPoints),
		Cap:       limit,
	}
	if rec, ok := st.Claims[account]; ok {
		p.TotalAllocation = new(big.Int).Set(rec.TotalAllocation)
		p.Ladder = rec.Ladder.Copy()
	} else {
		p.TotalAllocation = allocation.Allocate(st.PoolFunded, st.Points[account], st.TotalPoints, limit)
		p.Ladder = allocation.DefaultLadder(p.TotalAllocation)
	}
	p.WithinCap = uncapped.Cmp(p.TotalAllocation) <= 0
	return p
}

// HasClaimed reports whether every slot of account has been claimed.
func (e *Engine) HasClaimed(account inter.AccountID) (bool, error) {
	var out bool
	err := e.store.View(func(st *state.State) error {
		out = st.Claims[account].Complete()
		return nil
	})
	return out, err
}

// ClaimRecord returns a copy of the claim record of account.
func (e *Engine) ClaimRecord(account inter.AccountID) (*inter.ClaimRecord, error) {
	var out *inter.ClaimRecord
	err := e.store.View(func(st *state.State) error {
		rec, ok := st.Claims[account]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoClaimRecord, account)
		}
		out = rec.Copy()
		return nil
	})
	return out, err
}

// Status returns an operator summary.
func (e *Engine) Status() (Status, error) {
	var out Status
	now := e.now()
	err := e.store.View(func(st *state.State) error {
		out = Status{
			Config:       st.Config.Copy(),
			Admins:       st.AdminList(),
			PoolBalance:  new(big.Int).Set(st.PoolBalance),
			PoolFunded:   new(big.Int).Set(st.PoolFunded),
			Window:       st.Window,
			WindowOpen:   st.Window.Contains(now),
			Participants: len(st.Participants()),
			TotalPoints:  new(big.Int).Set(st.TotalPoints),
			Records:      len(st.Claims),
			ClaimedCount: st.ClaimedCount,
		}
		return nil
	})
	return out, err
}
