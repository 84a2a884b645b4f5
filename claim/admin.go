package claim

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-airdrop-claim/airdrop"
	"github.com/rony4d/go-airdrop-claim/inter"
	"github.com/rony4d/go-airdrop-claim/state"
)

// ErrInvalidAmount rejects nil or negative token amounts.
var ErrInvalidAmount = errors.New("invalid amount")

// HoldingEntry is one row of a holder snapshot batch.
type HoldingEntry struct {
	Account inter.AccountID
	Amount  *big.Int
}

// ContributionEntry is one row of a contribution batch, in base units.
type ContributionEntry struct {
	Account inter.AccountID
	Amount  uint64
}

// admin runs fn under the store lock once caller is confirmed as an admin.
// fn must validate before it mutates.
func (e *Engine) admin(op string, caller inter.AccountID, fn func(st *state.State) error) error {
	err := e.store.Update(func(st *state.State) error {
		if !st.IsAdmin(caller) {
			return ErrAdminOnly
		}
		return fn(st)
	})
	AdminCallsTotal.WithLabelValues(op, outcome(err)).Inc()

	log := e.log.WithFields(logrus.Fields{"op": op, "caller": caller.String()})
	if err != nil {
		log.WithError(err).Warn("Admin call rejected")
		return err
	}
	log.Info("Admin call applied")
	return nil
}

// SetParams replaces the config wholesale. The claim window follows the new
// config and every score is recomputed.
func (e *Engine) SetParams(caller inter.AccountID, cfg airdrop.Config) error {
	cfg = cfg.Copy()
	err := e.admin("set_params", caller, func(st *state.State) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		st.Config = cfg
		st.Window = cfg.Window()
		st.RecomputePoints()
		return nil
	})
	if err == nil {
		e.resetLimiter(cfg.IngestRateLimitPerDay)
	}
	return err
}

// FundPool adds amount base units to the distribution pool.
func (e *Engine) FundPool(caller inter.AccountID, amount *big.Int) error {
	return e.admin("fund_pool", caller, func(st *state.State) error {
		if amount == nil || amount.Sign() < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
		}
		st.CreditPool(amount)
		PoolBalance.Set(tokensFloat(st.PoolBalance))
		return nil
	})
}

// IngestSnapshot merges a batch of holdings. Entries are applied in order,
// so a later entry for the same account wins, within and across batches.
func (e *Engine) IngestSnapshot(caller inter.AccountID, batch []HoldingEntry) error {
	return e.admin("ingest_snapshot", caller, func(st *state.State) error {
		for i, en := range batch {
			if en.Amount == nil || en.Amount.Sign() < 0 {
				return fmt.Errorf("%w: entry %d (%s)", ErrInvalidAmount, i, en.Account)
			}
		}
		if !e.allowIngest() {
			return ErrRateLimited
		}
		for _, en := range batch {
			st.Snapshot[en.Account] = new(big.Int).Set(en.Amount)
		}
		st.RecomputePoints()
		IngestedEntriesTotal.WithLabelValues("snapshot").Add(float64(len(batch)))
		return nil
	})
}

// IngestContributions merges a batch of contributions, last write wins.
func (e *Engine) IngestContributions(caller inter.AccountID, batch []ContributionEntry) error {
	return e.admin("ingest_contributions", caller, func(st *state.State) error {
		if !e.allowIngest() {
			return ErrRateLimited
		}
		for _, en := range batch {
			st.Contributions[en.Account] = en.Amount
		}
		st.RecomputePoints()
		IngestedEntriesTotal.WithLabelValues("contributions").Add(float64(len(batch)))
		return nil
	})
}

// OpenClaims sets the claim window to [start, end).
func (e *Engine) OpenClaims(caller inter.AccountID, start, end inter.Timestamp) error {
	return e.admin("open_claims", caller, func(st *state.State) error {
		if start > end {
			return fmt.Errorf("%w: %s > %s", ErrInvalidWindow, start, end)
		}
		setWindow(st, inter.Window{Start: start, End: end})
		return nil
	})
}

// CloseClaims ends the window now. Slots already staked or claimed are not
// affected; no slot can become ready or staked afterwards.
func (e *Engine) CloseClaims(caller inter.AccountID) error {
	now := e.now()
	return e.admin("close_claims", caller, func(st *state.State) error {
		w := st.Window
		w.End = now
		if w.Start > now {
			w.Start = now
		}
		setWindow(st, w)
		return nil
	})
}

func setWindow(st *state.State, w inter.Window) {
	st.Window = w
	st.Config.ClaimStart, st.Config.ClaimEnd = w.Start, w.End
}

// SetACL replaces the admin set. The caller may leave itself out and lose
// admin access; an empty set is rejected.
func (e *Engine) SetACL(caller inter.AccountID, admins []inter.AccountID) error {
	return e.admin("set_acl", caller, func(st *state.State) error {
		if len(admins) == 0 {
			return ErrEmptyACL
		}
		next := make(map[inter.AccountID]struct{}, len(admins))
		for _, a := range admins {
			next[a] = struct{}{}
		}
		st.Admins = next
		return nil
	})
}

// ResetSlot moves a Ready slot of account back to Pending.
func (e *Engine) ResetSlot(caller, account inter.AccountID, index uint8) error {
	return e.admin("reset_slot", caller, func(st *state.State) error {
		if err := checkSlot(index); err != nil {
			return err
		}
		rec, ok := st.Claims[account]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoClaimRecord, account)
		}
		slot := &rec.Ladder[index]
		if slot.Status != inter.SlotReady {
			return fmt.Errorf("%w: slot %d is %s, want %s", ErrSlotState, index, slot.Status, inter.SlotReady)
		}
		slot.Status = inter.SlotPending
		return nil
	})
}
