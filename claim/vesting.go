package claim

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-airdrop-claim/airdrop/allocation"
	"github.com/rony4d/go-airdrop-claim/inter"
	"github.com/rony4d/go-airdrop-claim/ledger"
	"github.com/rony4d/go-airdrop-claim/state"
)

// BatchResult is the outcome of FinalizeAll or SettleAll. Slots holds the
// post-call view of every slot, Failed the slots that did not progress.
type BatchResult struct {
	Slots  inter.Ladder
	Failed []*SlotError
}

// Err joins the per-slot failures, nil when every slot succeeded.
func (r *BatchResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// PrepareClaim creates the claim record of caller on first use, freezing its
// allocation, and moves every Pending slot to Ready. It only works while the
// claim window is open.
func (e *Engine) PrepareClaim(caller inter.AccountID) (*inter.ClaimRecord, error) {
	now := e.now()
	var out *inter.ClaimRecord
	err := e.store.Update(func(st *state.State) error {
		if err := checkWindow(st, now); err != nil {
			return err
		}
		rec, ok := st.Claims[caller]
		if !ok {
			pts := st.Points[caller]
			if pts == 0 {
				return fmt.Errorf("%w: %s", ErrNotEligible, caller)
			}
			if st.PoolFunded.Sign() == 0 {
				return fmt.Errorf("%w: pool was never funded", ErrInsufficientPool)
			}
			total := allocation.Allocate(st.PoolFunded, pts, st.TotalPoints, st.Config.PerAccountMaxTokens)
			rec = &inter.ClaimRecord{
				TotalAllocation: total,
				Ladder:          allocation.DefaultLadder(total),
			}
			st.Claims[caller] = rec
			e.log.WithFields(logrus.Fields{
				"account":    caller.String(),
				"points":     pts,
				"allocation": total.String(),
			}).Info("Claim record created")
		}
		for i := range rec.Ladder {
			if rec.Ladder[i].Status == inter.SlotPending {
				rec.Ladder[i].Status = inter.SlotReady
			}
		}
		out = rec.Copy()
		return nil
	})
	SlotTransitionsTotal.WithLabelValues("prepare", outcome(err)).Inc()
	return out, err
}

// FinalizeSlot stakes Ready slot index of caller: the pool approves the
// operator, the operator moves the slot amount to the governance staking
// account, and governance locks it for the slot's dissolve delay. On success
// the slot is Staked with the lock reference recorded.
//
// A slot that is already Staked or Claimed is returned unchanged with a nil
// error. If any external call fails the slot keeps its prior state, the pool
// reservation is returned, and an *ExternalCallError is reported.
func (e *Engine) FinalizeSlot(ctx context.Context, caller inter.AccountID, index uint8) (inter.LadderSlot, error) {
	if err := checkSlot(index); err != nil {
		return inter.LadderSlot{}, err
	}
	key := fmt.Sprintf("finalize/%s/%d", caller, index)
	return e.coalesce(ctx, key, func(ctx context.Context) (inter.LadderSlot, error) {
		return e.finalizeSlot(ctx, caller, index)
	})
}

// coalesce runs fn once for all concurrent callers of key. The shared run is
// detached from the cancellation of whichever caller started it; a caller
// whose ctx ends stops waiting and gets ctx.Err() while the run completes.
func (e *Engine) coalesce(ctx context.Context, key string, fn func(ctx context.Context) (inter.LadderSlot, error)) (inter.LadderSlot, error) {
	if err := ctx.Err(); err != nil {
		return inter.LadderSlot{}, err
	}
	shared := context.WithoutCancel(ctx)
	ch := e.flight.DoChan(key, func() (interface{}, error) {
		return fn(shared)
	})
	select {
	case res := <-ch:
		slot, _ := res.Val.(inter.LadderSlot)
		return slot, res.Err
	case <-ctx.Done():
		return inter.LadderSlot{}, ctx.Err()
	}
}

// stakeJob is what finalizeSlot captures under the lock for the external
// calls.
type stakeJob struct {
	slot     inter.LadderSlot
	pool     inter.AccountID
	operator common.Address
}

func (e *Engine) finalizeSlot(ctx context.Context, caller inter.AccountID, index uint8) (inter.LadderSlot, error) {
	log := e.log.WithFields(logrus.Fields{
		"account": caller.String(),
		"slot":    index,
		"op":      uuid.NewString(),
	})
	now := e.now()

	var (
		job    stakeJob
		result inter.LadderSlot
		noop   bool
	)
	err := e.store.Update(func(st *state.State) error {
		rec, ok := st.Claims[caller]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoClaimRecord, caller)
		}
		slot := &rec.Ladder[index]
		switch slot.Status {
		case inter.SlotStaked, inter.SlotClaimed:
			result, noop = slot.Copy(), true
			return nil
		case inter.SlotPending:
			return fmt.Errorf("%w: slot %d is %s, want %s", ErrSlotState, index, slot.Status, inter.SlotReady)
		}
		if err := checkWindow(st, now); err != nil {
			return err
		}
		if slot.Amount.Sign() == 0 {
			// Nothing to move; the slot is staked without a lock.
			slot.Status = inter.SlotStaked
			result, noop = slot.Copy(), true
			return nil
		}
		if !st.DebitPool(slot.Amount) {
			return &InsufficientPoolError{Requested: slot.Amount.String(), Available: st.PoolBalance.String()}
		}
		job = stakeJob{
			slot:     slot.Copy(),
			pool:     st.Config.PoolAccount,
			operator: st.Config.Operator,
		}
		return nil
	})
	if err != nil {
		SlotTransitionsTotal.WithLabelValues("finalize", statusError).Inc()
		log.WithError(err).Debug("Finalize rejected")
		return inter.LadderSlot{}, err
	}
	if noop {
		SlotTransitionsTotal.WithLabelValues("finalize", statusNoop).Inc()
		return result, nil
	}

	// The store lock is released while the collaborators run.
	lockID, callErr := e.stake(ctx, caller, job)

	err = e.store.Update(func(st *state.State) error {
		rec := st.Claims[caller]
		if callErr != nil {
			st.RefundPool(job.slot.Amount)
			if rec != nil {
				result = rec.Ladder[index].Copy()
			}
			return callErr
		}
		if rec == nil {
			return fmt.Errorf("%w: %s", ErrNoClaimRecord, caller)
		}
		slot := &rec.Ladder[index]
		switch slot.Status {
		case inter.SlotReady:
			slot.Status = inter.SlotStaked
			slot.LockID = lockID
			result = slot.Copy()
			PoolBalance.Set(tokensFloat(st.PoolBalance))
			return nil
		case inter.SlotStaked, inter.SlotClaimed:
			st.RefundPool(job.slot.Amount)
			result = slot.Copy()
			return nil
		default:
			// Reset by an admin while the lock was being placed. The lock is
			// memo-keyed, so finalizing again later reuses it.
			st.RefundPool(job.slot.Amount)
			result = slot.Copy()
			return fmt.Errorf("%w: slot %d became %s during finalization", ErrSlotState, index, slot.Status)
		}
	})
	SlotTransitionsTotal.WithLabelValues("finalize", outcome(err)).Inc()
	if err != nil {
		log.WithError(err).Warn("Slot finalization failed")
		return result, err
	}
	log.WithFields(logrus.Fields{"amount": result.Amount.String(), "lock": result.LockID}).Info("Slot staked")
	return result, nil
}

// stake runs approve, transfer-from and lock. Every call carries the slot
// memo, so a retry after a partial failure does not move funds twice.
func (e *Engine) stake(ctx context.Context, beneficiary inter.AccountID, job stakeJob) (uint64, error) {
	memo := ledger.SlotMemo(beneficiary, job.slot.Index)
	staking := e.gov.StakingAccount(beneficiary, memo)
	amount := new(big.Int).Set(job.slot.Amount)

	e.payMu.Lock()
	err := e.timed("approve", func() error {
		return e.led.Approve(ctx, ledger.Allowance{
			Owner:   job.pool,
			Spender: job.operator,
			Amount:  amount,
			Memo:    memo,
		})
	})
	if err != nil {
		e.payMu.Unlock()
		return 0, err
	}
	err = e.timed("transfer_from", func() error {
		_, err := e.led.TransferFrom(ctx, ledger.TransferRequest{
			Spender: job.operator,
			From:    job.pool,
			To:      staking,
			Amount:  amount,
			Memo:    memo,
		})
		return err
	})
	e.payMu.Unlock()
	if err != nil {
		return 0, err
	}
	var lockID uint64
	err = e.timed("lock", func() error {
		var err error
		lockID, err = e.gov.Lock(ctx, ledger.LockRequest{
			Beneficiary:   beneficiary,
			Amount:        amount,
			DissolveDelay: job.slot.DissolveDelay,
			Memo:          memo,
		})
		return err
	})
	return lockID, err
}

func (e *Engine) timed(op string, call func() error) error {
	start := time.Now()
	err := call()
	ExternalCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return &ExternalCallError{Op: op, Err: err}
	}
	return nil
}

// FinalizeAll finalizes every slot of caller. Failures are collected per
// slot; one failing slot does not stop the others.
func (e *Engine) FinalizeAll(ctx context.Context, caller inter.AccountID) (*BatchResult, error) {
	return e.batch(caller, func(i uint8) (inter.LadderSlot, error) {
		return e.FinalizeSlot(ctx, caller, i)
	})
}

// SettleSlot completes Staked slot index of caller once its lock matured:
// governance releases the lock to caller and the slot becomes Claimed.
// Settling a Claimed slot is a no-op. Settling is not bound to the claim
// window, since locks mature long after it closes.
func (e *Engine) SettleSlot(ctx context.Context, caller inter.AccountID, index uint8) (inter.LadderSlot, error) {
	if err := checkSlot(index); err != nil {
		return inter.LadderSlot{}, err
	}
	key := fmt.Sprintf("settle/%s/%d", caller, index)
	return e.coalesce(ctx, key, func(ctx context.Context) (inter.LadderSlot, error) {
		return e.settleSlot(ctx, caller, index)
	})
}

func (e *Engine) settleSlot(ctx context.Context, caller inter.AccountID, index uint8) (inter.LadderSlot, error) {
	log := e.log.WithFields(logrus.Fields{
		"account": caller.String(),
		"slot":    index,
		"op":      uuid.NewString(),
	})

	var (
		lockID uint64
		result inter.LadderSlot
		noop   bool
		direct bool
	)
	err := e.store.View(func(st *state.State) error {
		rec, ok := st.Claims[caller]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoClaimRecord, caller)
		}
		slot := rec.Ladder[index]
		switch slot.Status {
		case inter.SlotClaimed:
			result, noop = slot.Copy(), true
			return nil
		case inter.SlotStaked:
			lockID = slot.LockID
			direct = slot.Amount.Sign() == 0
			return nil
		}
		return fmt.Errorf("%w: slot %d is %s, want %s", ErrSlotState, index, slot.Status, inter.SlotStaked)
	})
	if err != nil {
		SlotTransitionsTotal.WithLabelValues("settle", statusError).Inc()
		return inter.LadderSlot{}, err
	}
	if noop {
		SlotTransitionsTotal.WithLabelValues("settle", statusNoop).Inc()
		return result, nil
	}

	if !direct {
		err = e.timed("release", func() error {
			_, err := e.gov.Release(ctx, lockID, caller)
			return err
		})
		if err != nil {
			SlotTransitionsTotal.WithLabelValues("settle", statusError).Inc()
			log.WithError(err).Warn("Slot release failed")
			return e.slotView(caller, index), err
		}
	}

	now := e.now()
	var completed bool
	err = e.store.Update(func(st *state.State) error {
		rec, ok := st.Claims[caller]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoClaimRecord, caller)
		}
		slot := &rec.Ladder[index]
		switch {
		case slot.Status == inter.SlotClaimed:
			result = slot.Copy()
			return nil
		case slot.Status != inter.SlotStaked || slot.LockID != lockID:
			result = slot.Copy()
			return fmt.Errorf("%w: slot %d became %s during settlement", ErrSlotState, index, slot.Status)
		}
		slot.Status = inter.SlotClaimed
		rec.LastClaimTs = now
		if rec.ClaimedSlots.Add(index) && rec.ClaimedSlots.Full() {
			st.ClaimedCount++
			completed = true
			CompletedAccounts.Set(float64(st.ClaimedCount))
		}
		result = slot.Copy()
		return nil
	})
	SlotTransitionsTotal.WithLabelValues("settle", outcome(err)).Inc()
	if err != nil {
		log.WithError(err).Warn("Slot settlement failed")
		return result, err
	}
	log.WithField("amount", result.Amount.String()).Info("Slot claimed")
	if completed {
		log.Info("Account claim complete")
	}
	return result, nil
}

// SettleAll settles every Staked slot of caller, collecting failures per
// slot.
func (e *Engine) SettleAll(ctx context.Context, caller inter.AccountID) (*BatchResult, error) {
	return e.batch(caller, func(i uint8) (inter.LadderSlot, error) {
		return e.SettleSlot(ctx, caller, i)
	})
}

func (e *Engine) batch(caller inter.AccountID, step func(i uint8) (inter.LadderSlot, error)) (*BatchResult, error) {
	if _, err := e.ClaimRecord(caller); err != nil {
		return nil, err
	}
	res := &BatchResult{}
	for i := uint8(0); i < inter.LadderSize; i++ {
		if _, err := step(i); err != nil {
			res.Failed = append(res.Failed, &SlotError{Index: i, Err: err})
		}
		res.Slots[i] = e.slotView(caller, i)
	}
	return res, res.Err()
}

func (e *Engine) slotView(account inter.AccountID, index uint8) inter.LadderSlot {
	var out inter.LadderSlot
	_ = e.store.View(func(st *state.State) error {
		if rec, ok := st.Claims[account]; ok {
			out = rec.Ladder[index].Copy()
		}
		return nil
	})
	return out
}
