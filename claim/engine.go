// Package claim implements the airdrop claim engine on top of the state
// store: admin lifecycle and ingestion, read-only queries, and the vesting
// ladder state machine that releases allocations through the external
// ledger and governance collaborators.
//
// Every exported method is one inbound call. Calls that only touch the state
// run under the store lock from start to finish. Calls that reach out to the
// ledger (FinalizeSlot, SettleSlot) release the lock around the external
// calls and re-validate the slot when they take it again.
package claim

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/rony4d/go-airdrop-claim/airdrop"
	"github.com/rony4d/go-airdrop-claim/inter"
	"github.com/rony4d/go-airdrop-claim/ledger"
	"github.com/rony4d/go-airdrop-claim/state"
)

var baseUnit = airdrop.BaseUnit

// Config wires an Engine to its collaborators.
type Config struct {
	Store      *state.Store
	Ledger     ledger.Ledger
	Governance ledger.Governance

	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// Logger defaults to the standard logrus logger.
	Logger *logrus.Entry
}

// Engine is the claim engine. Safe for concurrent use.
type Engine struct {
	store *state.Store
	led   ledger.Ledger
	gov   ledger.Governance
	clock clockwork.Clock
	log   *logrus.Entry

	// flight coalesces concurrent transitions of the same (account, slot).
	flight singleflight.Group

	// payMu pairs each approve with its transfer-from. The pool has a single
	// allowance for the operator and Approve overwrites it.
	payMu sync.Mutex

	limMu   sync.Mutex
	limiter *rate.Limiter // nil means unlimited
}

// New returns an engine. The store may be uninitialized; every call then
// fails with state.ErrNotInitialized until Initialize or Restore succeeds.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("claim: nil store")
	}
	if cfg.Ledger == nil || cfg.Governance == nil {
		return nil, errors.New("claim: ledger and governance are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Engine{
		store: cfg.Store,
		led:   cfg.Ledger,
		gov:   cfg.Governance,
		clock: cfg.Clock,
		log:   cfg.Logger.WithField("module", "claim"),
	}
	if cfg.Store.Initialized() {
		e.syncLimiter()
	}
	return e, nil
}

// Initialize installs the first state with bootstrap as the only admin.
func (e *Engine) Initialize(cfg airdrop.Config, bootstrap inter.AccountID) error {
	if err := e.store.Initialize(cfg, bootstrap); err != nil {
		return err
	}
	e.resetLimiter(cfg.IngestRateLimitPerDay)
	e.log.WithFields(logrus.Fields{
		"admin":  bootstrap.String(),
		"preset": cfg.Name,
		"window": cfg.Window().String(),
	}).Info("Claim engine initialized")
	return nil
}

// Snapshot serializes the whole state for an upgrade.
func (e *Engine) Snapshot() ([]byte, error) {
	return e.store.SnapshotForUpgrade()
}

// Restore reinstalls a state produced by Snapshot. On a bad blob the engine
// continues with an empty default state and the error is returned.
func (e *Engine) Restore(blob []byte) error {
	err := e.store.RestoreFromUpgrade(blob)
	if err != nil {
		e.log.WithError(err).Error("Upgrade restore failed, continuing with default state")
	}
	e.syncLimiter()
	e.refreshGauges()
	return err
}

// Teardown returns the final snapshot and makes the engine unusable.
func (e *Engine) Teardown() ([]byte, error) {
	return e.store.Teardown()
}

func (e *Engine) now() inter.Timestamp {
	return inter.FromTime(e.clock.Now())
}

// checkWindow classifies now against the state's claim window.
func checkWindow(st *state.State, now inter.Timestamp) error {
	switch {
	case st.Window.Contains(now):
		return nil
	case st.Window.NotYetOpen(now):
		return ErrClaimWindowNotOpen
	default:
		return ErrClaimWindowClosed
	}
}

func checkSlot(index uint8) error {
	if index >= inter.LadderSize {
		return ErrInvalidSlot
	}
	return nil
}

// resetLimiter rebuilds the ingestion limiter for perDay batches a day.
// The bucket starts full, so a fresh limit admits a whole day's burst.
func (e *Engine) resetLimiter(perDay uint32) {
	e.limMu.Lock()
	defer e.limMu.Unlock()
	if perDay == 0 {
		e.limiter = nil
		return
	}
	every := (24 * time.Hour) / time.Duration(perDay)
	e.limiter = rate.NewLimiter(rate.Every(every), int(perDay))
}

func (e *Engine) syncLimiter() {
	var perDay uint32
	if err := e.store.View(func(st *state.State) error {
		perDay = st.Config.IngestRateLimitPerDay
		return nil
	}); err == nil {
		e.resetLimiter(perDay)
	}
}

func (e *Engine) allowIngest() bool {
	e.limMu.Lock()
	defer e.limMu.Unlock()
	if e.limiter == nil {
		return true
	}
	return e.limiter.AllowN(e.clock.Now(), 1)
}

func (e *Engine) refreshGauges() {
	_ = e.store.View(func(st *state.State) error {
		PoolBalance.Set(tokensFloat(st.PoolBalance))
		CompletedAccounts.Set(float64(st.ClaimedCount))
		return nil
	})
}
