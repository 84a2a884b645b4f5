package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-airdrop-claim/airdrop"
	"github.com/rony4d/go-airdrop-claim/claim"
	"github.com/rony4d/go-airdrop-claim/inter"
	"github.com/rony4d/go-airdrop-claim/ledger"
	"github.com/rony4d/go-airdrop-claim/stablestore"
	"github.com/rony4d/go-airdrop-claim/state"
)

// Names of the blobs kept in the stable store.
const (
	stateBlob  = "state"
	ledgerBlob = "ledger"
)

// host is the runtime around one inbound call: it restores the engine and
// the simulated ledger from stable memory, runs the call, and writes back
// whatever changed.
type host struct {
	cfg    Config
	log    *logrus.Entry
	clock  clockwork.Clock
	stable *stablestore.Store
	ledger *ledger.Memory
	engine *claim.Engine

	stopMetrics func()
}

func openHost(cfg Config, logOut io.Writer) (*host, error) {
	logger, err := newLogger(cfg.Logging, logOut)
	if err != nil {
		return nil, err
	}
	log := logger.WithField("module", "host")

	var clock clockwork.Clock = clockwork.NewRealClock()
	if cfg.Now != "" {
		t, err := parseTime(cfg.Now)
		if err != nil {
			return nil, fmt.Errorf("--now: %w", err)
		}
		clock = clockwork.NewFakeClockAt(t)
	}

	gov, err := parseAddress("governance", cfg.Airdrop.Governance)
	if err != nil {
		return nil, err
	}

	stable, err := stablestore.Open(filepath.Join(cfg.Node.DataDir, cfg.Node.StableStore))
	if err != nil {
		return nil, fmt.Errorf("open stable store: %w", err)
	}

	h := &host{
		cfg:    cfg,
		log:    log,
		clock:  clock,
		stable: stable,
		ledger: ledger.NewMemory(gov, clock),
	}
	h.engine, err = claim.New(claim.Config{
		Store:      state.NewStore(),
		Ledger:     h.ledger,
		Governance: h.ledger,
		Clock:      clock,
		Logger:     logger.WithField("caller", cfg.Caller),
	})
	if err != nil {
		stable.Close()
		return nil, err
	}
	if err := h.restore(context.Background()); err != nil {
		stable.Close()
		return nil, err
	}

	h.stopMetrics, err = startMetrics(cfg.Metrics, log)
	if err != nil {
		stable.Close()
		return nil, err
	}
	return h, nil
}

func (h *host) restore(ctx context.Context) error {
	snap, err := h.stable.Latest(ctx, stateBlob)
	switch {
	case errors.Is(err, stablestore.ErrNotFound):
		h.log.Debug("No saved state, engine starts uninitialized")
	case err != nil:
		return err
	default:
		if err := h.engine.Restore(snap.Blob); err != nil {
			return fmt.Errorf("restore state v%d: %w", snap.Version, err)
		}
		h.log.WithField("version", snap.Version).Debug("State restored")
	}

	snap, err = h.stable.Latest(ctx, ledgerBlob)
	switch {
	case errors.Is(err, stablestore.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	return h.ledger.Restore(snap.Blob)
}

// commit saves each blob that differs from its latest stored version. The
// state encoding is deterministic, so an unchanged state is never stored
// twice.
func (h *host) commit(ctx context.Context) error {
	if blob, err := h.engine.Snapshot(); err == nil {
		if err := h.save(ctx, stateBlob, blob); err != nil {
			return err
		}
	} else if !errors.Is(err, state.ErrNotInitialized) {
		return err
	}
	blob, err := h.ledger.Snapshot()
	if err != nil {
		return err
	}
	return h.save(ctx, ledgerBlob, blob)
}

func (h *host) save(ctx context.Context, name string, blob []byte) error {
	prev, err := h.stable.Latest(ctx, name)
	if err == nil && bytes.Equal(prev.Blob, blob) {
		return nil
	}
	if err != nil && !errors.Is(err, stablestore.ErrNotFound) {
		return err
	}
	version, err := h.stable.Save(ctx, name, blob, h.clock.Now())
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	h.log.WithFields(logrus.Fields{"blob": name, "version": version, "size": len(blob)}).Debug("Saved to stable store")
	return nil
}

func (h *host) Close() {
	h.stopMetrics()
	h.stable.Close()
}

// caller parses the --caller account. Every command except the anonymous
// queries needs one.
func (h *host) caller() (inter.AccountID, error) {
	if h.cfg.Caller == "" {
		return inter.AccountID{}, errors.New("--caller is required")
	}
	return inter.ParseAccountID(h.cfg.Caller)
}

// target returns --account, falling back to the caller.
func (h *host) target(account string) (inter.AccountID, error) {
	if account != "" {
		return inter.ParseAccountID(account)
	}
	return h.caller()
}

func (h *host) airdropConfig() (airdrop.Config, error) {
	return h.cfg.Airdrop.Build(h.clock.Now())
}

func (h *host) callContext() (context.Context, context.CancelFunc) {
	if h.cfg.Node.CallTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), h.cfg.Node.CallTimeout)
}
