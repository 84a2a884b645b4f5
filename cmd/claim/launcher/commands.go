package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"text/tabwriter"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-airdrop-claim/claim"
	"github.com/rony4d/go-airdrop-claim/flags"
	"github.com/rony4d/go-airdrop-claim/inter"
)

// call adapts a host action to a cli action. Mutating calls write changed
// blobs back to stable memory, also when the call failed part way: the
// engine leaves the state consistent either way.
func call(mutating bool, fn func(ctx *cli.Context, h *host) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		cfg, err := MakeAllConfigs(ctx)
		if err != nil {
			return err
		}
		h, err := openHost(cfg, ctx.App.ErrWriter)
		if err != nil {
			return err
		}
		defer h.Close()

		callErr := fn(ctx, h)
		if mutating {
			cctx, cancel := h.callContext()
			defer cancel()
			if err := h.commit(cctx); err != nil {
				return errors.Join(callErr, err)
			}
		}
		return callErr
	}
}

func commands() []cli.Command {
	return []cli.Command{
		// Lifecycle and admin.
		{
			Name:     "init",
			Usage:    "Initialize the engine with --caller as the only admin",
			Category: "ADMIN",
			Action:   call(true, initCmd),
		},
		{
			Name:     "set-params",
			Usage:    "Replace the airdrop config with the configured preset and overrides",
			Category: "ADMIN",
			Action:   call(true, setParamsCmd),
		},
		{
			Name:     "fund",
			Usage:    "Credit the pool with --amount tokens",
			Category: "ADMIN",
			Flags:    []cli.Flag{flags.AmountFlag},
			Action:   call(true, fundCmd),
		},
		{
			Name:     "ingest-snapshot",
			Usage:    "Ingest holder balances from a CSV --file",
			Category: "ADMIN",
			Flags:    []cli.Flag{flags.FileFlag},
			Action:   call(true, ingestSnapshotCmd),
		},
		{
			Name:     "ingest-contributions",
			Usage:    "Ingest contributed amounts from a CSV --file",
			Category: "ADMIN",
			Flags:    []cli.Flag{flags.FileFlag},
			Action:   call(true, ingestContributionsCmd),
		},
		{
			Name:     "open-claims",
			Usage:    "Open the claim window",
			Category: "ADMIN",
			Flags:    []cli.Flag{flags.StartFlag, flags.EndFlag, flags.DurationFlag},
			Action:   call(true, openClaimsCmd),
		},
		{
			Name:     "close-claims",
			Usage:    "Close the claim window now",
			Category: "ADMIN",
			Action:   call(true, closeClaimsCmd),
		},
		{
			Name:     "set-acl",
			Usage:    "Replace the admin set with --admins",
			Category: "ADMIN",
			Flags:    []cli.Flag{flags.AdminsFlag},
			Action:   call(true, setACLCmd),
		},
		{
			Name:     "reset-slot",
			Usage:    "Move a Ready slot of --account back to Pending",
			Category: "ADMIN",
			Flags:    []cli.Flag{flags.AccountFlag, flags.SlotFlag},
			Action:   call(true, resetSlotCmd),
		},

		// Queries.
		{
			Name:     "accounts",
			Usage:    "List every known participant",
			Category: "QUERY",
			Action:   call(false, accountsCmd),
		},
		{
			Name:     "holding",
			Usage:    "Show the snapshot balance of --account",
			Category: "QUERY",
			Flags:    []cli.Flag{flags.AccountFlag},
			Action:   call(false, holdingCmd),
		},
		{
			Name:     "contribution",
			Usage:    "Show the contributed amount of --account",
			Category: "QUERY",
			Flags:    []cli.Flag{flags.AccountFlag},
			Action:   call(false, contributionCmd),
		},
		{
			Name:     "points",
			Usage:    "Show the points breakdown of --account",
			Category: "QUERY",
			Flags:    []cli.Flag{flags.AccountFlag},
			Action:   call(false, pointsCmd),
		},
		{
			Name:     "pool",
			Usage:    "Show the pool balance",
			Category: "QUERY",
			Action:   call(false, poolCmd),
		},
		{
			Name:     "preview",
			Usage:    "Preview the allocation of --account",
			Category: "QUERY",
			Flags:    []cli.Flag{flags.AccountFlag},
			Action:   call(false, previewCmd),
		},
		{
			Name:     "has-claimed",
			Usage:    "Report whether --account claimed every slot",
			Category: "QUERY",
			Flags:    []cli.Flag{flags.AccountFlag},
			Action:   call(false, hasClaimedCmd),
		},
		{
			Name:     "status",
			Usage:    "Summarize the engine",
			Category: "QUERY",
			Action:   call(false, statusCmd),
		},
		{
			Name:     "balance",
			Usage:    "Show the simulated ledger balance of --account",
			Category: "QUERY",
			Flags:    []cli.Flag{flags.AccountFlag},
			Action:   call(false, balanceCmd),
		},
		{
			Name:     "history",
			Usage:    "List saved state versions",
			Category: "QUERY",
			Flags:    []cli.Flag{flags.HistoryFlag},
			Action:   call(false, historyCmd),
		},

		// Self-service.
		{
			Name:     "prepare",
			Usage:    "Create the claim record of --caller and mark its slots ready",
			Category: "CLAIM",
			Action:   call(true, prepareCmd),
		},
		{
			Name:     "finalize",
			Usage:    "Stake a ready slot (--slot) or every slot",
			Category: "CLAIM",
			Flags:    []cli.Flag{flags.SlotFlag},
			Action:   call(true, finalizeCmd),
		},
		{
			Name:     "settle",
			Usage:    "Release a matured slot (--slot) or every slot",
			Category: "CLAIM",
			Flags:    []cli.Flag{flags.SlotFlag},
			Action:   call(true, settleCmd),
		},
	}
}

// -----------------------------------------------------------------------------
// Admin
// -----------------------------------------------------------------------------

func initCmd(ctx *cli.Context, h *host) error {
	caller, err := h.caller()
	if err != nil {
		return err
	}
	cfg, err := h.airdropConfig()
	if err != nil {
		return err
	}
	if err := h.engine.Initialize(cfg, caller); err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "initialized %q, admin %s\n", cfg.Name, caller)
	return nil
}

func setParamsCmd(ctx *cli.Context, h *host) error {
	caller, err := h.caller()
	if err != nil {
		return err
	}
	cfg, err := h.airdropConfig()
	if err != nil {
		return err
	}
	return h.engine.SetParams(caller, cfg)
}

func fundCmd(ctx *cli.Context, h *host) error {
	caller, err := h.caller()
	if err != nil {
		return err
	}
	amount, err := parseTokens(ctx.String(flags.AmountFlag.Name))
	if err != nil {
		return fmt.Errorf("--amount: %w", err)
	}
	if err := h.engine.FundPool(caller, amount); err != nil {
		return err
	}
	st, err := h.engine.Status()
	if err != nil {
		return err
	}
	// The simulated ledger receives the tokens the pool was credited with.
	h.ledger.Mint(st.Config.PoolAccount, amount)
	fmt.Fprintf(ctx.App.Writer, "pool: %s\n", formatTokens(st.PoolBalance))
	return nil
}

func ingestSnapshotCmd(ctx *cli.Context, h *host) error {
	caller, err := h.caller()
	if err != nil {
		return err
	}
	rows, err := readEntries(ctx.String(flags.FileFlag.Name))
	if err != nil {
		return err
	}
	batch, err := holdingBatch(rows)
	if err != nil {
		return err
	}
	if err := h.engine.IngestSnapshot(caller, batch); err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "ingested %d holdings\n", len(batch))
	return nil
}

func ingestContributionsCmd(ctx *cli.Context, h *host) error {
	caller, err := h.caller()
	if err != nil {
		return err
	}
	rows, err := readEntries(ctx.String(flags.FileFlag.Name))
	if err != nil {
		return err
	}
	batch, err := contributionBatch(rows)
	if err != nil {
		return err
	}
	if err := h.engine.IngestContributions(caller, batch); err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "ingested %d contributions\n", len(batch))
	return nil
}

func openClaimsCmd(ctx *cli.Context, h *host) error {
	caller, err := h.caller()
	if err != nil {
		return err
	}
	start := h.clock.Now()
	if s := ctx.String(flags.StartFlag.Name); s != "" {
		if start, err = parseTime(s); err != nil {
			return fmt.Errorf("--start: %w", err)
		}
	}
	end := start.Add(ctx.Duration(flags.DurationFlag.Name))
	if s := ctx.String(flags.EndFlag.Name); s != "" {
		if end, err = parseTime(s); err != nil {
			return fmt.Errorf("--end: %w", err)
		}
	}
	w := inter.Window{Start: inter.FromTime(start), End: inter.FromTime(end)}
	if err := h.engine.OpenClaims(caller, w.Start, w.End); err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "claim window %s\n", w)
	return nil
}

func closeClaimsCmd(ctx *cli.Context, h *host) error {
	caller, err := h.caller()
	if err != nil {
		return err
	}
	return h.engine.CloseClaims(caller)
}

func setACLCmd(ctx *cli.Context, h *host) error {
	caller, err := h.caller()
	if err != nil {
		return err
	}
	var admins []inter.AccountID
	for _, s := range splitCSV(ctx.String(flags.AdminsFlag.Name)) {
		id, err := inter.ParseAccountID(s)
		if err != nil {
			return err
		}
		admins = append(admins, id)
	}
	return h.engine.SetACL(caller, admins)
}

func resetSlotCmd(ctx *cli.Context, h *host) error {
	caller, err := h.caller()
	if err != nil {
		return err
	}
	account, err := inter.ParseAccountID(ctx.String(flags.AccountFlag.Name))
	if err != nil {
		return err
	}
	index, err := slotIndex(ctx)
	if err != nil {
		return err
	}
	return h.engine.ResetSlot(caller, account, index)
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

func accountsCmd(ctx *cli.Context, h *host) error {
	ids, err := h.engine.Accounts()
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(ctx.App.Writer, id)
	}
	return nil
}

func holdingCmd(ctx *cli.Context, h *host) error {
	account, err := h.target(ctx.String(flags.AccountFlag.Name))
	if err != nil {
		return err
	}
	v, err := h.engine.Holding(account)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, formatTokens(v))
	return nil
}

func contributionCmd(ctx *cli.Context, h *host) error {
	account, err := h.target(ctx.String(flags.AccountFlag.Name))
	if err != nil {
		return err
	}
	v, err := h.engine.Contribution(account)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, formatTokens(new(big.Int).SetUint64(v)))
	return nil
}

func pointsCmd(ctx *cli.Context, h *host) error {
	account, err := h.target(ctx.String(flags.AccountFlag.Name))
	if err != nil {
		return err
	}
	p, err := h.engine.Points(account)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "holder=%d contributor=%d total=%d\n", p.Holder, p.Contributor, p.Total)
	return nil
}

func poolCmd(ctx *cli.Context, h *host) error {
	v, err := h.engine.PoolBalance()
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, formatTokens(v))
	return nil
}

func previewCmd(ctx *cli.Context, h *host) error {
	account, err := h.target(ctx.String(flags.AccountFlag.Name))
	if err != nil {
		return err
	}
	p, err := h.engine.Preview(account)
	if err != nil {
		return err
	}
	w := ctx.App.Writer
	fmt.Fprintf(w, "account:    %s\n", p.Account)
	fmt.Fprintf(w, "points:     %d of %v\n", p.Points.Total, p.AllPoints)
	fmt.Fprintf(w, "allocation: %s\n", formatTokens(p.TotalAllocation))
	if p.Cap != nil && p.Cap.Sign() > 0 {
		fmt.Fprintf(w, "cap:        %s (within cap: %t)\n", formatTokens(p.Cap), p.WithinCap)
	}
	return printLadder(w, p.Ladder)
}

func hasClaimedCmd(ctx *cli.Context, h *host) error {
	account, err := h.target(ctx.String(flags.AccountFlag.Name))
	if err != nil {
		return err
	}
	done, err := h.engine.HasClaimed(account)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, done)
	return nil
}

func statusCmd(ctx *cli.Context, h *host) error {
	st, err := h.engine.Status()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "preset\t%s\n", st.Config.Name)
	fmt.Fprintf(w, "admins\t%v\n", st.Admins)
	fmt.Fprintf(w, "window\t%s (open: %t)\n", st.Window, st.WindowOpen)
	fmt.Fprintf(w, "pool\t%s of %s funded\n", formatTokens(st.PoolBalance), formatTokens(st.PoolFunded))
	fmt.Fprintf(w, "participants\t%d\n", st.Participants)
	fmt.Fprintf(w, "total points\t%v\n", st.TotalPoints)
	fmt.Fprintf(w, "claim records\t%d\n", st.Records)
	fmt.Fprintf(w, "completed\t%d\n", st.ClaimedCount)
	return w.Flush()
}

func balanceCmd(ctx *cli.Context, h *host) error {
	account, err := h.target(ctx.String(flags.AccountFlag.Name))
	if err != nil {
		return err
	}
	cctx, cancel := h.callContext()
	defer cancel()
	v, err := h.ledger.BalanceOf(cctx, account)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, formatTokens(v))
	return nil
}

func historyCmd(ctx *cli.Context, h *host) error {
	cctx, cancel := h.callContext()
	defer cancel()
	versions, err := h.stable.History(cctx, stateBlob, ctx.Int(flags.HistoryFlag.Name))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSAVED\tSIZE\tCHECKSUM")
	for _, v := range versions {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", v.Version, v.SavedAt.Format(time.RFC3339), len(v.Blob), v.Checksum.Hex())
	}
	return w.Flush()
}

// -----------------------------------------------------------------------------
// Self-service
// -----------------------------------------------------------------------------

func prepareCmd(ctx *cli.Context, h *host) error {
	caller, err := h.caller()
	if err != nil {
		return err
	}
	rec, err := h.engine.PrepareClaim(caller)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "allocation: %s\n", formatTokens(rec.TotalAllocation))
	return printLadder(ctx.App.Writer, rec.Ladder)
}

func finalizeCmd(ctx *cli.Context, h *host) error {
	return transition(ctx, h, h.engine.FinalizeSlot, h.engine.FinalizeAll)
}

func settleCmd(ctx *cli.Context, h *host) error {
	return transition(ctx, h, h.engine.SettleSlot, h.engine.SettleAll)
}

type (
	slotCall  = func(context.Context, inter.AccountID, uint8) (inter.LadderSlot, error)
	batchCall = func(context.Context, inter.AccountID) (*claim.BatchResult, error)
)

func transition(ctx *cli.Context, h *host, one slotCall, all batchCall) error {
	caller, err := h.caller()
	if err != nil {
		return err
	}
	cctx, cancel := h.callContext()
	defer cancel()

	if ctx.Int(flags.SlotFlag.Name) < 0 {
		res, err := all(cctx, caller)
		if err != nil {
			return err
		}
		if err := printLadder(ctx.App.Writer, res.Slots); err != nil {
			return err
		}
		return res.Err()
	}
	index, err := slotIndex(ctx)
	if err != nil {
		return err
	}
	slot, err := one(cctx, caller, index)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, formatSlot(slot))
	return nil
}

// -----------------------------------------------------------------------------
// Output
// -----------------------------------------------------------------------------

func slotIndex(ctx *cli.Context) (uint8, error) {
	i := ctx.Int(flags.SlotFlag.Name)
	if i < 0 || i > math.MaxUint8 {
		return 0, fmt.Errorf("--slot %d out of range", i)
	}
	return uint8(i), nil
}

func formatSlot(s inter.LadderSlot) string {
	out := fmt.Sprintf("slot %d: %-7s %s tokens, unlocks after %s", s.Index, s.Status, formatTokens(s.Amount),
		time.Duration(s.DissolveDelay)*time.Second)
	if s.LockID != 0 {
		out += fmt.Sprintf(", lock %d", s.LockID)
	}
	return out
}

func printLadder(w io.Writer, l inter.Ladder) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tSTATUS\tAMOUNT\tDELAY\tLOCK")
	for _, s := range l {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%dd\t%d\n", s.Index, s.Status, formatTokens(s.Amount), s.DissolveDelay/86400, s.LockID)
	}
	return tw.Flush()
}
