package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-airdrop-claim/inter"
)

var (
	govAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	spender   = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	poolAcct  = inter.NewAccountID(common.HexToAddress("0x00000000000000000000000000000000000000c2"))
	recipient = inter.NewAccountID(common.HexToAddress("0x00000000000000000000000000000000000000c3"))
)

func newTestMemory() (*Memory, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	m := NewMemory(govAddr, clock)
	m.Mint(poolAcct, big.NewInt(1000))
	return m, clock
}

// stakeFor runs the same approve/transfer/lock sequence the claim engine
// issues for one slot.
func stakeFor(t *testing.T, m *Memory, amount int64, delay uint64, memo Memo) uint64 {
	t.Helper()
	ctx := context.Background()
	amt := big.NewInt(amount)
	require.NoError(t, m.Approve(ctx, Allowance{Owner: poolAcct, Spender: spender, Amount: amt, Memo: memo}))
	_, err := m.TransferFrom(ctx, TransferRequest{
		Spender: spender,
		From:    poolAcct,
		To:      m.StakingAccount(recipient, memo),
		Amount:  amt,
		Memo:    memo,
	})
	require.NoError(t, err)
	id, err := m.Lock(ctx, LockRequest{Beneficiary: recipient, Amount: amt, DissolveDelay: delay, Memo: memo})
	require.NoError(t, err)
	return id
}

func balanceOf(t *testing.T, m *Memory, a inter.AccountID) int64 {
	t.Helper()
	b, err := m.BalanceOf(context.Background(), a)
	require.NoError(t, err)
	return b.Int64()
}

func TestSlotMemo(t *testing.T) {
	a := inter.NewAccountID(common.HexToAddress("0x01"))
	b := inter.NewAccountID(common.HexToAddress("0x02"))

	require.Equal(t, SlotMemo(a, 3), SlotMemo(a, 3))
	require.NotEqual(t, SlotMemo(a, 3), SlotMemo(a, 4))
	require.NotEqual(t, SlotMemo(a, 3), SlotMemo(b, 3))
}

func TestTransferFromRequiresAllowance(t *testing.T) {
	m, _ := newTestMemory()
	ctx := context.Background()
	req := TransferRequest{Spender: spender, From: poolAcct, To: recipient, Amount: big.NewInt(10), Memo: Memo{1}}

	_, err := m.TransferFrom(ctx, req)
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, m.Approve(ctx, Allowance{Owner: poolAcct, Spender: spender, Amount: big.NewInt(5000), Memo: Memo{1}}))
	req.Amount = big.NewInt(5000)
	_, err = m.TransferFrom(ctx, req)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	req.Amount = big.NewInt(10)
	_, err = m.TransferFrom(ctx, req)
	require.NoError(t, err)
	require.Equal(t, int64(990), balanceOf(t, m, poolAcct))
	require.Equal(t, int64(10), balanceOf(t, m, recipient))
}

func TestMemoDeduplicatesRetries(t *testing.T) {
	m, _ := newTestMemory()
	memo := Memo{7}

	first := stakeFor(t, m, 100, 60, memo)
	second := stakeFor(t, m, 100, 60, memo)
	require.Equal(t, first, second)
	require.Equal(t, int64(900), balanceOf(t, m, poolAcct))
	require.Equal(t, int64(100), balanceOf(t, m, m.StakingAccount(recipient, memo)))

	other := stakeFor(t, m, 50, 60, Memo{8})
	require.NotEqual(t, first, other)
	require.Equal(t, int64(850), balanceOf(t, m, poolAcct))
}

func TestLockRequiresDeposit(t *testing.T) {
	m, _ := newTestMemory()
	_, err := m.Lock(context.Background(), LockRequest{Beneficiary: recipient, Amount: big.NewInt(1), Memo: Memo{9}})
	require.ErrorIs(t, err, ErrUnfundedLock)
}

func TestReleaseAfterMaturity(t *testing.T) {
	m, clock := newTestMemory()
	ctx := context.Background()
	id := stakeFor(t, m, 100, 3600, Memo{1})

	_, err := m.Release(ctx, id, recipient)
	require.ErrorIs(t, err, ErrNotMatured)

	maturity, ok := m.LockMaturity(id)
	require.True(t, ok)
	require.Equal(t, inter.FromTime(clock.Now().Add(time.Hour)), maturity)

	clock.Advance(time.Hour)
	rc, err := m.Release(ctx, id, recipient)
	require.NoError(t, err)
	require.Equal(t, id, rc.LockID)
	require.Equal(t, int64(100), rc.Amount.Int64())
	require.Equal(t, int64(100), balanceOf(t, m, recipient))

	// A repeated release returns the original receipt and pays nothing.
	again, err := m.Release(ctx, id, recipient)
	require.NoError(t, err)
	require.Equal(t, rc.ReleasedAt, again.ReleasedAt)
	require.Equal(t, int64(100), balanceOf(t, m, recipient))

	_, err = m.Release(ctx, id+100, recipient)
	require.ErrorIs(t, err, ErrUnknownLock)
}

func TestFailNext(t *testing.T) {
	m, _ := newTestMemory()
	boom := errors.New("boom")
	m.FailNext(OpApprove, boom)

	err := m.Approve(context.Background(), Allowance{Owner: poolAcct, Spender: spender, Amount: big.NewInt(1)})
	require.ErrorIs(t, err, boom)
	require.NoError(t, m.Approve(context.Background(), Allowance{Owner: poolAcct, Spender: spender, Amount: big.NewInt(1)}))
	require.Equal(t, 2, m.Calls(OpApprove))
}

func TestMemorySnapshotRestore(t *testing.T) {
	m, clock := newTestMemory()
	id := stakeFor(t, m, 100, 10, Memo{1})
	require.NoError(t, m.Approve(context.Background(), Allowance{Owner: poolAcct, Spender: spender, Amount: big.NewInt(3), Memo: Memo{2}}))

	blob, err := m.Snapshot()
	require.NoError(t, err)

	restored := NewMemory(govAddr, clock)
	require.NoError(t, restored.Restore(blob))

	again, err := restored.Snapshot()
	require.NoError(t, err)
	require.Equal(t, blob, again)

	require.Equal(t, int64(900), balanceOf(t, restored, poolAcct))
	// Retries are still recognised after a restore.
	require.Equal(t, id, stakeFor(t, restored, 100, 10, Memo{1}))
	require.Equal(t, int64(900), balanceOf(t, restored, poolAcct))

	clock.Advance(10 * time.Second)
	_, err = restored.Release(context.Background(), id, recipient)
	require.NoError(t, err)
	require.Equal(t, int64(100), balanceOf(t, restored, recipient))

	require.Error(t, restored.Restore([]byte{0x01, 0x02}))
}
