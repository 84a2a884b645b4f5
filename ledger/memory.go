package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/jonboulle/clockwork"

	"github.com/rony4d/go-airdrop-claim/inter"
)

// Op names a Memory operation for fault injection.
type Op string

const (
	OpApprove      Op = "approve"
	OpTransferFrom Op = "transfer_from"
	OpLock         Op = "lock"
	OpRelease      Op = "release"
)

type allowanceKey struct {
	Owner   inter.AccountID
	Spender common.Address
}

type lockEntry struct {
	ID          uint64
	Beneficiary inter.AccountID
	Amount      *big.Int
	Deposit     inter.AccountID
	MaturesAt   inter.Timestamp
	Released    bool
	ReleasedTo  inter.AccountID
	ReleasedAt  inter.Timestamp
}

// Memory is an in-process ledger and governance module. It keeps balances,
// allowances and locks in maps and uses a clockwork clock for lock maturity.
// Safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	clock clockwork.Clock

	governance common.Address

	balances   map[inter.AccountID]*big.Int
	allowances map[allowanceKey]*big.Int
	transfers  map[Memo]uint64 // memo -> transfer index
	locks      map[uint64]*lockEntry
	lockByMemo map[Memo]uint64
	nextIndex  uint64
	nextLock   uint64

	faults map[Op][]error
	calls  map[Op]int
}

// NewMemory returns an empty ledger. governance is the owner of the staking
// accounts; clock defaults to the real clock.
func NewMemory(governance common.Address, clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		clock:      clock,
		governance: governance,
		balances:   make(map[inter.AccountID]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		transfers:  make(map[Memo]uint64),
		locks:      make(map[uint64]*lockEntry),
		lockByMemo: make(map[Memo]uint64),
		nextLock:   1,
		faults:     make(map[Op][]error),
		calls:      make(map[Op]int),
	}
}

// Mint credits account out of thin air. Used to fund the pool account.
func (m *Memory) Mint(account inter.AccountID, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(account, amount)
}

// FailNext makes the next call of op fail with err. Calls queue up.
func (m *Memory) FailNext(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = append(m.faults[op], err)
}

// Calls returns how many times op was invoked, including failed calls.
func (m *Memory) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *Memory) enter(op Op) error {
	m.calls[op]++
	if queue := m.faults[op]; len(queue) > 0 {
		m.faults[op] = queue[1:]
		return queue[0]
	}
	return nil
}

// Approve sets the allowance of Spender over Owner to Amount.
func (m *Memory) Approve(ctx context.Context, a Allowance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpApprove); err != nil {
		return err
	}
	if _, done := m.transfers[a.Memo]; done {
		// The transfer this allowance was for already happened.
		return nil
	}
	m.allowances[allowanceKey{a.Owner, a.Spender}] = new(big.Int).Set(a.Amount)
	return nil
}

// TransferFrom moves funds using a prior allowance.
func (m *Memory) TransferFrom(ctx context.Context, req TransferRequest) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpTransferFrom); err != nil {
		return 0, err
	}
	if idx, done := m.transfers[req.Memo]; done {
		return idx, nil
	}
	key := allowanceKey{req.From, req.Spender}
	allowance := m.allowances[key]
	if allowance == nil || allowance.Cmp(req.Amount) < 0 {
		return 0, fmt.Errorf("%w: %s for %s", ErrInsufficientAllowance, req.Spender.Hex(), req.From)
	}
	if m.balance(req.From).Cmp(req.Amount) < 0 {
		return 0, fmt.Errorf("%w: %s has %v, needs %v", ErrInsufficientFunds, req.From, m.balance(req.From), req.Amount)
	}
	m.allowances[key] = new(big.Int).Sub(allowance, req.Amount)
	m.debit(req.From, req.Amount)
	m.credit(req.To, req.Amount)

	idx := m.nextIndex
	m.nextIndex++
	m.transfers[req.Memo] = idx
	return idx, nil
}

// BalanceOf returns the balance of account.
func (m *Memory) BalanceOf(ctx context.Context, account inter.AccountID) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balance(account)), nil
}

// StakingAccount is a governance-owned subaccount keyed by the memo.
func (m *Memory) StakingAccount(beneficiary inter.AccountID, memo Memo) inter.AccountID {
	return inter.AccountID{Owner: m.governance, Subaccount: memo}
}

// Lock locks the deposit found in the staking account for memo.
func (m *Memory) Lock(ctx context.Context, req LockRequest) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpLock); err != nil {
		return 0, err
	}
	if id, done := m.lockByMemo[req.Memo]; done {
		return id, nil
	}
	deposit := inter.AccountID{Owner: m.governance, Subaccount: req.Memo}
	if m.balance(deposit).Cmp(req.Amount) < 0 {
		return 0, fmt.Errorf("%w: %s holds %v, lock needs %v", ErrUnfundedLock, deposit, m.balance(deposit), req.Amount)
	}
	id := m.nextLock
	m.nextLock++
	m.locks[id] = &lockEntry{
		ID:          id,
		Beneficiary: req.Beneficiary,
		Amount:      new(big.Int).Set(req.Amount),
		Deposit:     deposit,
		MaturesAt:   inter.FromTime(m.clock.Now().Add(time.Duration(req.DissolveDelay) * time.Second)),
	}
	m.lockByMemo[req.Memo] = id
	return id, nil
}

// Release pays out a matured lock.
func (m *Memory) Release(ctx context.Context, lockID uint64, to inter.AccountID) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpRelease); err != nil {
		return Receipt{}, err
	}
	l, ok := m.locks[lockID]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %d", ErrUnknownLock, lockID)
	}
	if !l.Released {
		now := inter.FromTime(m.clock.Now())
		if now < l.MaturesAt {
			return Receipt{}, fmt.Errorf("%w: lock %d matures at %s", ErrNotMatured, lockID, l.MaturesAt)
		}
		m.debit(l.Deposit, l.Amount)
		m.credit(to, l.Amount)
		l.Released, l.ReleasedTo, l.ReleasedAt = true, to, now
	}
	return Receipt{
		LockID:      l.ID,
		Beneficiary: l.ReleasedTo,
		Amount:      new(big.Int).Set(l.Amount),
		ReleasedAt:  l.ReleasedAt,
	}, nil
}

// LockMaturity returns when lock id matures.
func (m *Memory) LockMaturity(id uint64) (inter.Timestamp, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		return 0, false
	}
	return l.MaturesAt, true
}

func (m *Memory) balance(a inter.AccountID) *big.Int {
	if b, ok := m.balances[a]; ok {
		return b
	}
	return new(big.Int)
}

func (m *Memory) credit(a inter.AccountID, amount *big.Int) {
	m.balances[a] = new(big.Int).Add(m.balance(a), amount)
}

func (m *Memory) debit(a inter.AccountID, amount *big.Int) {
	m.balances[a] = new(big.Int).Sub(m.balance(a), amount)
}

// ----------------------------------------------------------------------------
// Persistence
// ----------------------------------------------------------------------------

type (
	memBalance struct {
		Account inter.AccountID
		Amount  *big.Int
	}
	memAllowance struct {
		Owner   inter.AccountID
		Spender common.Address
		Amount  *big.Int
	}
	memTransfer struct {
		Memo  Memo
		Index uint64
	}
	memoryRLP struct {
		Balances   []memBalance
		Allowances []memAllowance
		Transfers  []memTransfer
		Locks      []lockEntry
		NextIndex  uint64
		NextLock   uint64
	}
)

// Snapshot encodes balances, allowances, transfer memos and locks so the CLI
// can carry the simulated ledger between runs.
func (m *Memory) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	enc := memoryRLP{NextIndex: m.nextIndex, NextLock: m.nextLock}
	for a, v := range m.balances {
		enc.Balances = append(enc.Balances, memBalance{a, v})
	}
	sort.Slice(enc.Balances, func(i, j int) bool { return enc.Balances[i].Account.Less(enc.Balances[j].Account) })
	for k, v := range m.allowances {
		enc.Allowances = append(enc.Allowances, memAllowance{k.Owner, k.Spender, v})
	}
	sort.Slice(enc.Allowances, func(i, j int) bool {
		a, b := enc.Allowances[i], enc.Allowances[j]
		if a.Owner != b.Owner {
			return a.Owner.Less(b.Owner)
		}
		return a.Spender.Hash().Big().Cmp(b.Spender.Hash().Big()) < 0
	})
	for memo, idx := range m.transfers {
		enc.Transfers = append(enc.Transfers, memTransfer{memo, idx})
	}
	sort.Slice(enc.Transfers, func(i, j int) bool { return enc.Transfers[i].Index < enc.Transfers[j].Index })
	for _, l := range m.locks {
		enc.Locks = append(enc.Locks, *l)
	}
	sort.Slice(enc.Locks, func(i, j int) bool { return enc.Locks[i].ID < enc.Locks[j].ID })
	return rlp.EncodeToBytes(&enc)
}

// Restore replaces the ledger contents with a Snapshot.
func (m *Memory) Restore(blob []byte) error {
	var enc memoryRLP
	if err := rlp.DecodeBytes(blob, &enc); err != nil {
		return fmt.Errorf("decode ledger snapshot: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances = make(map[inter.AccountID]*big.Int, len(enc.Balances))
	for _, b := range enc.Balances {
		m.balances[b.Account] = b.Amount
	}
	m.allowances = make(map[allowanceKey]*big.Int, len(enc.Allowances))
	for _, a := range enc.Allowances {
		m.allowances[allowanceKey{a.Owner, a.Spender}] = a.Amount
	}
	m.transfers = make(map[Memo]uint64, len(enc.Transfers))
	for _, t := range enc.Transfers {
		m.transfers[t.Memo] = t.Index
	}
	m.locks = make(map[uint64]*lockEntry, len(enc.Locks))
	m.lockByMemo = make(map[Memo]uint64, len(enc.Locks))
	for i := range enc.Locks {
		l := enc.Locks[i]
		m.locks[l.ID] = &l
		m.lockByMemo[Memo(l.Deposit.Subaccount)] = l.ID
	}
	m.nextIndex, m.nextLock = enc.NextIndex, enc.NextLock
	return nil
}
