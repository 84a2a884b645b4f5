package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-airdrop-claim/inter"
)

// Transactor executes a contract call on behalf of from and returns the
// call's return data. Implementations are expected to wait for the
// transaction to be included.
type Transactor interface {
	Transact(ctx context.Context, from, to common.Address, input []byte) ([]byte, error)
}

const tokenABIJSON = `[
{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"balanceOf","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const governanceABIJSON = `[
{"type":"function","name":"lock","inputs":[{"name":"beneficiary","type":"address"},{"name":"amount","type":"uint256"},{"name":"dissolveDelay","type":"uint64"},{"name":"memo","type":"bytes32"}],"outputs":[{"name":"lockId","type":"uint64"}]},
{"type":"function","name":"release","inputs":[{"name":"lockId","type":"uint64"},{"name":"to","type":"address"}],"outputs":[{"name":"ok","type":"bool"},{"name":"amount","type":"uint256"}]}
]`

var (
	tokenABI      = mustParseABI(tokenABIJSON)
	governanceABI = mustParseABI(governanceABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EVM talks to an ERC20-style token and a lock-based governance contract.
// EVM accounts have no subaccounts, so every account passed in must use the
// default one. Memos are forwarded to governance, which deduplicates locks;
// the token contract itself has no memo support.
type EVM struct {
	tx         Transactor
	token      common.Address
	governance common.Address
	clock      func() inter.Timestamp
}

// NewEVM returns an adapter for the given contracts.
func NewEVM(tx Transactor, token, governance common.Address, now func() inter.Timestamp) *EVM {
	return &EVM{tx: tx, token: token, governance: governance, clock: now}
}

func plain(a inter.AccountID) (common.Address, error) {
	if a.HasSubaccount() {
		return common.Address{}, fmt.Errorf("%w: %s", ErrSubaccount, a)
	}
	return a.Owner, nil
}

func (e *EVM) call(ctx context.Context, from, to common.Address, contract *abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	input, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	ret, err := e.tx.Transact(ctx, from, to, input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	out, err := contract.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

func boolResult(method string, out []interface{}) error {
	if len(out) == 0 {
		return fmt.Errorf("%s: empty result", method)
	}
	ok, _ := out[0].(bool)
	if !ok {
		return fmt.Errorf("%w: %s returned false", ErrRejected, method)
	}
	return nil
}

// Approve implements Ledger.
func (e *EVM) Approve(ctx context.Context, a Allowance) error {
	owner, err := plain(a.Owner)
	if err != nil {
		return err
	}
	out, err := e.call(ctx, owner, e.token, &tokenABI, "approve", a.Spender, a.Amount)
	if err != nil {
		return err
	}
	return boolResult("approve", out)
}

// TransferFrom implements Ledger. The EVM token does not expose a transfer
// index, so 0 is returned on success.
func (e *EVM) TransferFrom(ctx context.Context, req TransferRequest) (uint64, error) {
	from, err := plain(req.From)
	if err != nil {
		return 0, err
	}
	to, err := plain(req.To)
	if err != nil {
		return 0, err
	}
	out, err := e.call(ctx, req.Spender, e.token, &tokenABI, "transferFrom", from, to, req.Amount)
	if err != nil {
		return 0, err
	}
	return 0, boolResult("transferFrom", out)
}

// BalanceOf implements Ledger.
func (e *EVM) BalanceOf(ctx context.Context, account inter.AccountID) (*big.Int, error) {
	owner, err := plain(account)
	if err != nil {
		return nil, err
	}
	out, err := e.call(ctx, owner, e.token, &tokenABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf: unexpected result %T", out[0])
	}
	return bal, nil
}

// StakingAccount implements Governance. Deposits go to the governance
// contract itself, which attributes them by memo.
func (e *EVM) StakingAccount(beneficiary inter.AccountID, memo Memo) inter.AccountID {
	return inter.NewAccountID(e.governance)
}

// Lock implements Governance.
func (e *EVM) Lock(ctx context.Context, req LockRequest) (uint64, error) {
	beneficiary, err := plain(req.Beneficiary)
	if err != nil {
		return 0, err
	}
	out, err := e.call(ctx, beneficiary, e.governance, &governanceABI, "lock",
		beneficiary, req.Amount, req.DissolveDelay, [32]byte(req.Memo))
	if err != nil {
		return 0, err
	}
	id, ok := out[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("lock: unexpected result %T", out[0])
	}
	return id, nil
}

// Release implements Governance.
func (e *EVM) Release(ctx context.Context, lockID uint64, to inter.AccountID) (Receipt, error) {
	dst, err := plain(to)
	if err != nil {
		return Receipt{}, err
	}
	out, err := e.call(ctx, dst, e.governance, &governanceABI, "release", lockID, dst)
	if err != nil {
		return Receipt{}, err
	}
	if len(out) != 2 {
		return Receipt{}, fmt.Errorf("release: unexpected result arity %d", len(out))
	}
	if ok, _ := out[0].(bool); !ok {
		return Receipt{}, fmt.Errorf("%w: lock %d", ErrNotMatured, lockID)
	}
	amount, _ := out[1].(*big.Int)
	if amount == nil {
		amount = new(big.Int)
	}
	return Receipt{
		LockID:      lockID,
		Beneficiary: to,
		Amount:      amount,
		ReleasedAt:  e.clock(),
	}, nil
}
