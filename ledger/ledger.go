// Package ledger defines the external collaborators the claim engine calls
// when it releases tokens: a token ledger with approve / transfer-from
// semantics and a governance module that locks tokens for a duration.
//
// Two implementations are provided:
//   - Memory: a self-contained simulation used by tests and by the CLI
//   - EVM: an adapter that ABI-encodes the same calls for EVM contracts
//
// Every mutating request carries a Memo. Implementations treat a repeated
// memo as a retry of the same request and answer it without moving funds a
// second time, which is what makes slot finalization safe to retry after a
// partial failure.
package ledger

import (
	"context"
	"errors"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-airdrop-claim/inter"
)

var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrUnknownLock           = errors.New("unknown lock")
	ErrUnfundedLock          = errors.New("lock deposit missing")
	ErrNotMatured            = errors.New("lock has not matured")
	ErrRejected              = errors.New("call rejected by contract")
	ErrSubaccount            = errors.New("subaccounts are not addressable on this ledger")
)

// Memo identifies one logical request across retries.
type Memo [32]byte

// SlotMemo derives the memo of one ladder slot of one account. It is stable
// across processes and restarts.
func SlotMemo(account inter.AccountID, slot uint8) Memo {
	return Memo(crypto.Keccak256Hash(
		[]byte("airdrop-slot"),
		account.Bytes(),
		bigendian.Uint32ToBytes(uint32(slot)),
	))
}

// Allowance authorizes Spender to move Amount out of Owner.
type Allowance struct {
	Owner   inter.AccountID
	Spender common.Address
	Amount  *big.Int
	Memo    Memo
}

// TransferRequest moves Amount from From to To on behalf of Spender.
type TransferRequest struct {
	Spender common.Address
	From    inter.AccountID
	To      inter.AccountID
	Amount  *big.Int
	Memo    Memo
}

// LockRequest asks governance to lock a deposit for Beneficiary.
type LockRequest struct {
	Beneficiary   inter.AccountID
	Amount        *big.Int
	DissolveDelay uint64 // seconds
	Memo          Memo
}

// Receipt confirms the payout of a matured lock.
type Receipt struct {
	LockID      uint64
	Beneficiary inter.AccountID
	Amount      *big.Int
	ReleasedAt  inter.Timestamp
}

// Ledger is the value-transfer collaborator.
type Ledger interface {
	Approve(ctx context.Context, a Allowance) error
	// TransferFrom returns the ledger's index of the transfer.
	TransferFrom(ctx context.Context, req TransferRequest) (uint64, error)
	BalanceOf(ctx context.Context, account inter.AccountID) (*big.Int, error)
}

// Governance is the staking collaborator.
type Governance interface {
	// StakingAccount is where the deposit for a lock identified by memo
	// must be transferred before Lock is called.
	StakingAccount(beneficiary inter.AccountID, memo Memo) inter.AccountID
	// Lock locks the deposit and returns the lock reference.
	Lock(ctx context.Context, req LockRequest) (uint64, error)
	// Release pays a matured lock out to `to`. Releasing an already
	// released lock returns the original receipt. Immature locks fail with
	// ErrNotMatured.
	Release(ctx context.Context, lockID uint64, to inter.AccountID) (Receipt, error)
}
