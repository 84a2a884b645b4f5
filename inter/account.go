// Package inter defines the value types shared by every layer of the claim
// engine: participant identities, timestamps and claim windows, and the
// eight-slot vesting ladder that a claim record carries.
//
// Key concepts:
//   - AccountID: an owner identity plus an optional 32-byte subaccount
//   - Window: the half-open interval [Start, End) in which claims progress
//   - Ladder: the fixed sequence of time-locked allocation slots
//
// Everything here is plain data. Rules about who may change what live in
// the claim package; persistence lives in the state package.
package inter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// SubaccountLength is the size of the optional sub-identifier.
const SubaccountLength = 32

var (
	// ErrInvalidAccount is returned when a textual account cannot be parsed.
	ErrInvalidAccount = errors.New("invalid account id")
)

// AccountID identifies a participant. The owner is the cryptographic
// identity authenticated by the host; the subaccount distinguishes several
// balances held by the same owner. The all-zero subaccount is the default
// one, so AccountID{Owner: a} and an explicit zero subaccount are the same
// account.
//
// AccountID is comparable and is used directly as a map key.
type AccountID struct {
	Owner      common.Address
	Subaccount [SubaccountLength]byte
}

// NewAccountID returns the default-subaccount account of owner.
func NewAccountID(owner common.Address) AccountID {
	return AccountID{Owner: owner}
}

// WithSubaccount returns a copy of a addressed to the given subaccount.
// Subaccounts shorter than 32 bytes are left-padded with zeroes.
func (a AccountID) WithSubaccount(sub []byte) (AccountID, error) {
	if len(sub) > SubaccountLength {
		return AccountID{}, fmt.Errorf("%w: subaccount is %d bytes", ErrInvalidAccount, len(sub))
	}
	var out [SubaccountLength]byte
	copy(out[SubaccountLength-len(sub):], sub)
	a.Subaccount = out
	return a, nil
}

// HasSubaccount reports whether a uses a non-default subaccount.
func (a AccountID) HasSubaccount() bool {
	return a.Subaccount != [SubaccountLength]byte{}
}

// IsZero reports whether a is the zero identity.
func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

// Bytes returns owner||subaccount, the canonical byte form.
func (a AccountID) Bytes() []byte {
	out := make([]byte, 0, common.AddressLength+SubaccountLength)
	out = append(out, a.Owner.Bytes()...)
	return append(out, a.Subaccount[:]...)
}

// Less orders accounts by owner bytes, then subaccount bytes. Every
// serialized map is written in this order.
func (a AccountID) Less(b AccountID) bool {
	if c := bytes.Compare(a.Owner[:], b.Owner[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(a.Subaccount[:], b.Subaccount[:]) < 0
}

// String renders 0x<owner> for default subaccounts and
// 0x<owner>.<base58 subaccount> otherwise.
func (a AccountID) String() string {
	if !a.HasSubaccount() {
		return a.Owner.Hex()
	}
	return a.Owner.Hex() + "." + base58.Encode(bytes.TrimLeft(a.Subaccount[:], "\x00"))
}

// ParseAccountID is the inverse of AccountID.String.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	owner, sub := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		owner, sub = s[:i], s[i+1:]
	}
	if !common.IsHexAddress(owner) {
		return AccountID{}, fmt.Errorf("%w: %q", ErrInvalidAccount, s)
	}
	id := NewAccountID(common.HexToAddress(owner))
	if sub == "" {
		return id, nil
	}
	raw, err := base58.Decode(sub)
	if err != nil {
		return AccountID{}, fmt.Errorf("%w: subaccount: %v", ErrInvalidAccount, err)
	}
	return id.WithSubaccount(raw)
}

// MarshalText implements encoding.TextMarshaler so accounts print cleanly in
// JSON config dumps.
func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}
