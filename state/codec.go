package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/rony4d/go-airdrop-claim/airdrop"
	"github.com/rony4d/go-airdrop-claim/inter"
)

// BlobVersion is the layout version written into every upgrade blob.
const BlobVersion uint32 = 1

var (
	// ErrBadChecksum means the blob body does not match its checksum.
	ErrBadChecksum = errors.New("upgrade blob checksum mismatch")
	// ErrUnknownVersion means the blob was written by an unknown layout.
	ErrUnknownVersion = errors.New("unknown upgrade blob version")
	// ErrNonCanonical means the body decoded but violates an ordering or
	// structural invariant (unsorted or duplicate keys, bad ladder).
	ErrNonCanonical = errors.New("non canonical state encoding")
)

// envelope frames the body with a version and a checksum so a truncated or
// corrupted blob is detected before any field is trusted.
type envelope struct {
	Version  uint32
	Checksum hash.Hash
	Body     []byte
}

// RLP has no map type; every map is written as a slice sorted by account.
type (
	balanceEntry struct {
		Account inter.AccountID
		Amount  *big.Int
	}
	contributionEntry struct {
		Account inter.AccountID
		Amount  uint64
	}
	pointsEntry struct {
		Account inter.AccountID
		Points  uint64
	}
	claimEntry struct {
		Account inter.AccountID
		Record  inter.ClaimRecord
	}
)

// stateRLP is the serializable form of State.
type stateRLP struct {
	Admins        []inter.AccountID
	Config        airdrop.Config
	PoolBalance   *big.Int
	PoolFunded    *big.Int
	Window        inter.Window
	Snapshot      []balanceEntry
	Contributions []contributionEntry
	Points        []pointsEntry
	TotalPoints   *big.Int
	Claims        []claimEntry
	ClaimedCount  uint32
}

// Encode serializes s deterministically: equal states always produce equal
// bytes.
func Encode(s *State) ([]byte, error) {
	body, err := rlp.EncodeToBytes(toRLP(s))
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return rlp.EncodeToBytes(&envelope{
		Version:  BlobVersion,
		Checksum: hash.Of(body),
		Body:     body,
	})
}

// Decode is the inverse of Encode.
func Decode(blob []byte) (*State, error) {
	var env envelope
	if err := rlp.DecodeBytes(blob, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version != BlobVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, env.Version)
	}
	if hash.Of(env.Body) != env.Checksum {
		return nil, ErrBadChecksum
	}
	var enc stateRLP
	if err := rlp.DecodeBytes(env.Body, &enc); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return fromRLP(&enc)
}

func toRLP(s *State) *stateRLP {
	enc := &stateRLP{
		Admins:       s.AdminList(),
		Config:       s.Config.Copy(),
		PoolBalance:  nonNil(s.PoolBalance),
		PoolFunded:   nonNil(s.PoolFunded),
		Window:       s.Window,
		TotalPoints:  nonNil(s.TotalPoints),
		ClaimedCount: s.ClaimedCount,
	}
	for _, id := range sortedKeys(s.Snapshot) {
		enc.Snapshot = append(enc.Snapshot, balanceEntry{id, nonNil(s.Snapshot[id])})
	}
	for _, id := range sortedKeys(s.Contributions) {
		enc.Contributions = append(enc.Contributions, contributionEntry{id, s.Contributions[id]})
	}
	for _, id := range sortedKeys(s.Points) {
		enc.Points = append(enc.Points, pointsEntry{id, s.Points[id]})
	}
	for _, id := range sortedKeys(s.Claims) {
		rec := s.Claims[id].Copy()
		enc.Claims = append(enc.Claims, claimEntry{id, *rec})
	}
	return enc
}

func fromRLP(enc *stateRLP) (*State, error) {
	s := New()
	s.Config = enc.Config.Copy()
	s.PoolBalance = nonNil(enc.PoolBalance)
	s.PoolFunded = nonNil(enc.PoolFunded)
	s.Window = enc.Window
	s.TotalPoints = nonNil(enc.TotalPoints)
	s.ClaimedCount = enc.ClaimedCount

	var prev *inter.AccountID
	ordered := func(id inter.AccountID) error {
		if prev != nil && !prev.Less(id) {
			return fmt.Errorf("%w: account %s out of order", ErrNonCanonical, id)
		}
		prev = &id
		return nil
	}

	for _, id := range enc.Admins {
		if err := ordered(id); err != nil {
			return nil, err
		}
		s.Admins[id] = struct{}{}
	}
	prev = nil
	for _, e := range enc.Snapshot {
		if err := ordered(e.Account); err != nil {
			return nil, err
		}
		s.Snapshot[e.Account] = nonNil(e.Amount)
	}
	prev = nil
	for _, e := range enc.Contributions {
		if err := ordered(e.Account); err != nil {
			return nil, err
		}
		s.Contributions[e.Account] = e.Amount
	}
	prev = nil
	for _, e := range enc.Points {
		if err := ordered(e.Account); err != nil {
			return nil, err
		}
		s.Points[e.Account] = e.Points
	}
	prev = nil
	for _, e := range enc.Claims {
		if err := ordered(e.Account); err != nil {
			return nil, err
		}
		if err := checkRecord(&e.Record); err != nil {
			return nil, fmt.Errorf("claim of %s: %w", e.Account, err)
		}
		s.Claims[e.Account] = e.Record.Copy()
	}
	return s, nil
}

func checkRecord(r *inter.ClaimRecord) error {
	for i, slot := range r.Ladder {
		if int(slot.Index) != i {
			return fmt.Errorf("%w: slot %d has index %d", ErrNonCanonical, i, slot.Index)
		}
		if !slot.Status.Valid() {
			return fmt.Errorf("%w: slot %d has %s", ErrNonCanonical, i, slot.Status)
		}
		if r.ClaimedSlots.Has(uint8(i)) != (slot.Status == inter.SlotClaimed) {
			return fmt.Errorf("%w: slot %d claimed set disagrees with status", ErrNonCanonical, i)
		}
	}
	return nil
}

func sortedKeys[V any](m map[inter.AccountID]V) []inter.AccountID {
	out := make([]inter.AccountID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sortAccounts(out)
	return out
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
