package state

import (
	"math/big"
	"testing"
	"time"

	"github.com/Fantom-foundation/lachesis-base/hash"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-airdrop-claim/airdrop"
	"github.com/rony4d/go-airdrop-claim/airdrop/allocation"
	"github.com/rony4d/go-airdrop-claim/inter"
)

func testAccount(n byte) inter.AccountID {
	return inter.NewAccountID(common.BytesToAddress([]byte{n}))
}

// populated builds a state exercising every field of the encoding.
func populated(t *testing.T) *State {
	t.Helper()
	s := New()
	s.Config = airdrop.FakeNetConfig(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	s.Config.Operator = common.HexToAddress("0x0102")
	s.Admins[testAccount(1)] = struct{}{}
	s.Admins[testAccount(2)] = struct{}{}
	s.Window = s.Config.Window()
	s.CreditPool(big.NewInt(1_000_000))

	sub, err := testAccount(3).WithSubaccount([]byte{9, 9})
	require.NoError(t, err)
	s.Snapshot[testAccount(3)] = big.NewInt(12345)
	s.Snapshot[sub] = big.NewInt(7)
	s.Contributions[testAccount(4)] = 500_000_000
	s.Contributions[testAccount(3)] = 1
	s.RecomputePoints()

	total := big.NewInt(800)
	rec := &inter.ClaimRecord{TotalAllocation: total, Ladder: allocation.DefaultLadder(total)}
	rec.Ladder[0].Status = inter.SlotClaimed
	rec.Ladder[0].LockID = 11
	rec.ClaimedSlots.Add(0)
	rec.Ladder[1].Status = inter.SlotStaked
	rec.Ladder[1].LockID = 12
	rec.Ladder[2].Status = inter.SlotReady
	rec.LastClaimTs = 1234
	s.Claims[testAccount(3)] = rec
	s.ClaimedCount = 1
	require.True(t, s.DebitPool(big.NewInt(200)))
	return s
}

func TestEncodeRoundTrip(t *testing.T) {
	s := populated(t)
	blob, err := Encode(s)
	require.NoError(t, err)

	back, err := Decode(blob)
	require.NoError(t, err)

	again, err := Encode(back)
	require.NoError(t, err)
	require.Equal(t, blob, again)

	require.Equal(t, s.AdminList(), back.AdminList())
	require.Equal(t, s.Window, back.Window)
	require.Equal(t, 0, s.PoolBalance.Cmp(back.PoolBalance))
	require.Equal(t, 0, s.PoolFunded.Cmp(back.PoolFunded))
	require.Equal(t, 0, s.TotalPoints.Cmp(back.TotalPoints))
	require.Equal(t, s.Points, back.Points)
	require.Equal(t, s.Contributions, back.Contributions)
	require.Equal(t, s.ClaimedCount, back.ClaimedCount)
	require.Len(t, back.Snapshot, len(s.Snapshot))
	for id, v := range s.Snapshot {
		require.Equal(t, 0, v.Cmp(back.Snapshot[id]), "snapshot of %s", id)
	}
	rec := back.Claims[testAccount(3)]
	require.NotNil(t, rec)
	require.Equal(t, s.Claims[testAccount(3)].ClaimedSlots, rec.ClaimedSlots)
	require.Equal(t, inter.Timestamp(1234), rec.LastClaimTs)
	for i := range rec.Ladder {
		require.Equal(t, s.Claims[testAccount(3)].Ladder[i].String(), rec.Ladder[i].String())
	}
	require.Equal(t, s.Config.String(), back.Config.String())
}

func TestEncodeIsDeterministic(t *testing.T) {
	first, err := Encode(populated(t))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		next, err := Encode(populated(t))
		require.NoError(t, err)
		require.Equal(t, first, next)
	}
}

func TestDecodeRejects(t *testing.T) {
	blob, err := Encode(populated(t))
	require.NoError(t, err)

	reframe := func(t *testing.T, version uint32, body []byte, sum hash.Hash) []byte {
		out, err := rlp.EncodeToBytes(&envelope{Version: version, Checksum: sum, Body: body})
		require.NoError(t, err)
		return out
	}
	var env envelope
	require.NoError(t, rlp.DecodeBytes(blob, &env))

	t.Run("garbage", func(t *testing.T) {
		_, err := Decode([]byte{0xde, 0xad})
		require.Error(t, err)
	})
	t.Run("truncated", func(t *testing.T) {
		_, err := Decode(blob[:len(blob)/2])
		require.Error(t, err)
	})
	t.Run("version", func(t *testing.T) {
		_, err := Decode(reframe(t, BlobVersion+1, env.Body, env.Checksum))
		require.ErrorIs(t, err, ErrUnknownVersion)
	})
	t.Run("checksum", func(t *testing.T) {
		body := append([]byte{}, env.Body...)
		body[len(body)-1] ^= 1
		_, err := Decode(reframe(t, BlobVersion, body, env.Checksum))
		require.ErrorIs(t, err, ErrBadChecksum)
	})
	t.Run("unsorted admins", func(t *testing.T) {
		var enc stateRLP
		require.NoError(t, rlp.DecodeBytes(env.Body, &enc))
		enc.Admins[0], enc.Admins[1] = enc.Admins[1], enc.Admins[0]
		body, err := rlp.EncodeToBytes(&enc)
		require.NoError(t, err)
		_, err = Decode(reframe(t, BlobVersion, body, hash.Of(body)))
		require.ErrorIs(t, err, ErrNonCanonical)
	})
	t.Run("claimed set disagrees", func(t *testing.T) {
		var enc stateRLP
		require.NoError(t, rlp.DecodeBytes(env.Body, &enc))
		enc.Claims[0].Record.ClaimedSlots.Add(5)
		body, err := rlp.EncodeToBytes(&enc)
		require.NoError(t, err)
		_, err = Decode(reframe(t, BlobVersion, body, hash.Of(body)))
		require.ErrorIs(t, err, ErrNonCanonical)
	})
}

func TestStoreLifecycle(t *testing.T) {
	s := NewStore()
	admin := testAccount(1)
	cfg := airdrop.FakeNetConfig(time.Now())

	require.False(t, s.Initialized())
	require.ErrorIs(t, s.View(func(*State) error { return nil }), ErrNotInitialized)
	_, err := s.SnapshotForUpgrade()
	require.ErrorIs(t, err, ErrNotInitialized)

	bad := cfg.Copy()
	bad.ClaimStart, bad.ClaimEnd = 2, 1
	require.ErrorIs(t, s.Initialize(bad, admin), airdrop.ErrInvalidConfig)
	require.False(t, s.Initialized())

	require.NoError(t, s.Initialize(cfg, admin))
	require.ErrorIs(t, s.Initialize(cfg, testAccount(2)), ErrAlreadyInitialized)
	require.NoError(t, s.View(func(st *State) error {
		require.True(t, st.IsAdmin(admin))
		require.False(t, st.IsAdmin(testAccount(2)))
		require.Equal(t, cfg.Window(), st.Window)
		return nil
	}))

	require.NoError(t, s.Update(func(st *State) error {
		st.CreditPool(big.NewInt(42))
		return nil
	}))
	blob, err := s.SnapshotForUpgrade()
	require.NoError(t, err)

	final, err := s.Teardown()
	require.NoError(t, err)
	require.Equal(t, blob, final)
	require.False(t, s.Initialized())
	require.ErrorIs(t, s.Update(func(*State) error { return nil }), ErrNotInitialized)
	_, err = s.Teardown()
	require.ErrorIs(t, err, ErrNotInitialized)

	// Initialization is once per store lifetime, even after teardown.
	require.ErrorIs(t, s.Initialize(cfg, admin), ErrAlreadyInitialized)

	require.NoError(t, s.RestoreFromUpgrade(final))
	require.NoError(t, s.View(func(st *State) error {
		require.Equal(t, int64(42), st.PoolBalance.Int64())
		return nil
	}))
}

func TestViewsRunConcurrently(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Initialize(airdrop.FakeNetConfig(time.Now()), testAccount(1)))

	inner := make(chan error, 1)
	require.NoError(t, s.View(func(*State) error {
		// A second reader gets in while the first still holds the store.
		go func() { inner <- s.View(func(*State) error { return nil }) }()
		select {
		case err := <-inner:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("nested View blocked behind a reader")
			return nil
		}
	}))

	writing := make(chan struct{})
	done := make(chan struct{})
	require.NoError(t, s.View(func(*State) error {
		go func() {
			close(writing)
			_ = s.Update(func(st *State) error {
				st.CreditPool(big.NewInt(1))
				return nil
			})
			close(done)
		}()
		<-writing
		select {
		case <-done:
			t.Fatal("Update ran while a View held the store")
		case <-time.After(50 * time.Millisecond):
		}
		return nil
	}))
	<-done
	require.NoError(t, s.View(func(st *State) error {
		require.Equal(t, int64(1), st.PoolBalance.Int64())
		return nil
	}))
}

func TestRestoreFailureInstallsDefaultState(t *testing.T) {
	s := NewStore()
	err := s.RestoreFromUpgrade([]byte("not a blob"))
	require.ErrorIs(t, err, ErrRestoreFailed)
	require.True(t, s.Initialized())

	require.NoError(t, s.View(func(st *State) error {
		require.Empty(t, st.Admins)
		require.Zero(t, st.PoolBalance.Sign())
		require.Empty(t, st.Claims)
		return nil
	}))
	require.ErrorIs(t, s.Initialize(airdrop.DefaultConfig(), testAccount(1)), ErrAlreadyInitialized)
}

func TestPoolAccounting(t *testing.T) {
	s := New()
	s.CreditPool(big.NewInt(100))

	require.True(t, s.DebitPool(big.NewInt(30)))
	require.Equal(t, int64(70), s.PoolBalance.Int64())

	require.False(t, s.DebitPool(big.NewInt(90)))
	require.Equal(t, int64(70), s.PoolBalance.Int64())

	require.True(t, s.DebitPool(big.NewInt(70)))
	require.Zero(t, s.PoolBalance.Sign())

	s.RefundPool(big.NewInt(5))
	require.Equal(t, int64(5), s.PoolBalance.Int64())
	require.Equal(t, int64(100), s.PoolFunded.Int64())
}

func TestParticipantsAndPoints(t *testing.T) {
	s := New()
	s.Config = airdrop.FakeNetConfig(time.Now())
	s.Snapshot[testAccount(2)] = big.NewInt(999)
	s.Contributions[testAccount(1)] = 0
	s.Contributions[testAccount(2)] = 200_000_000

	require.Equal(t, []inter.AccountID{testAccount(1), testAccount(2)}, s.Participants())

	s.RecomputePoints()
	_, zero := s.Points[testAccount(1)]
	require.False(t, zero, "accounts without points are not stored")
	require.Equal(t, uint64(3+10), s.Points[testAccount(2)])
	require.Equal(t, int64(13), s.TotalPoints.Int64())
}
