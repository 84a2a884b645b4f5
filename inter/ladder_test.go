package inter

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSlotSet(t *testing.T) {
	var s SlotSet
	require.Equal(t, 0, s.Len())

	require.True(t, s.Add(3))
	require.False(t, s.Add(3))
	require.False(t, s.Add(LadderSize))
	require.True(t, s.Has(3))
	require.False(t, s.Has(LadderSize))
	require.Equal(t, []uint8{3}, s.Indices())

	for i := uint8(0); i < LadderSize; i++ {
		s.Add(i)
	}
	require.True(t, s.Full())
	require.Equal(t, LadderSize, s.Len())
}

func TestSlotStatus(t *testing.T) {
	tests := []struct {
		status SlotStatus
		want   string
	}{
		{SlotPending, "pending"},
		{SlotReady, "ready"},
		{SlotStaked, "staked"},
		{SlotClaimed, "claimed"},
		{SlotStatus(9), "status(9)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.status.String())
			require.Equal(t, tt.status <= SlotClaimed, tt.status.Valid())
		})
	}
}

func TestClaimRecordCopyIsDeep(t *testing.T) {
	rec := &ClaimRecord{TotalAllocation: big.NewInt(80)}
	for i := range rec.Ladder {
		rec.Ladder[i] = LadderSlot{Index: uint8(i), Amount: big.NewInt(10)}
	}

	cp := rec.Copy()
	cp.TotalAllocation.SetInt64(1)
	cp.Ladder[0].Amount.SetInt64(1)
	cp.Ladder[1].Status = SlotClaimed
	cp.ClaimedSlots.Add(1)

	require.Equal(t, int64(80), rec.TotalAllocation.Int64())
	require.Equal(t, int64(10), rec.Ladder[0].Amount.Int64())
	require.Equal(t, SlotPending, rec.Ladder[1].Status)
	require.Equal(t, 0, rec.ClaimedSlots.Len())
	require.Equal(t, int64(80), rec.Ladder.Sum().Int64())
	require.Equal(t, LadderSize, rec.Ladder.CountStatus(SlotPending))

	var none *ClaimRecord
	require.Nil(t, none.Copy())
	require.False(t, none.Complete())
}

func TestWindow(t *testing.T) {
	w := Window{Start: 10, End: 20}
	require.True(t, w.Valid())
	require.True(t, w.NotYetOpen(9))
	require.True(t, w.Contains(10))
	require.True(t, w.Contains(19))
	require.False(t, w.Contains(20))
	require.False(t, Window{Start: 5, End: 4}.Valid())
	require.False(t, Window{Start: 5, End: 5}.Contains(5))
}

func TestTimestamp(t *testing.T) {
	at := time.Date(2026, time.March, 4, 5, 6, 7, 0, time.UTC)
	ts := FromTime(at)
	require.Equal(t, at, ts.Time())
	require.Equal(t, at.Unix(), ts.Unix())
	require.Equal(t, "2026-03-04T05:06:07Z", ts.String())
	require.Equal(t, Timestamp(0), FromTime(time.Unix(-5, 0)))
}
