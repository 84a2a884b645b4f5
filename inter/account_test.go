package inter

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestAccountIDString(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	plain := NewAccountID(owner)
	require.Equal(t, owner.Hex(), plain.String())
	require.False(t, plain.HasSubaccount())

	sub, err := plain.WithSubaccount([]byte{1, 2, 3})
	require.NoError(t, err)
	require.True(t, sub.HasSubaccount())
	require.Equal(t, byte(3), sub.Subaccount[SubaccountLength-1])

	for _, id := range []AccountID{plain, sub} {
		parsed, err := ParseAccountID(id.String())
		require.NoError(t, err)
		require.Equal(t, id, parsed)
	}
}

func TestAccountIDZeroSubaccountIsDefault(t *testing.T) {
	owner := common.HexToAddress("0x01")
	explicit, err := NewAccountID(owner).WithSubaccount(make([]byte, SubaccountLength))
	require.NoError(t, err)
	require.Equal(t, NewAccountID(owner), explicit)
}

func TestParseAccountIDErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"not hex", "hello"},
		{"short owner", "0x1234"},
		{"bad base58", "0x00000000000000000000000000000000000000aa.0OIl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAccountID(tt.in)
			require.ErrorIs(t, err, ErrInvalidAccount)
		})
	}

	_, err := NewAccountID(common.Address{}).WithSubaccount(make([]byte, SubaccountLength+1))
	require.ErrorIs(t, err, ErrInvalidAccount)
}

func TestAccountIDOrdering(t *testing.T) {
	a := NewAccountID(common.HexToAddress("0x01"))
	b := NewAccountID(common.HexToAddress("0x02"))
	a1, err := a.WithSubaccount([]byte{1})
	require.NoError(t, err)

	require.True(t, a.Less(a1))
	require.True(t, a1.Less(b))
	require.False(t, b.Less(a))
	require.False(t, a.Less(a))

	require.Len(t, a1.Bytes(), common.AddressLength+SubaccountLength)
	require.True(t, AccountID{}.IsZero())
	require.False(t, a.IsZero())
}

func TestAccountIDTextMarshaling(t *testing.T) {
	id, err := NewAccountID(common.HexToAddress("0xbeef")).WithSubaccount([]byte("savings"))
	require.NoError(t, err)

	raw, err := json.Marshal(map[string]AccountID{"who": id})
	require.NoError(t, err)

	var back map[string]AccountID
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, id, back["who"])
}
