package points

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-airdrop-claim/airdrop"
)

// tokensAtDefaultRate converts a USD value into contributed base units at
// 5 USD per token.
func tokensAtDefaultRate(usd uint64) uint64 {
	return usd / 5 * 100_000_000
}

func TestHolderPoints(t *testing.T) {
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	tests := []struct {
		amount *big.Int
		want   uint64
	}{
		{nil, 0},
		{big.NewInt(0), 0},
		{big.NewInt(-5), 0},
		{big.NewInt(1), 1},
		{big.NewInt(9), 1},
		{big.NewInt(10), 2},
		{big.NewInt(999), 3},
		{big.NewInt(1000), 4},
		{huge, 30},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, HolderPoints(tt.amount), "amount %v", tt.amount)
	}
}

func TestContributorPoints(t *testing.T) {
	rate := airdrop.DefaultExchangeRate
	tests := []struct {
		name string
		usd  uint64
		want uint64
	}{
		{"zero", 0, 0},
		{"below tier", 50_000, 50_000},
		{"at tier", 100_000, 100_000},
		{"above tier", 150_000, 200_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ContributorPoints(tokensAtDefaultRate(tt.usd), rate))
		})
	}

	// Fractions of a USD are truncated.
	require.Equal(t, uint64(0), ContributorPoints(19_999_999, rate))
	require.Equal(t, uint64(1), ContributorPoints(20_000_000, rate))

	// Overflowing products saturate instead of wrapping.
	require.Equal(t, uint64(math.MaxUint64), ContributorPoints(math.MaxUint64, math.MaxUint64))
}

func TestMicroUSD(t *testing.T) {
	require.Equal(t, int64(5_000_000), MicroUSD(100_000_000, 5_000_000).Int64())
	require.Equal(t, uint64(5), USD(100_000_000, 5_000_000))
}

func TestTotal(t *testing.T) {
	require.Equal(t, uint64(3+2*7), Total(airdrop.Weights{Holder: 1, Contributor: 2}, 3, 7))
	require.Equal(t, uint64(0), Total(airdrop.Weights{}, 3, 7))
	require.Equal(t, uint64(math.MaxUint64), Total(airdrop.Weights{Holder: 2}, math.MaxUint64, 0))
	require.Equal(t, uint64(math.MaxUint64), Total(airdrop.Weights{Holder: 1, Contributor: 1}, math.MaxUint64, 1))
}

func TestCompute(t *testing.T) {
	cfg := airdrop.DefaultConfig()
	cfg.MinHolding = big.NewInt(1000)

	got := Compute(cfg, big.NewInt(999), tokensAtDefaultRate(50_000))
	require.Equal(t, uint64(0), got.Holder, "below minimum holding")
	require.Equal(t, uint64(50_000), got.Contributor)
	require.Equal(t, uint64(50_000), got.Total)

	got = Compute(cfg, big.NewInt(1000), 0)
	require.Equal(t, uint64(4), got.Holder)
	require.Equal(t, uint64(4), got.Total)

	require.Equal(t, uint64(0), Compute(cfg, nil, 0).Total)
}
