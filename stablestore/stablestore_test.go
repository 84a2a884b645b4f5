package stablestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stable.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSaveAndLatest(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.Latest(ctx, "state")
	require.ErrorIs(t, err, ErrNotFound)

	v1, err := s.Save(ctx, "state", []byte("first"), at)
	require.NoError(t, err)
	require.Equal(t, uint64(1), v1)

	v2, err := s.Save(ctx, "state", []byte("second"), at.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, uint64(2), v2)

	// Names are versioned independently.
	other, err := s.Save(ctx, "ledger", []byte("x"), at)
	require.NoError(t, err)
	require.Equal(t, uint64(1), other)

	latest, err := s.Latest(ctx, "state")
	require.NoError(t, err)
	require.Equal(t, uint64(2), latest.Version)
	require.Equal(t, []byte("second"), latest.Blob)
	require.Equal(t, at.Add(time.Minute), latest.SavedAt)
}

func TestHistory(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	for _, body := range []string{"a", "b", "c"} {
		_, err := s.Save(ctx, "state", []byte(body), time.Now())
		require.NoError(t, err)
	}

	all, err := s.History(ctx, "state", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []byte("c"), all[0].Blob)
	require.Equal(t, []byte("a"), all[2].Blob)

	two, err := s.History(ctx, "state", 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	require.Equal(t, uint64(2), two[1].Version)

	none, err := s.History(ctx, "missing", 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestReopenAndTamper(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	_, err := s.Save(ctx, "state", []byte("payload"), time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	snap, err := reopened.Latest(ctx, "state")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), snap.Blob)

	_, err = reopened.db.Exec(`UPDATE blobs SET body = ? WHERE name = ?`, []byte("tampered"), "state")
	require.NoError(t, err)
	_, err = reopened.Latest(ctx, "state")
	require.ErrorIs(t, err, ErrChecksumMismatch)
}
