package trace

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-eligibility-engine/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "traces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreWriteAndReplay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, sampleTrace("run-1", "NCT-1")))
	require.NoError(t, store.Write(ctx, sampleTrace("run-1", "NCT-2")))
	require.NoError(t, store.Write(ctx, sampleTrace("run-2", "NCT-1")))

	traces, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, traces, 2)
	assert.Equal(t, "NCT-1", traces[0].TrialID)
	assert.Equal(t, "NCT-2", traces[1].TrialID)
	assert.Equal(t, domain.Eligible, traces[0].Overall)
	require.Len(t, traces[0].Inclusion, 1)
	assert.Equal(t, domain.StatusMet, traces[0].Inclusion[0].Status)
}

func TestSQLiteStoreUnknownRun(t *testing.T) {
	store := newTestStore(t)

	traces, err := store.GetByRunID(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, traces)
}

func TestSQLiteStoreCountByTrial(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, sampleTrace("run-1", "NCT-1")))
	require.NoError(t, store.Write(ctx, sampleTrace("run-2", "NCT-1")))
	require.NoError(t, store.Write(ctx, sampleTrace("run-2", "NCT-2")))

	counts, err := store.CountByTrial(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"NCT-1": 2, "NCT-2": 1}, counts)
}
