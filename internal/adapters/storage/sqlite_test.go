package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alejandrodnm/automerger/internal/adapters/storage"
	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSubmission(id string, at time.Time) domain.Submission {
	return domain.Submission{
		ID:          id,
		Kind:        domain.KindConvert,
		Scheme:      "PROXY",
		EventSlug:   "springfield-mayoral-election-2026",
		Target:      "0xe3a2b5b0a5f1ecb4c9b2b0fe7f3b5d6a1c5a0cbd6b3c8f1d2e7a4b9c0d1e2f00",
		IndexSet:    "262405",
		Amount:      decimal.RequireFromString("7.5"),
		BaseUnits:   "7500000",
		Nonce:       "42",
		TxHash:      "tx-123",
		Response:    `{"transactionID":"tx-123"}`,
		SubmittedAt: at.UTC().Truncate(time.Second),
	}
}

func TestSQLiteJournal_SaveAndRecentSubmissions(t *testing.T) {
	db, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, db.SaveSubmission(ctx, makeSubmission("a", now.Add(-time.Minute))))
	require.NoError(t, db.SaveSubmission(ctx, makeSubmission("b", now)))

	subs, err := db.RecentSubmissions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, subs, 2)

	// Más reciente primero
	assert.Equal(t, "b", subs[0].ID)
	assert.Equal(t, "a", subs[1].ID)

	s := subs[0]
	assert.Equal(t, domain.KindConvert, s.Kind)
	assert.Equal(t, "262405", s.IndexSet)
	assert.True(t, s.Amount.Equal(decimal.RequireFromString("7.5")))
	assert.Equal(t, "7500000", s.BaseUnits)
	assert.Equal(t, "tx-123", s.TxHash)
	assert.False(t, s.DryRun)
	assert.Empty(t, s.Error)
}

func TestSQLiteJournal_SubmissionIsIdempotent(t *testing.T) {
	db, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	sub := makeSubmission("same", time.Now())
	require.NoError(t, db.SaveSubmission(ctx, sub))
	require.NoError(t, db.SaveSubmission(ctx, sub))

	subs, err := db.RecentSubmissions(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestSQLiteJournal_RecentSubmissionsLimit(t *testing.T) {
	db, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 5; i++ {
		sub := makeSubmission(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Second))
		sub.DryRun = i%2 == 0
		require.NoError(t, db.SaveSubmission(ctx, sub))
	}

	subs, err := db.RecentSubmissions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "s4", subs[0].ID)
	assert.True(t, subs[0].DryRun)
	assert.False(t, subs[1].DryRun)
}

func TestSQLiteJournal_SaveCycle(t *testing.T) {
	db, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	ok := domain.CycleResult{
		ID:         "c1",
		StartedAt:  time.Now(),
		Duration:   1500 * time.Millisecond,
		Positions:  12,
		Candidates: 3,
		Groups: []domain.GroupOutcome{
			{Status: domain.StatusSubmitted},
			{Status: domain.StatusCooldown},
			{Status: domain.StatusFailed, Err: domain.ErrRelayRejected},
		},
	}
	failed := domain.CycleResult{
		ID:        "c2",
		StartedAt: time.Now(),
		Err:       fmt.Errorf("snapshot: %w", domain.ErrTransport),
	}

	require.NoError(t, db.SaveCycle(ctx, ok))
	require.NoError(t, db.SaveCycle(ctx, failed))
	require.NoError(t, db.SaveCycle(ctx, failed)) // mismo ID → reemplaza

	n, err := db.CycleCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteJournal_EmptyDatabase(t *testing.T) {
	db, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer db.Close()

	subs, err := db.RecentSubmissions(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSQLiteJournal_BadPath(t *testing.T) {
	_, err := storage.NewSQLiteJournal("/nonexistent-dir/sub/automerger.db")
	assert.Error(t, err)
}
