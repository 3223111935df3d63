package order

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func journalFixture(t *testing.T) (*Journal, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &Journal{Client: client, Log: zerolog.Nop()}, mr
}

func TestJournalRecordAndPending(t *testing.T) {
	j, _ := journalFixture(t)
	ctx := context.Background()

	j.Record(ctx, JournalEntry{TenantID: "t1", PaymentRef: "pi_1", Amount: 1323, Reason: "insert order: connection refused"})
	j.Record(ctx, JournalEntry{TenantID: "t1", PaymentRef: "pi_2", Amount: 500, Reason: "commit: timeout"})

	entries, err := j.Pending(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "pi_1", entries[0].PaymentRef)
	require.Equal(t, int64(1323), entries[0].Amount)
	require.False(t, entries[0].FailedAt.IsZero())
}

func TestJournalTenantIsolation(t *testing.T) {
	j, _ := journalFixture(t)
	ctx := context.Background()

	j.Record(ctx, JournalEntry{TenantID: "t1", PaymentRef: "pi_1", Amount: 100})
	j.Record(ctx, JournalEntry{TenantID: "t2", PaymentRef: "pi_2", Amount: 200})

	entries, err := j.Pending(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "pi_1", entries[0].PaymentRef)
}

func TestJournalResolve(t *testing.T) {
	j, _ := journalFixture(t)
	ctx := context.Background()

	j.Record(ctx, JournalEntry{TenantID: "t1", PaymentRef: "pi_1", Amount: 100})
	j.Record(ctx, JournalEntry{TenantID: "t1", PaymentRef: "pi_2", Amount: 200})

	require.NoError(t, j.Resolve(ctx, "t1", "pi_1"))
	entries, err := j.Pending(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "pi_2", entries[0].PaymentRef)

	// Resolving an unknown ref is a no-op.
	require.NoError(t, j.Resolve(ctx, "t1", "missing"))
}

func TestJournalNilReceiverIsSafe(t *testing.T) {
	var j *Journal
	ctx := context.Background()

	// A captured charge must be logged even when the journal was never wired.
	j.Record(ctx, JournalEntry{TenantID: "t1", PaymentRef: "pi_1", Amount: 100})

	entries, err := j.Pending(ctx, "t1", 10)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.NoError(t, j.Resolve(ctx, "t1", "pi_1"))
}

func TestJournalRecordSurvivesRedisOutage(t *testing.T) {
	j, mr := journalFixture(t)
	mr.Close()
	// Must not panic or error; the entry falls through to the log.
	j.Record(context.Background(), JournalEntry{TenantID: "t1", PaymentRef: "pi_1", Amount: 100})
}
