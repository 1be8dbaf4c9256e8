package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/headsup/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEmptyStoreReadsAreZeroValued(t *testing.T) {
	ctx := context.Background()
	v := newTestStore(t).ForSubject("shop-1")
	now := time.Now()

	r, err := v.OldestDueReminder(ctx, now)
	require.NoError(t, err)
	assert.Nil(t, r)

	d, err := v.OldestStaleDebt(ctx, now)
	require.NoError(t, err)
	assert.Nil(t, d)

	j, err := v.OldestUnclaimedJob(ctx, now)
	require.NoError(t, err)
	assert.Nil(t, j)

	n, err := v.CountJobsWaiting(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	total, err := v.TodayInflow(ctx, now.Add(-12*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, total)

	pending, err := v.HasPendingReminder(ctx)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestReminderLifecycle(t *testing.T) {
	ctx := context.Background()
	v := newTestStore(t).ForSubject("shop-1")
	now := time.Now().UTC()

	require.NoError(t, v.CreateReminder(ctx, &types.Reminder{
		Message: "call supplier",
		DueAt:   now.Add(-time.Hour),
	}))
	require.NoError(t, v.CreateReminder(ctx, &types.Reminder{
		Message: "future task",
		DueAt:   now.Add(time.Hour),
	}))

	due, err := v.OldestDueReminder(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, due)
	assert.Equal(t, "call supplier", due.Message)
	assert.False(t, due.Fired)

	require.NoError(t, v.MarkReminderFired(ctx, due.ID, now))

	// Fired reminders stop surfacing; the future one is not yet due.
	again, err := v.OldestDueReminder(ctx, now)
	require.NoError(t, err)
	assert.Nil(t, again)

	pending, err := v.HasPendingReminder(ctx)
	require.NoError(t, err)
	assert.True(t, pending, "unfired future reminder still counts as pending")
}

func TestDebtQueries(t *testing.T) {
	ctx := context.Background()
	v := newTestStore(t).ForSubject("shop-1")
	now := time.Now().UTC()

	require.NoError(t, v.CreateDebt(ctx, &types.Debt{
		Person: "Carlos", Amount: 150,
		Direction: types.DebtOwedToMe, CreatedAt: now.Add(-4 * 24 * time.Hour),
	}))
	require.NoError(t, v.CreateDebt(ctx, &types.Debt{
		Person: "Carlos", Amount: 50,
		Direction: types.DebtOwedToMe, CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, v.CreateDebt(ctx, &types.Debt{
		Person: "Supplier", Amount: 900,
		Direction: types.DebtOwedByMe, CreatedAt: now.Add(-10 * 24 * time.Hour),
	}))

	stale, err := v.OldestStaleDebt(ctx, now.Add(-3*24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, stale)
	assert.Equal(t, "Carlos", stale.Person)
	assert.Equal(t, 150.0, stale.Amount)

	total, err := v.OutstandingDebt(ctx, "Carlos")
	require.NoError(t, err)
	assert.Equal(t, 200.0, total)

	// Debts I owe never appear in the owed-to-me listings.
	open, err := v.ListOpenDebts(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, 150.0, open[0].Amount, "largest first")
}

func TestJobQueries(t *testing.T) {
	ctx := context.Background()
	v := newTestStore(t).ForSubject("shop-1")
	now := time.Now().UTC()
	completed := now.Add(-6 * 24 * time.Hour)

	require.NoError(t, v.CreateJob(ctx, &types.Job{
		Customer: "Marta", Device: "laptop",
		Status: types.JobCompleted, CompletedAt: &completed,
	}))
	require.NoError(t, v.CreateJob(ctx, &types.Job{
		Customer: "Luis", Status: types.JobWaitingParts,
	}))
	require.NoError(t, v.CreateJob(ctx, &types.Job{
		Customer: "Ana", Status: types.JobInProgress,
	}))

	waiting, err := v.CountJobsWaiting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, waiting)

	open, err := v.CountOpenJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, open)

	unclaimed, err := v.OldestUnclaimedJob(ctx, now.Add(-4*24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, unclaimed)
	assert.Equal(t, "Marta", unclaimed.Customer)
	assert.Equal(t, "laptop", unclaimed.Device)

	active, err := v.HasActiveJob(ctx)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestEventQueries(t *testing.T) {
	ctx := context.Background()
	v := newTestStore(t).ForSubject("shop-1")
	now := time.Now().UTC()

	require.NoError(t, v.RecordEvent(ctx, &types.BusinessEvent{
		Kind: types.EventPaymentReceived, Counterparty: "Marta", Amount: 120, OccurredAt: now.Add(-time.Hour),
	}))
	require.NoError(t, v.RecordEvent(ctx, &types.BusinessEvent{
		Kind: types.EventPaymentReceived, Counterparty: "Luis", Amount: 80, OccurredAt: now.Add(-30 * time.Minute),
	}))
	require.NoError(t, v.RecordEvent(ctx, &types.BusinessEvent{
		Kind: types.EventPaymentReceived, Counterparty: "Old", Amount: 999, OccurredAt: now.Add(-48 * time.Hour),
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, v.RecordEvent(ctx, &types.BusinessEvent{
			Kind: types.EventIssue, Counterparty: "Marta", Category: "rework",
			OccurredAt: now.Add(-time.Duration(i) * time.Hour),
		}))
	}

	inflow, err := v.TodayInflow(ctx, now.Add(-12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 200.0, inflow, "yesterday's payment excluded")

	recent, err := v.RecentEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	counts, err := v.IssueCountsByCounterparty(ctx, "rework", now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Marta": 3}, counts)
}

func TestSubjectIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := store.ForSubject("shop-1")
	b := store.ForSubject("shop-2")
	now := time.Now().UTC()

	require.NoError(t, a.CreateDebt(ctx, &types.Debt{
		Person: "Carlos", Amount: 150,
		Direction: types.DebtOwedToMe, CreatedAt: now.Add(-24 * time.Hour),
	}))

	open, err := b.ListOpenDebts(ctx)
	require.NoError(t, err)
	assert.Empty(t, open, "shop-2 must not see shop-1's debts")

	total, err := b.OutstandingDebt(ctx, "Carlos")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAuditLogRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := newTestStore(t).ForSubject("shop-1")

	for i, trig := range []string{"AGING_DEBT", "OVERDUE_REMINDER", "DAILY_CLOSEOUT"} {
		require.NoError(t, v.SaveAudit(ctx, AuditEntry{
			Subject:   "shop-1",
			Trigger:   trig,
			Priority:  "high",
			Message:   "something happened",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	entries, err := v.RecentAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "DAILY_CLOSEOUT", entries[0].Trigger, "newest first")
}
