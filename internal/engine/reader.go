package engine

import (
	"context"
	"time"

	"github.com/normanking/headsup/pkg/types"
)

// StateReader is the read-only view of business state the trigger predicates
// consume, plus the single mutation the engine's one defined side effect
// needs. Every query returns a zero value (nil, 0, false) rather than an
// error when no rows match — triggers treat "no data" and "condition false"
// identically.
type StateReader interface {
	// OldestDueReminder returns the oldest unfired reminder whose due time
	// is at or before now, or nil.
	OldestDueReminder(ctx context.Context, now time.Time) (*types.Reminder, error)

	// MarkReminderFired marks a reminder consumed.
	MarkReminderFired(ctx context.Context, id string, firedAt time.Time) error

	// OldestStaleDebt returns the oldest unresolved owed-to-me debt
	// created at or before cutoff, or nil.
	OldestStaleDebt(ctx context.Context, cutoff time.Time) (*types.Debt, error)

	// OutstandingDebt returns the total unresolved owed-to-me balance for
	// a person.
	OutstandingDebt(ctx context.Context, person string) (float64, error)

	// ListOpenDebts returns all unresolved owed-to-me debts, largest
	// first. Used for the live money-owed summary.
	ListOpenDebts(ctx context.Context) ([]types.Debt, error)

	// CountJobsWaiting counts jobs stuck waiting on parts.
	CountJobsWaiting(ctx context.Context) (int, error)

	// CountOpenJobs counts jobs not yet completed or delivered.
	CountOpenJobs(ctx context.Context) (int, error)

	// OldestUnclaimedJob returns the oldest completed-but-unclaimed job
	// whose completion is at or before cutoff, or nil.
	OldestUnclaimedJob(ctx context.Context, cutoff time.Time) (*types.Job, error)

	// RecentEvents returns up to limit events, newest first.
	RecentEvents(ctx context.Context, limit int) ([]types.BusinessEvent, error)

	// TodayInflow sums payment events at or after dayStart.
	TodayInflow(ctx context.Context, dayStart time.Time) (float64, error)

	// IssueCountsByCounterparty counts issue events of the given category
	// at or after since, grouped by counterparty.
	IssueCountsByCounterparty(ctx context.Context, category string, since time.Time) (map[string]int, error)

	// HasPendingReminder reports whether any unfired reminder exists.
	HasPendingReminder(ctx context.Context) (bool, error)

	// HasActiveJob reports whether any intake or in-progress job exists.
	HasActiveJob(ctx context.Context) (bool, error)
}
