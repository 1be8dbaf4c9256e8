// Package engine implements the proactive interruption engine: ten
// prioritized trigger predicates evaluated in a fixed order against business
// state, a cooldown ledger that keeps the assistant from repeating itself,
// and a silence-by-default posture — no trigger firing means no output.
package engine

import (
	"time"

	"github.com/normanking/headsup/pkg/types"
)

// Priority is the urgency attached to an interruption.
type Priority string

const (
	PriorityCritical  Priority = "critical"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
	PriorityImmediate Priority = "immediate"
)

// TriggerKind identifies which of the ten conditions produced an
// interruption. The declaration order below is also the evaluation order;
// earlier kinds win ties.
type TriggerKind string

const (
	TriggerUnsafeAction    TriggerKind = "UNSAFE_ACTION"
	TriggerOverdueReminder TriggerKind = "OVERDUE_REMINDER"
	TriggerAgingDebt       TriggerKind = "AGING_DEBT"
	TriggerBlockedJobs     TriggerKind = "BLOCKED_JOBS"
	TriggerUnclaimedJob    TriggerKind = "UNCLAIMED_JOB"
	TriggerMissedContact   TriggerKind = "MISSED_CONTACT_DEBT"
	TriggerDailyCloseout   TriggerKind = "DAILY_CLOSEOUT"
	TriggerRepeatIssues    TriggerKind = "REPEAT_ISSUES"
	TriggerSummary         TriggerKind = "ACTIONABLE_SUMMARY"
	TriggerQuietDay        TriggerKind = "QUIET_DAY"
)

// ActionKind names a follow-up side effect the delivery layer should run
// after an interruption is delivered.
type ActionKind string

const (
	// ActionMarkReminderFired marks the triggering reminder as consumed so
	// it does not come due again.
	ActionMarkReminderFired ActionKind = "mark_reminder_fired"
)

// SummaryType selects which live aggregate the delivery layer computes for
// the on-demand summary trigger.
type SummaryType string

const (
	SummaryEarningsToday SummaryType = "earnings_today"
	SummaryMoneyOwed     SummaryType = "money_owed"
)

// Interruption is the engine's decision to speak. At most one is produced
// per evaluation cycle.
type Interruption struct {
	// ID is deterministic per logical occurrence (derived from the
	// triggering record, never random) so the cooldown ledger can
	// recognize repeats of the same condition.
	ID string `json:"id"`

	Trigger  TriggerKind `json:"trigger"`
	Message  string      `json:"message,omitempty"`
	Priority Priority    `json:"priority"`

	// ExpectsResponse tells the delivery layer to solicit a reply.
	ExpectsResponse bool `json:"expects_response,omitempty"`

	// Action is an optional follow-up side effect to run on delivery.
	Action ActionKind `json:"action,omitempty"`

	// SummaryType is set instead of Message for the on-demand summary
	// trigger; the delivery layer computes the answer live.
	SummaryType SummaryType `json:"summary_type,omitempty"`

	// Synchronous marks interruptions produced inline during command
	// processing rather than by the timer.
	Synchronous bool `json:"synchronous,omitempty"`

	// Blocking marks safety interruptions that must halt the pending
	// action until the owner confirms.
	Blocking bool `json:"blocking,omitempty"`

	// Payload carries the record(s) that caused the signal, typed per
	// trigger kind so action dispatch is exhaustively checked.
	Payload Payload `json:"payload,omitempty"`

	// Timestamp is evaluation time, not event time.
	Timestamp time.Time `json:"timestamp"`
}

// Context is the ephemeral input to one evaluation cycle. It is constructed
// fresh per cycle and never persisted. All fields are optional; triggers
// treat missing fields as absent.
type Context struct {
	// Command is the owner's current utterance, if the cycle was started
	// by one.
	Command string

	// PendingAction is an action awaiting safety validation.
	PendingAction *types.PendingAction

	// RecentEvents is a short window of recent domain events, newest
	// first.
	RecentEvents []types.BusinessEvent

	// RequestCloseout forces the end-of-day closeout regardless of hour.
	RequestCloseout bool
}

// Payload is the tagged union of per-trigger payloads.
type Payload interface{ isPayload() }

// ReminderPayload accompanies OVERDUE_REMINDER.
type ReminderPayload struct {
	Reminder types.Reminder `json:"reminder"`
}

// DebtPayload accompanies AGING_DEBT.
type DebtPayload struct {
	Debt types.Debt `json:"debt"`
}

// BlockedJobsPayload accompanies BLOCKED_JOBS.
type BlockedJobsPayload struct {
	Count int `json:"count"`
}

// JobPayload accompanies UNCLAIMED_JOB.
type JobPayload struct {
	Job types.Job `json:"job"`
}

// FollowUpPayload accompanies MISSED_CONTACT_DEBT.
type FollowUpPayload struct {
	Event      types.BusinessEvent `json:"event"`
	AmountOwed float64             `json:"amount_owed"`
}

// CloseoutPayload accompanies DAILY_CLOSEOUT.
type CloseoutPayload struct {
	Inflow   float64 `json:"inflow"`
	OpenJobs int     `json:"open_jobs"`
}

// IssuePayload accompanies REPEAT_ISSUES.
type IssuePayload struct {
	Counterparty string `json:"counterparty"`
	Count        int    `json:"count"`
}

// UnsafeActionPayload accompanies UNSAFE_ACTION.
type UnsafeActionPayload struct {
	Action types.PendingAction `json:"action"`
	Reason string              `json:"reason"`
}

func (ReminderPayload) isPayload()     {}
func (DebtPayload) isPayload()         {}
func (BlockedJobsPayload) isPayload()  {}
func (JobPayload) isPayload()          {}
func (FollowUpPayload) isPayload()     {}
func (CloseoutPayload) isPayload()     {}
func (IssuePayload) isPayload()        {}
func (UnsafeActionPayload) isPayload() {}
