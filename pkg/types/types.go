// Package types defines the shared business record types for Heads-Up.
// These are the rows the trigger predicates read: reminders, debts, repair
// jobs, and the stream of business events. They are deliberately plain
// structs so the data layer and the engine can share them without either
// depending on the other.
package types

import "time"

// ═══════════════════════════════════════════════════════════════════════════════
// REMINDERS
// ═══════════════════════════════════════════════════════════════════════════════

// Reminder is a commitment the owner asked the assistant to hold.
type Reminder struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	DueAt   time.Time `json:"due_at"`

	// Fired is set once the reminder has been surfaced to the owner.
	Fired   bool       `json:"fired"`
	FiredAt *time.Time `json:"fired_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// DEBTS
// ═══════════════════════════════════════════════════════════════════════════════

// DebtDirection indicates who owes whom.
type DebtDirection string

const (
	// DebtOwedToMe is money a counterparty owes the business.
	DebtOwedToMe DebtDirection = "owed_to_me"
	// DebtOwedByMe is money the business owes a counterparty.
	DebtOwedByMe DebtDirection = "owed_by_me"
)

// Debt is an outstanding balance between the business and a person.
type Debt struct {
	ID        string        `json:"id"`
	Person    string        `json:"person"`
	Amount    float64       `json:"amount"`
	Direction DebtDirection `json:"direction"`
	Resolved  bool          `json:"resolved"`
	CreatedAt time.Time     `json:"created_at"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// JOBS
// ═══════════════════════════════════════════════════════════════════════════════

// JobStatus is the lifecycle state of a repair job.
type JobStatus string

const (
	JobIntake       JobStatus = "intake"
	JobInProgress   JobStatus = "in_progress"
	JobWaitingParts JobStatus = "waiting_parts"
	JobCompleted    JobStatus = "completed"
	JobDelivered    JobStatus = "delivered"
)

// Job is a unit of work for a customer (typically a device repair).
type Job struct {
	ID       string    `json:"id"`
	Customer string    `json:"customer"`
	Device   string    `json:"device,omitempty"`
	Status   JobStatus `json:"status"`

	// Claimed is set when the customer has picked the finished job up.
	Claimed bool `json:"claimed"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ═══════════════════════════════════════════════════════════════════════════════

// EventKind classifies a business event.
type EventKind string

const (
	EventMissedCall      EventKind = "missed_call"
	EventIssue           EventKind = "issue"
	EventPaymentReceived EventKind = "payment_received"
	EventJobCreated      EventKind = "job_created"
	EventNote            EventKind = "note"
)

// BusinessEvent is one entry in the append-only stream of things that
// happened to the business: calls, payments, reported issues.
type BusinessEvent struct {
	ID           string    `json:"id"`
	Kind         EventKind `json:"kind"`
	Counterparty string    `json:"counterparty,omitempty"`

	// Category refines Kind for issue events (e.g. "rework").
	Category string `json:"category,omitempty"`

	// Amount is set for monetary events (payments).
	Amount float64 `json:"amount,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// PENDING ACTIONS
// ═══════════════════════════════════════════════════════════════════════════════

// PendingAction is a side-effecting command the assistant is about to
// execute on the owner's behalf, awaiting safety validation. The unsafe
// action trigger inspects it inline, before the action runs.
type PendingAction struct {
	// Kind names the action ("record_payment", "send_message", ...).
	Kind string `json:"kind"`

	// Subject is the person or record the action targets.
	Subject string `json:"subject,omitempty"`

	// SubjectAmbiguous is set when the subject reference could not be
	// resolved to a single record.
	SubjectAmbiguous bool `json:"subject_ambiguous,omitempty"`

	// Amount is the monetary amount involved, if any.
	Amount float64 `json:"amount,omitempty"`

	// Confirmed is set once the owner has explicitly confirmed the action.
	Confirmed bool `json:"confirmed,omitempty"`

	// Recipient is the resolved recipient for messaging actions.
	Recipient string `json:"recipient,omitempty"`
}

// ActionSendMessage is the PendingAction kind for outbound messages.
const ActionSendMessage = "send_message"
