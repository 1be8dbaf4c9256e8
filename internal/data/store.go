package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/normanking/headsup/internal/engine"
	"github.com/normanking/headsup/pkg/types"
)

// ForSubject returns a view of the store scoped to one subject. The view
// implements engine.StateReader; every query filters on the subject column
// so engines for different businesses never see each other's rows.
func (s *Store) ForSubject(subject string) *SubjectView {
	return &SubjectView{store: s, subject: subject}
}

// SubjectView is a per-subject window onto the store.
type SubjectView struct {
	store   *Store
	subject string
}

var _ engine.StateReader = (*SubjectView)(nil)

// ═══════════════════════════════════════════════════════════════════════════════
// STATE READER QUERIES
// ═══════════════════════════════════════════════════════════════════════════════

// OldestDueReminder returns the oldest unfired reminder due at or before
// now, or nil when none exists.
func (v *SubjectView) OldestDueReminder(ctx context.Context, now time.Time) (*types.Reminder, error) {
	row := v.store.db.QueryRowContext(ctx, `
		SELECT id, message, due_at, fired, fired_at, created_at
		FROM reminders
		WHERE subject = ? AND fired = 0 AND due_at <= ?
		ORDER BY due_at ASC
		LIMIT 1`, v.subject, now)

	var r types.Reminder
	var fired int
	var firedAt sql.NullTime
	err := row.Scan(&r.ID, &r.Message, &r.DueAt, &fired, &firedAt, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query due reminder: %w", err)
	}
	r.Fired = fired != 0
	if firedAt.Valid {
		r.FiredAt = &firedAt.Time
	}
	return &r, nil
}

// MarkReminderFired marks a reminder consumed.
func (v *SubjectView) MarkReminderFired(ctx context.Context, id string, firedAt time.Time) error {
	_, err := v.store.db.ExecContext(ctx, `
		UPDATE reminders SET fired = 1, fired_at = ?
		WHERE subject = ? AND id = ?`, firedAt, v.subject, id)
	if err != nil {
		return fmt.Errorf("mark reminder fired: %w", err)
	}
	return nil
}

// OldestStaleDebt returns the oldest unresolved owed-to-me debt created at
// or before cutoff, or nil.
func (v *SubjectView) OldestStaleDebt(ctx context.Context, cutoff time.Time) (*types.Debt, error) {
	row := v.store.db.QueryRowContext(ctx, `
		SELECT id, person, amount, direction, resolved, created_at
		FROM debts
		WHERE subject = ? AND resolved = 0 AND direction = ? AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT 1`, v.subject, types.DebtOwedToMe, cutoff)

	d, err := scanDebt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query stale debt: %w", err)
	}
	return d, nil
}

// OutstandingDebt sums unresolved owed-to-me debts for a person.
func (v *SubjectView) OutstandingDebt(ctx context.Context, person string) (float64, error) {
	var total float64
	err := v.store.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM debts
		WHERE subject = ? AND resolved = 0 AND direction = ? AND person = ?`,
		v.subject, types.DebtOwedToMe, person).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum outstanding debt: %w", err)
	}
	return total, nil
}

// ListOpenDebts returns all unresolved owed-to-me debts, largest first.
func (v *SubjectView) ListOpenDebts(ctx context.Context) ([]types.Debt, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, person, amount, direction, resolved, created_at
		FROM debts
		WHERE subject = ? AND resolved = 0 AND direction = ?
		ORDER BY amount DESC`, v.subject, types.DebtOwedToMe)
	if err != nil {
		return nil, fmt.Errorf("list open debts: %w", err)
	}
	defer rows.Close()

	var debts []types.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan debt: %w", err)
		}
		debts = append(debts, *d)
	}
	return debts, rows.Err()
}

// CountJobsWaiting counts jobs stuck waiting on parts.
func (v *SubjectView) CountJobsWaiting(ctx context.Context) (int, error) {
	return v.countJobs(ctx, `status = ?`, types.JobWaitingParts)
}

// CountOpenJobs counts jobs not yet completed or delivered.
func (v *SubjectView) CountOpenJobs(ctx context.Context) (int, error) {
	return v.countJobs(ctx, `status IN (?, ?, ?)`, types.JobIntake, types.JobInProgress, types.JobWaitingParts)
}

func (v *SubjectView) countJobs(ctx context.Context, where string, args ...any) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM jobs WHERE subject = ? AND ` + where
	err := v.store.db.QueryRowContext(ctx, query, append([]any{v.subject}, args...)...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

// OldestUnclaimedJob returns the oldest completed-but-unclaimed job whose
// completion is at or before cutoff, or nil.
func (v *SubjectView) OldestUnclaimedJob(ctx context.Context, cutoff time.Time) (*types.Job, error) {
	row := v.store.db.QueryRowContext(ctx, `
		SELECT id, customer, device, status, claimed, created_at, completed_at
		FROM jobs
		WHERE subject = ? AND status = ? AND claimed = 0 AND completed_at <= ?
		ORDER BY completed_at ASC
		LIMIT 1`, v.subject, types.JobCompleted, cutoff)

	var j types.Job
	var device sql.NullString
	var claimed int
	var completedAt sql.NullTime
	err := row.Scan(&j.ID, &j.Customer, &device, &j.Status, &claimed, &j.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query unclaimed job: %w", err)
	}
	j.Device = device.String
	j.Claimed = claimed != 0
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return &j, nil
}

// RecentEvents returns up to limit events, newest first.
func (v *SubjectView) RecentEvents(ctx context.Context, limit int) ([]types.BusinessEvent, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, kind, counterparty, category, amount, occurred_at
		FROM events
		WHERE subject = ?
		ORDER BY occurred_at DESC
		LIMIT ?`, v.subject, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var events []types.BusinessEvent
	for rows.Next() {
		var ev types.BusinessEvent
		var counterparty, category sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Kind, &counterparty, &category, &ev.Amount, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Counterparty = counterparty.String
		ev.Category = category.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// TodayInflow sums payment events at or after dayStart.
func (v *SubjectView) TodayInflow(ctx context.Context, dayStart time.Time) (float64, error) {
	var total float64
	err := v.store.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM events
		WHERE subject = ? AND kind = ? AND occurred_at >= ?`,
		v.subject, types.EventPaymentReceived, dayStart).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum today inflow: %w", err)
	}
	return total, nil
}

// IssueCountsByCounterparty counts issue events of the given category at or
// after since, grouped by counterparty.
func (v *SubjectView) IssueCountsByCounterparty(ctx context.Context, category string, since time.Time) (map[string]int, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT counterparty, COUNT(*)
		FROM events
		WHERE subject = ? AND kind = ? AND category = ? AND occurred_at >= ?
		  AND counterparty IS NOT NULL AND counterparty != ''
		GROUP BY counterparty`, v.subject, types.EventIssue, category, since)
	if err != nil {
		return nil, fmt.Errorf("group issue events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan issue count: %w", err)
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

// HasPendingReminder reports whether any unfired reminder exists.
func (v *SubjectView) HasPendingReminder(ctx context.Context) (bool, error) {
	return v.exists(ctx, `SELECT 1 FROM reminders WHERE subject = ? AND fired = 0 LIMIT 1`)
}

// HasActiveJob reports whether any intake or in-progress job exists.
func (v *SubjectView) HasActiveJob(ctx context.Context) (bool, error) {
	return v.exists(ctx, `SELECT 1 FROM jobs WHERE subject = ? AND status IN ('intake', 'in_progress') LIMIT 1`)
}

func (v *SubjectView) exists(ctx context.Context, query string) (bool, error) {
	var one int
	err := v.store.db.QueryRowContext(ctx, query, v.subject).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("existence probe: %w", err)
	}
	return true, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// WRITES
// ═══════════════════════════════════════════════════════════════════════════════

// CreateReminder inserts a reminder. A missing ID is generated.
func (v *SubjectView) CreateReminder(ctx context.Context, r *types.Reminder) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := v.store.db.ExecContext(ctx, `
		INSERT INTO reminders (id, subject, message, due_at, fired, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		r.ID, v.subject, r.Message, r.DueAt, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// CreateDebt inserts a debt record.
func (v *SubjectView) CreateDebt(ctx context.Context, d *types.Debt) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	_, err := v.store.db.ExecContext(ctx, `
		INSERT INTO debts (id, subject, person, amount, direction, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, v.subject, d.Person, d.Amount, d.Direction, boolToInt(d.Resolved), d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert debt: %w", err)
	}
	return nil
}

// CreateJob inserts a job record.
func (v *SubjectView) CreateJob(ctx context.Context, j *types.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	var completedAt any
	if j.CompletedAt != nil {
		completedAt = *j.CompletedAt
	}
	_, err := v.store.db.ExecContext(ctx, `
		INSERT INTO jobs (id, subject, customer, device, status, claimed, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, v.subject, j.Customer, nullString(j.Device), j.Status, boolToInt(j.Claimed), j.CreatedAt, completedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// RecordEvent appends a business event.
func (v *SubjectView) RecordEvent(ctx context.Context, ev *types.BusinessEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	_, err := v.store.db.ExecContext(ctx, `
		INSERT INTO events (id, subject, kind, counterparty, category, amount, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, v.subject, ev.Kind, nullString(ev.Counterparty), nullString(ev.Category), ev.Amount, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// AUDIT LOG
// ═══════════════════════════════════════════════════════════════════════════════

// AuditEntry is one persisted record of a delivered interruption.
type AuditEntry struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Trigger   string    `json:"trigger"`
	Priority  string    `json:"priority"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveAudit appends an audit entry.
func (v *SubjectView) SaveAudit(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := v.store.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, subject, trigger_kind, priority, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, v.subject, entry.Trigger, entry.Priority, entry.Message, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// RecentAudit returns up to limit audit entries, newest first.
func (v *SubjectView) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := v.store.db.QueryContext(ctx, `
		SELECT id, subject, trigger_kind, priority, message, created_at
		FROM audit_log
		WHERE subject = ?
		ORDER BY created_at DESC
		LIMIT ?`, v.subject, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Subject, &e.Trigger, &e.Priority, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDebt(row rowScanner) (*types.Debt, error) {
	var d types.Debt
	var resolved int
	if err := row.Scan(&d.ID, &d.Person, &d.Amount, &d.Direction, &resolved, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Resolved = resolved != 0
	return &d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
