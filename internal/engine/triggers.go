package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/normanking/headsup/pkg/types"
)

// inputs is everything a trigger predicate may look at for one evaluation.
// Predicates are pure with respect to it: same inputs, same signal.
type inputs struct {
	reader StateReader
	ec     Context
	now    time.Time
	cfg    Config
	rng    *rand.Rand
}

// triggerFunc evaluates one business condition. A nil interruption means
// the condition does not currently hold. Errors are treated by the engine
// as "no signal", never propagated.
type triggerFunc func(ctx context.Context, in inputs) (*Interruption, error)

type trigger struct {
	kind  TriggerKind
	check triggerFunc
}

// defaultTriggers returns the ten predicates in evaluation order. The order
// IS the priority system: first non-suppressed match wins and later
// triggers are not evaluated at all.
func defaultTriggers() []trigger {
	return []trigger{
		{TriggerUnsafeAction, checkUnsafeAction},
		{TriggerOverdueReminder, checkOverdueReminder},
		{TriggerAgingDebt, checkAgingDebt},
		{TriggerBlockedJobs, checkBlockedJobs},
		{TriggerUnclaimedJob, checkUnclaimedJob},
		{TriggerMissedContact, checkMissedContactDebt},
		{TriggerDailyCloseout, checkDailyCloseout},
		{TriggerRepeatIssues, checkRepeatIssues},
		{TriggerSummary, checkActionableSummary},
		{TriggerQuietDay, checkQuietDay},
	}
}

// checkUnsafeAction fires when the cycle carries a pending action that is
// under-specified or risky. It reads no state, so it is safe to run inline
// during command processing, not only on the timer.
func checkUnsafeAction(_ context.Context, in inputs) (*Interruption, error) {
	a := in.ec.PendingAction
	if a == nil {
		return nil, nil
	}

	var reason, message string
	switch {
	case a.SubjectAmbiguous:
		reason = "ambiguous_subject"
		message = fmt.Sprintf("Hold on — I'm not sure who you mean by %q. Can you be more specific before I %s?", a.Subject, strings.ReplaceAll(a.Kind, "_", " "))
	case a.Amount > in.cfg.UnsafeAmountThreshold && !a.Confirmed:
		reason = "unconfirmed_amount"
		message = fmt.Sprintf("That's $%.0f — bigger than usual. Just to be safe: should I go ahead?", a.Amount)
	case a.Kind == types.ActionSendMessage && a.Recipient == "":
		reason = "missing_recipient"
		message = "I don't have a number for that message. Who should it go to?"
	default:
		return nil, nil
	}

	return &Interruption{
		ID:              fmt.Sprintf("unsafe_action:%s:%s:%s", a.Kind, a.Subject, reason),
		Trigger:         TriggerUnsafeAction,
		Message:         message,
		Priority:        PriorityCritical,
		ExpectsResponse: true,
		Synchronous:     true,
		Blocking:        true,
		Payload:         UnsafeActionPayload{Action: *a, Reason: reason},
	}, nil
}

// checkOverdueReminder surfaces the single oldest unfired reminder that is
// due. Strictly overdue and due-right-now differ only in wording and
// priority, and delivery marks the reminder consumed.
func checkOverdueReminder(ctx context.Context, in inputs) (*Interruption, error) {
	r, err := in.reader.OldestDueReminder(ctx, in.now)
	if err != nil || r == nil {
		return nil, err
	}

	priority := PriorityMedium
	message := fmt.Sprintf("Heads up — it's time: %s.", r.Message)
	if r.DueAt.Before(in.now) {
		priority = PriorityHigh
		message = fmt.Sprintf("You asked me to remind you: %s. That was due %s.", r.Message, humanizeAge(in.now.Sub(r.DueAt)))
	}

	return &Interruption{
		ID:       "reminder:" + r.ID,
		Trigger:  TriggerOverdueReminder,
		Message:  message,
		Priority: priority,
		Action:   ActionMarkReminderFired,
		Payload:  ReminderPayload{Reminder: *r},
	}, nil
}

// checkAgingDebt surfaces the oldest owed-to-me debt past the staleness
// cutoff and offers to nudge the debtor.
func checkAgingDebt(ctx context.Context, in inputs) (*Interruption, error) {
	d, err := in.reader.OldestStaleDebt(ctx, in.now.Add(-in.cfg.DebtAge))
	if err != nil || d == nil {
		return nil, err
	}

	days := int(in.now.Sub(d.CreatedAt).Hours() / 24)
	return &Interruption{
		ID:              "debt:" + d.ID,
		Trigger:         TriggerAgingDebt,
		Message:         fmt.Sprintf("%s still owes you $%.0f — it's been %d days. Want me to send a reminder?", d.Person, d.Amount, days),
		Priority:        PriorityMedium,
		ExpectsResponse: true,
		Payload:         DebtPayload{Debt: *d},
	}, nil
}

// checkBlockedJobs fires once two or more jobs are stuck waiting on parts.
// A single stuck job is not worth interrupting for.
func checkBlockedJobs(ctx context.Context, in inputs) (*Interruption, error) {
	n, err := in.reader.CountJobsWaiting(ctx)
	if err != nil || n < in.cfg.BlockedJobsThreshold {
		return nil, err
	}

	return &Interruption{
		ID:       fmt.Sprintf("blocked_jobs:%d", n),
		Trigger:  TriggerBlockedJobs,
		Message:  fmt.Sprintf("%d repairs are stuck waiting on parts. Might be worth chasing the supplier.", n),
		Priority: PriorityHigh,
		Payload:  BlockedJobsPayload{Count: n},
	}, nil
}

// checkUnclaimedJob surfaces the oldest finished job the customer has not
// picked up, past the patience cutoff.
func checkUnclaimedJob(ctx context.Context, in inputs) (*Interruption, error) {
	j, err := in.reader.OldestUnclaimedJob(ctx, in.now.Add(-in.cfg.UnclaimedAge))
	if err != nil || j == nil {
		return nil, err
	}

	days := 0
	if j.CompletedAt != nil {
		days = int(in.now.Sub(*j.CompletedAt).Hours() / 24)
	}
	return &Interruption{
		ID:              "unclaimed_job:" + j.ID,
		Trigger:         TriggerUnclaimedJob,
		Message:         fmt.Sprintf("%s's %s has been ready for %d days and nobody picked it up. Should I get in touch?", j.Customer, deviceOrJob(j), days),
		Priority:        PriorityHigh,
		ExpectsResponse: true,
		Payload:         JobPayload{Job: *j},
	}, nil
}

// checkMissedContactDebt scans the five most recent context events for a
// missed call from someone who still owes money, and suggests combining the
// call-back with a payment nudge.
func checkMissedContactDebt(ctx context.Context, in inputs) (*Interruption, error) {
	events := in.ec.RecentEvents
	if len(events) > 5 {
		events = events[:5]
	}

	for _, ev := range events {
		if ev.Kind != types.EventMissedCall || ev.Counterparty == "" {
			continue
		}
		owed, err := in.reader.OutstandingDebt(ctx, ev.Counterparty)
		if err != nil {
			return nil, err
		}
		if owed <= 0 {
			continue
		}
		return &Interruption{
			ID:              "follow_up:" + ev.Counterparty,
			Trigger:         TriggerMissedContact,
			Message:         fmt.Sprintf("You missed a call from %s — who also owes you $%.0f. Good moment to call back and mention it?", ev.Counterparty, owed),
			Priority:        PriorityMedium,
			ExpectsResponse: true,
			Payload:         FollowUpPayload{Event: ev, AmountOwed: owed},
		}, nil
	}
	return nil, nil
}

// checkDailyCloseout aggregates today's take and open work into one summary
// at the closeout hour (or on explicit request). The id is derived from the
// calendar date, so the cooldown ledger makes it fire at most once per day
// even while the hour condition stays true.
func checkDailyCloseout(ctx context.Context, in inputs) (*Interruption, error) {
	if !in.ec.RequestCloseout && in.now.Hour() != in.cfg.CloseoutHour {
		return nil, nil
	}

	dayStart := time.Date(in.now.Year(), in.now.Month(), in.now.Day(), 0, 0, 0, 0, in.now.Location())
	inflow, err := in.reader.TodayInflow(ctx, dayStart)
	if err != nil {
		return nil, err
	}
	open, err := in.reader.CountOpenJobs(ctx)
	if err != nil {
		return nil, err
	}

	return &Interruption{
		ID:       "daily_closeout:" + in.now.Format("2006-01-02"),
		Trigger:  TriggerDailyCloseout,
		Message:  fmt.Sprintf("Wrapping up: $%.0f came in today, and %d jobs are still open for tomorrow.", inflow, open),
		Priority: PriorityMedium,
		Payload:  CloseoutPayload{Inflow: inflow, OpenJobs: open},
	}, nil
}

// checkRepeatIssues fires when a single counterparty accounts for three or
// more issue events in the trailing window. Ties break alphabetically so
// the pick is deterministic.
func checkRepeatIssues(ctx context.Context, in inputs) (*Interruption, error) {
	counts, err := in.reader.IssueCountsByCounterparty(ctx, in.cfg.IssueCategory, in.now.Add(-in.cfg.IssueWindow))
	if err != nil || len(counts) == 0 {
		return nil, err
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	worst, worstCount := "", 0
	for _, name := range names {
		if counts[name] > worstCount {
			worst, worstCount = name, counts[name]
		}
	}
	if worstCount < in.cfg.IssueThreshold {
		return nil, nil
	}

	return &Interruption{
		ID:       "repeat_issues:" + worst,
		Trigger:  TriggerRepeatIssues,
		Message:  fmt.Sprintf("%s has had %d problems in the last month. That pattern is costing you — worth a closer look.", worst, worstCount),
		Priority: PriorityMedium,
		Payload:  IssuePayload{Counterparty: worst, Count: worstCount},
	}, nil
}

// summaryCommands maps canonical owner phrasings to the live aggregate the
// delivery layer should compute. Matching is exact after normalization; the
// fuzzy language understanding lives outside this engine.
var summaryCommands = map[string]SummaryType{
	"how much did i make":       SummaryEarningsToday,
	"how much did i make today": SummaryEarningsToday,
	"what did i earn today":     SummaryEarningsToday,
	"who owes me money":         SummaryMoneyOwed,
	"who owes me":               SummaryMoneyOwed,
}

// checkActionableSummary fires only on an exact canonical phrasing. It
// carries no prewritten message: SummaryType plus Synchronous tell the
// delivery layer to compute and speak a live answer.
func checkActionableSummary(_ context.Context, in inputs) (*Interruption, error) {
	st, ok := summaryCommands[normalizeCommand(in.ec.Command)]
	if !ok {
		return nil, nil
	}

	return &Interruption{
		ID:          fmt.Sprintf("summary:%s:%s", st, in.now.Format("2006-01-02")),
		Trigger:     TriggerSummary,
		Priority:    PriorityImmediate,
		SummaryType: st,
		Synchronous: true,
	}, nil
}

// checkQuietDay offers an idle check-in, gated to the daytime window and a
// low-probability draw so quiet days stay mostly quiet.
func checkQuietDay(ctx context.Context, in inputs) (*Interruption, error) {
	hour := in.now.Hour()
	if hour < in.cfg.QuietStartHour || hour >= in.cfg.QuietEndHour {
		return nil, nil
	}

	pending, err := in.reader.HasPendingReminder(ctx)
	if err != nil || pending {
		return nil, err
	}
	active, err := in.reader.HasActiveJob(ctx)
	if err != nil || active {
		return nil, err
	}

	if in.rng.Float64() >= in.cfg.QuietProbability {
		return nil, nil
	}

	return &Interruption{
		ID:              "quiet_day:" + in.now.Format("2006-01-02"),
		Trigger:         TriggerQuietDay,
		Message:         "Quiet one today — nothing on the board. Anything you want me to chase up?",
		Priority:        PriorityLow,
		ExpectsResponse: true,
	}, nil
}

// normalizeCommand lowercases and strips surrounding whitespace and
// trailing punctuation so "How much did I make?" matches its canonical
// phrasing.
func normalizeCommand(cmd string) string {
	cmd = strings.ToLower(strings.TrimSpace(cmd))
	return strings.TrimRight(cmd, "?!. ")
}

// humanizeAge renders a duration in the coarse units a spoken reminder
// wants ("2 hours ago", "3 days ago").
func humanizeAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		n := int(d.Minutes())
		return fmt.Sprintf("%d %s ago", n, plural(n, "minute"))
	case d < 24*time.Hour:
		n := int(d.Hours())
		return fmt.Sprintf("%d %s ago", n, plural(n, "hour"))
	default:
		n := int(d.Hours() / 24)
		return fmt.Sprintf("%d %s ago", n, plural(n, "day"))
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

func deviceOrJob(j *types.Job) string {
	if j.Device != "" {
		return j.Device
	}
	return "job"
}
