package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the tunable thresholds for the trigger set and the cooldown
// policy. Zero values are replaced by defaults at construction, except for
// CloseoutHour and QuietProbability, where zero is meaningful (midnight
// closeout, disabled quiet-day draw) and a negative value means unset.
type Config struct {
	// CooldownWindow is how long a fired interruption id stays suppressed.
	CooldownWindow time.Duration `json:"cooldown_window" yaml:"cooldown_window" mapstructure:"cooldown_window"`

	// TriggerTimeout bounds each predicate's data reads. A timed-out
	// trigger is "no signal", never a failed cycle.
	TriggerTimeout time.Duration `json:"trigger_timeout" yaml:"trigger_timeout" mapstructure:"trigger_timeout"`

	// DebtAge is how old an unresolved owed-to-me debt must be before the
	// aging-debt trigger cares.
	DebtAge time.Duration `json:"debt_age" yaml:"debt_age" mapstructure:"debt_age"`

	// UnclaimedAge is how long a completed job may sit unclaimed.
	UnclaimedAge time.Duration `json:"unclaimed_age" yaml:"unclaimed_age" mapstructure:"unclaimed_age"`

	// IssueWindow is the trailing window for the repeat-issues trigger.
	IssueWindow time.Duration `json:"issue_window" yaml:"issue_window" mapstructure:"issue_window"`

	// IssueCategory is the issue-event category the repeat-issues trigger
	// counts.
	IssueCategory string `json:"issue_category" yaml:"issue_category" mapstructure:"issue_category"`

	// IssueThreshold is the per-counterparty issue count that fires.
	IssueThreshold int `json:"issue_threshold" yaml:"issue_threshold" mapstructure:"issue_threshold"`

	// BlockedJobsThreshold is the waiting-on-parts count that fires.
	BlockedJobsThreshold int `json:"blocked_jobs_threshold" yaml:"blocked_jobs_threshold" mapstructure:"blocked_jobs_threshold"`

	// UnsafeAmountThreshold is the dollar amount above which an
	// unconfirmed pending action is blocked.
	UnsafeAmountThreshold float64 `json:"unsafe_amount_threshold" yaml:"unsafe_amount_threshold" mapstructure:"unsafe_amount_threshold"`

	// CloseoutHour is the local hour (0-23) of the end-of-day closeout.
	CloseoutHour int `json:"closeout_hour" yaml:"closeout_hour" mapstructure:"closeout_hour"`

	// QuietStartHour and QuietEndHour bound the daytime window in which
	// the quiet-day check may run at all.
	QuietStartHour int `json:"quiet_start_hour" yaml:"quiet_start_hour" mapstructure:"quiet_start_hour"`
	QuietEndHour   int `json:"quiet_end_hour" yaml:"quiet_end_hour" mapstructure:"quiet_end_hour"`

	// QuietProbability is the per-cycle chance of the idle check-in.
	QuietProbability float64 `json:"quiet_probability" yaml:"quiet_probability" mapstructure:"quiet_probability"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		CooldownWindow:        time.Hour,
		TriggerTimeout:        5 * time.Second,
		DebtAge:               3 * 24 * time.Hour,
		UnclaimedAge:          4 * 24 * time.Hour,
		IssueWindow:           30 * 24 * time.Hour,
		IssueCategory:         "rework",
		IssueThreshold:        3,
		BlockedJobsThreshold:  2,
		UnsafeAmountThreshold: 500,
		CloseoutHour:          18,
		QuietStartHour:        10,
		QuietEndHour:          16,
		QuietProbability:      0.10,
	}
}

// Engine evaluates the ten triggers in priority order against one subject's
// business state and decides, at most once per cycle, to interrupt.
//
// The cooldown ledger and active set are owned exclusively by the engine;
// Evaluate serializes on an internal mutex because the ledger update is a
// read-then-write.
type Engine struct {
	mu sync.Mutex

	subject  string
	reader   StateReader
	cfg      Config
	triggers []trigger
	ledger   *cooldownLedger
	active   *activeSet

	clock func() time.Time
	rng   *rand.Rand
	log   zerolog.Logger
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock injects the time source. Tests use this to simulate cooldown
// expiry and the hour-gated triggers.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithRand injects the random source for the quiet-day draw.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an engine for one subject. Each subject gets its own cooldown
// ledger and active set; use a Registry to guarantee one engine per subject.
func New(subject string, reader StateReader, cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.CooldownWindow <= 0 {
		cfg.CooldownWindow = def.CooldownWindow
	}
	if cfg.TriggerTimeout <= 0 {
		cfg.TriggerTimeout = def.TriggerTimeout
	}
	if cfg.DebtAge <= 0 {
		cfg.DebtAge = def.DebtAge
	}
	if cfg.UnclaimedAge <= 0 {
		cfg.UnclaimedAge = def.UnclaimedAge
	}
	if cfg.IssueWindow <= 0 {
		cfg.IssueWindow = def.IssueWindow
	}
	if cfg.IssueCategory == "" {
		cfg.IssueCategory = def.IssueCategory
	}
	if cfg.IssueThreshold <= 0 {
		cfg.IssueThreshold = def.IssueThreshold
	}
	if cfg.BlockedJobsThreshold <= 0 {
		cfg.BlockedJobsThreshold = def.BlockedJobsThreshold
	}
	if cfg.UnsafeAmountThreshold <= 0 {
		cfg.UnsafeAmountThreshold = def.UnsafeAmountThreshold
	}
	if cfg.CloseoutHour < 0 {
		cfg.CloseoutHour = def.CloseoutHour
	}
	if cfg.QuietEndHour <= 0 {
		cfg.QuietStartHour = def.QuietStartHour
		cfg.QuietEndHour = def.QuietEndHour
	}
	if cfg.QuietProbability < 0 {
		cfg.QuietProbability = def.QuietProbability
	}

	e := &Engine{
		subject:  subject,
		reader:   reader,
		cfg:      cfg,
		triggers: defaultTriggers(),
		ledger:   newCooldownLedger(cfg.CooldownWindow),
		active:   newActiveSet(),
		clock:    time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With().Str("subject", subject).Logger()
	return e
}

// Subject returns the subject this engine is scoped to.
func (e *Engine) Subject() string { return e.subject }

// Evaluate runs one cycle: each trigger in order, first non-suppressed
// match wins. It returns at most one interruption, or nil for silence.
//
// It never returns an error: a failing or timed-out trigger degrades to
// "no signal", and an unavailable reader degrades to immediate silence.
// Callers running an inline safety check should act only on a critical
// UNSAFE_ACTION result and ignore everything else.
func (e *Engine) Evaluate(ctx context.Context, ec Context) *Interruption {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.reader == nil {
		return nil
	}

	now := e.clock()
	in := inputs{reader: e.reader, ec: ec, now: now, cfg: e.cfg, rng: e.rng}

	for _, t := range e.triggers {
		candidate, err := e.runTrigger(ctx, t, in)
		if err != nil {
			e.log.Warn().Err(err).Str("trigger", string(t.kind)).Msg("trigger check failed, treating as no signal")
			continue
		}
		if candidate == nil {
			continue
		}

		// A cooled-down signal does not block a fresh lower-priority one;
		// keep walking the list.
		if e.ledger.isSuppressed(candidate.ID, now) {
			e.log.Debug().Str("id", candidate.ID).Str("trigger", string(t.kind)).Msg("candidate suppressed by cooldown")
			continue
		}

		candidate.Trigger = t.kind
		candidate.Timestamp = now
		e.ledger.recordFired(candidate.ID, now)
		e.active.add(candidate)

		e.log.Info().
			Str("id", candidate.ID).
			Str("trigger", string(t.kind)).
			Str("priority", string(candidate.Priority)).
			Msg("interruption selected")
		return candidate
	}

	return nil
}

// runTrigger invokes one predicate under the per-trigger timeout, absorbing
// panics into "no signal" so no trigger failure can escape Evaluate.
func (e *Engine) runTrigger(ctx context.Context, t trigger, in inputs) (candidate *Interruption, err error) {
	tctx, cancel := context.WithTimeout(ctx, e.cfg.TriggerTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("trigger", string(t.kind)).Msg("trigger panicked")
			candidate, err = nil, nil
		}
	}()
	return t.check(tctx, in)
}

// MarkHandled removes an interruption from the active set. It does not
// touch the cooldown ledger: the condition stays suppressed until the
// window lapses, and re-fires after it regardless of handled state.
func (e *Engine) MarkHandled(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active.remove(id)
}

// ActiveIDs returns the ids of delivered-but-unacknowledged interruptions.
func (e *Engine) ActiveIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active.ids()
}

// LedgerSize reports how many ids the cooldown ledger is tracking. Entries
// are never pruned, which trades memory growth for simplicity.
func (e *Engine) LedgerSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.size()
}
