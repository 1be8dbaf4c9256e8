// Package delivery turns engine decisions into output: it subscribes to the
// scheduler, runs evaluation cycles, renders the chosen interruption
// through a speech channel, publishes audit events, and executes the
// interruption's follow-up action.
package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/headsup/internal/bus"
	"github.com/normanking/headsup/internal/engine"
	"github.com/normanking/headsup/internal/scheduler"
	"github.com/normanking/headsup/internal/speech"
)

// State is the controller's position in its per-cycle state machine.
type State string

const (
	StateIdle       State = "idle"
	StateEvaluating State = "evaluating"
	StateDelivering State = "delivering"
)

// ActionFunc performs an interruption's follow-up side effect.
type ActionFunc func(ctx context.Context, in *engine.Interruption) error

// Controller drives the evaluate→deliver cycle for one engine instance.
//
// Output dispatch is fire-and-forget: the speaker runs on its own
// goroutine so a slow channel never blocks the next scheduled tick, and a
// failed delivery is logged but not retried (the cooldown entry and audit
// record stand).
type Controller struct {
	mu    sync.Mutex
	state State

	eng     *engine.Engine
	reader  engine.StateReader
	speaker speech.Speaker
	events  *bus.Bus
	sched   *scheduler.Scheduler
	actions map[engine.ActionKind]ActionFunc
	clock   func() time.Time
	log     zerolog.Logger
	wg      sync.WaitGroup

	// lastDeliveredID guards against delivering the same interruption in
	// back-to-back cycles. This is deliberately weaker than the engine's
	// cooldown and kept as its own layer.
	lastDeliveredID string
}

// Config holds controller construction parameters.
type Config struct {
	// Interval is the scheduler period.
	Interval time.Duration
}

// New wires a controller around an engine. The reader is used for live
// summary computation and the built-in mark-reminder-fired action.
func New(eng *engine.Engine, reader engine.StateReader, speaker speech.Speaker, events *bus.Bus, cfg Config, log zerolog.Logger) *Controller {
	c := &Controller{
		state:   StateIdle,
		eng:     eng,
		reader:  reader,
		speaker: speaker,
		events:  events,
		clock:   time.Now,
		log:     log,
	}
	c.actions = map[engine.ActionKind]ActionFunc{
		engine.ActionMarkReminderFired: c.markReminderFired,
	}
	c.sched = scheduler.New(cfg.Interval, func(ctx context.Context) {
		c.Tick(ctx, engine.Context{})
	}, log)
	return c
}

// RegisterAction adds or replaces a follow-up action handler.
func (c *Controller) RegisterAction(kind engine.ActionKind, fn ActionFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions[kind] = fn
}

// Start begins periodic evaluation.
func (c *Controller) Start(ctx context.Context) error {
	return c.sched.Start(ctx)
}

// Stop halts the scheduler and waits for in-flight deliveries.
func (c *Controller) Stop() {
	c.sched.Stop()
	c.wg.Wait()
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MarkHandled acknowledges a delivered interruption.
func (c *Controller) MarkHandled(id string) {
	c.eng.MarkHandled(id)

	ev := bus.NewEvent(bus.EventHandled)
	ev.Subject = c.eng.Subject()
	ev.InterruptionID = id
	c.publish(ev)
}

// Tick runs one evaluation cycle and returns the delivered interruption,
// or nil when the cycle stayed silent. The scheduler calls it with an
// empty context; inline callers (command processing, safety checks) pass a
// populated one.
func (c *Controller) Tick(ctx context.Context, ec engine.Context) *engine.Interruption {
	c.setState(StateEvaluating)

	tick := bus.NewEvent(bus.EventTick)
	tick.Subject = c.eng.Subject()
	c.publish(tick)

	result := c.eng.Evaluate(ctx, ec)
	if result == nil {
		c.setState(StateIdle)
		return nil
	}

	c.mu.Lock()
	if result.ID == c.lastDeliveredID {
		c.mu.Unlock()
		c.log.Debug().Str("id", result.ID).Msg("skipping back-to-back duplicate delivery")
		c.setState(StateIdle)
		return nil
	}
	c.lastDeliveredID = result.ID
	c.state = StateDelivering
	c.mu.Unlock()

	message := result.Message
	if result.SummaryType != "" {
		message = c.composeSummary(ctx, result.SummaryType)
	}

	ev := bus.NewEvent(bus.EventDelivered)
	ev.Subject = c.eng.Subject()
	ev.InterruptionID = result.ID
	ev.Trigger = string(result.Trigger)
	ev.Priority = string(result.Priority)
	ev.Message = message
	c.publish(ev)

	c.deliver(result, message)

	if result.Action != "" {
		c.runAction(ctx, result)
	}

	c.setState(StateIdle)
	return result
}

// deliver hands the utterance to the speaker without blocking the cycle.
func (c *Controller) deliver(result *engine.Interruption, message string) {
	u := speech.NewUtterance(message, result)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.speaker.Say(context.Background(), u); err != nil {
			c.log.Error().Err(err).
				Str("id", result.ID).
				Str("channel", c.speaker.Name()).
				Msg("delivery failed")

			ev := bus.NewEvent(bus.EventDeliveryFailed)
			ev.Subject = c.eng.Subject()
			ev.InterruptionID = result.ID
			ev.Trigger = string(result.Trigger)
			ev.Error = err.Error()
			c.publish(ev)
		}
	}()
}

func (c *Controller) runAction(ctx context.Context, result *engine.Interruption) {
	c.mu.Lock()
	fn, ok := c.actions[result.Action]
	c.mu.Unlock()
	if !ok {
		c.log.Warn().Str("action", string(result.Action)).Msg("no handler registered for action")
		return
	}
	if err := fn(ctx, result); err != nil {
		c.log.Error().Err(err).Str("action", string(result.Action)).Msg("follow-up action failed")
	}
}

// markReminderFired is the built-in handler for the reminder trigger's
// follow-up: the payload carries the reminder that came due.
func (c *Controller) markReminderFired(ctx context.Context, in *engine.Interruption) error {
	payload, ok := in.Payload.(engine.ReminderPayload)
	if !ok {
		c.log.Warn().Str("id", in.ID).Msg("reminder action without reminder payload")
		return nil
	}
	return c.reader.MarkReminderFired(ctx, payload.Reminder.ID, c.clock())
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) publish(ev bus.Event) {
	if c.events == nil {
		return
	}
	if err := c.events.Publish(ev); err != nil {
		c.log.Warn().Err(err).Msg("event publish failed")
	}
}
