package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/headsup/internal/bus"
	"github.com/normanking/headsup/internal/engine"
	"github.com/normanking/headsup/internal/speech"
	"github.com/normanking/headsup/pkg/types"
)

// stubReader implements engine.StateReader in-memory. The zero value reads
// as a business with nothing going on.
type stubReader struct {
	mu          sync.Mutex
	dueReminder *types.Reminder
	openDebts   []types.Debt
	inflow      float64
	firedID     string
}

func (r *stubReader) OldestDueReminder(ctx context.Context, now time.Time) (*types.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dueReminder, nil
}

func (r *stubReader) MarkReminderFired(ctx context.Context, id string, firedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firedID = id
	r.dueReminder = nil
	return nil
}

func (r *stubReader) OldestStaleDebt(ctx context.Context, cutoff time.Time) (*types.Debt, error) {
	return nil, nil
}

func (r *stubReader) OutstandingDebt(ctx context.Context, person string) (float64, error) {
	return 0, nil
}

func (r *stubReader) ListOpenDebts(ctx context.Context) ([]types.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openDebts, nil
}

func (r *stubReader) CountJobsWaiting(ctx context.Context) (int, error) { return 0, nil }
func (r *stubReader) CountOpenJobs(ctx context.Context) (int, error)    { return 0, nil }

func (r *stubReader) OldestUnclaimedJob(ctx context.Context, cutoff time.Time) (*types.Job, error) {
	return nil, nil
}

func (r *stubReader) RecentEvents(ctx context.Context, limit int) ([]types.BusinessEvent, error) {
	return nil, nil
}

func (r *stubReader) TodayInflow(ctx context.Context, dayStart time.Time) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflow, nil
}

func (r *stubReader) IssueCountsByCounterparty(ctx context.Context, category string, since time.Time) (map[string]int, error) {
	return nil, nil
}

func (r *stubReader) HasPendingReminder(ctx context.Context) (bool, error) { return false, nil }
func (r *stubReader) HasActiveJob(ctx context.Context) (bool, error)       { return false, nil }

func (r *stubReader) fired() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firedID
}

// chanSpeaker pushes every utterance onto a channel so tests can wait for
// the asynchronous delivery goroutine.
type chanSpeaker struct {
	said chan speech.Utterance
	err  error
}

func newChanSpeaker() *chanSpeaker {
	return &chanSpeaker{said: make(chan speech.Utterance, 8)}
}

func (s *chanSpeaker) Say(ctx context.Context, u speech.Utterance) error {
	s.said <- u
	return s.err
}

func (s *chanSpeaker) Name() string { return "test" }

func (s *chanSpeaker) wait(t *testing.T) speech.Utterance {
	t.Helper()
	select {
	case u := <-s.said:
		return u
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for utterance")
		return speech.Utterance{}
	}
}

func newTestController(t *testing.T, reader engine.StateReader, speaker speech.Speaker, events *bus.Bus, setNow *func(time.Time)) *Controller {
	t.Helper()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	if setNow != nil {
		*setNow = func(tm time.Time) { now = tm }
	}

	cfg := engine.DefaultConfig()
	cfg.CooldownWindow = time.Nanosecond
	eng := engine.New("shop-1", reader, cfg, engine.WithClock(clock))

	c := New(eng, reader, speaker, events, Config{Interval: time.Hour}, zerolog.Nop())
	t.Cleanup(c.Stop)
	return c
}

func TestTickSilentCycle(t *testing.T) {
	c := newTestController(t, &stubReader{}, newChanSpeaker(), nil, nil)

	assert.Nil(t, c.Tick(context.Background(), engine.Context{}))
	assert.Equal(t, StateIdle, c.State())
}

func TestTickDeliversReminderAndRunsAction(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	reader := &stubReader{
		dueReminder: &types.Reminder{ID: "r1", Message: "call supplier", DueAt: now.Add(-time.Hour)},
	}
	speaker := newChanSpeaker()
	events := bus.New()
	defer events.Close()

	delivered := make(chan bus.Event, 1)
	events.Subscribe(bus.EventDelivered, func(e bus.Event) { delivered <- e })

	c := newTestController(t, reader, speaker, events, nil)

	result := c.Tick(context.Background(), engine.Context{})
	require.NotNil(t, result)
	assert.Equal(t, engine.TriggerOverdueReminder, result.Trigger)

	u := speaker.wait(t)
	assert.Contains(t, u.Text, "call supplier")
	assert.Equal(t, engine.PriorityHigh, u.Priority)

	select {
	case ev := <-delivered:
		assert.Equal(t, "reminder:r1", ev.InterruptionID)
		assert.Equal(t, "shop-1", ev.Subject)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delivered event")
	}

	// The built-in follow-up marks the reminder consumed.
	assert.Eventually(t, func() bool {
		return reader.fired() == "r1"
	}, time.Second, 10*time.Millisecond)
}

func TestBackToBackDuplicateIsNotRedelivered(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	reader := &stubReader{
		dueReminder: &types.Reminder{ID: "r1", Message: "call supplier", DueAt: now.Add(-time.Hour)},
	}
	speaker := newChanSpeaker()

	var setNow func(time.Time)
	c := newTestController(t, reader, speaker, nil, &setNow)

	// Keep the reminder unfired so the engine keeps producing the same id.
	c.RegisterAction(engine.ActionMarkReminderFired, func(ctx context.Context, in *engine.Interruption) error {
		return nil
	})

	require.NotNil(t, c.Tick(context.Background(), engine.Context{}))
	speaker.wait(t)

	// The cooldown window is a nanosecond, so after a second the engine
	// re-selects the same id; the controller's own guard must drop it.
	setNow(now.Add(time.Second))
	assert.Nil(t, c.Tick(context.Background(), engine.Context{}))
	assert.Empty(t, speaker.said)
}

func TestSummaryIsComposedLive(t *testing.T) {
	reader := &stubReader{
		openDebts: []types.Debt{
			{Person: "Carlos", Amount: 150},
			{Person: "Marta", Amount: 50},
		},
	}
	speaker := newChanSpeaker()
	c := newTestController(t, reader, speaker, nil, nil)

	result := c.Tick(context.Background(), engine.Context{Command: "Who owes me money?"})
	require.NotNil(t, result)
	assert.Equal(t, engine.TriggerSummary, result.Trigger)

	u := speaker.wait(t)
	assert.Contains(t, u.Text, "$200")
	assert.Contains(t, u.Text, "Carlos $150")
}

func TestDeliveryFailurePublishesEvent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	reader := &stubReader{
		dueReminder: &types.Reminder{ID: "r1", Message: "call supplier", DueAt: now.Add(-time.Hour)},
	}
	speaker := newChanSpeaker()
	speaker.err = errors.New("socket gone")
	events := bus.New()
	defer events.Close()

	failed := make(chan bus.Event, 1)
	events.Subscribe(bus.EventDeliveryFailed, func(e bus.Event) { failed <- e })

	c := newTestController(t, reader, speaker, events, nil)

	require.NotNil(t, c.Tick(context.Background(), engine.Context{}))
	speaker.wait(t)

	select {
	case ev := <-failed:
		assert.Equal(t, "reminder:r1", ev.InterruptionID)
		assert.Equal(t, "socket gone", ev.Error)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for failure event")
	}
}

func TestRegisterActionOverridesBuiltin(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	reader := &stubReader{
		dueReminder: &types.Reminder{ID: "r1", Message: "call supplier", DueAt: now.Add(-time.Hour)},
	}
	speaker := newChanSpeaker()
	c := newTestController(t, reader, speaker, nil, nil)

	ran := make(chan string, 1)
	c.RegisterAction(engine.ActionMarkReminderFired, func(ctx context.Context, in *engine.Interruption) error {
		ran <- in.ID
		return nil
	})

	require.NotNil(t, c.Tick(context.Background(), engine.Context{}))
	speaker.wait(t)

	select {
	case id := <-ran:
		assert.Equal(t, "reminder:r1", id)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for custom action")
	}
	assert.Empty(t, reader.fired(), "built-in handler must not run once overridden")
}

func TestMarkHandledPublishesEvent(t *testing.T) {
	events := bus.New()
	defer events.Close()

	handled := make(chan bus.Event, 1)
	events.Subscribe(bus.EventHandled, func(e bus.Event) { handled <- e })

	c := newTestController(t, &stubReader{}, newChanSpeaker(), events, nil)
	c.MarkHandled("debt:d1")

	select {
	case ev := <-handled:
		assert.Equal(t, "debt:d1", ev.InterruptionID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handled event")
	}
}
