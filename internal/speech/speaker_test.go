package speech

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/headsup/internal/engine"
)

func TestToneFor(t *testing.T) {
	rate, pitch, volume, interrupt := ToneFor(engine.PriorityCritical)
	assert.Equal(t, 0.85, rate, "critical slows down")
	assert.Equal(t, 0.9, pitch)
	assert.Equal(t, 1.0, volume)
	assert.True(t, interrupt, "critical barges in")

	_, _, volume, interrupt = ToneFor(engine.PriorityLow)
	assert.Equal(t, 0.7, volume, "low priority stays quiet")
	assert.False(t, interrupt)

	_, _, _, interrupt = ToneFor(engine.PriorityImmediate)
	assert.True(t, interrupt, "summaries answer right away")

	_, _, volume, _ = ToneFor(engine.PriorityMedium)
	assert.Equal(t, 0.9, volume)
}

func TestNewUtteranceCarriesTone(t *testing.T) {
	in := &engine.Interruption{
		ID:              "debt:d1",
		Priority:        engine.PriorityMedium,
		ExpectsResponse: true,
	}
	u := NewUtterance("Carlos still owes you $150.", in)

	assert.Equal(t, "Carlos still owes you $150.", u.Text)
	assert.Equal(t, engine.PriorityMedium, u.Priority)
	assert.True(t, u.ExpectsResponse)
	assert.False(t, u.Interrupt)
}

func TestConsoleSpeakerWritesPriorityBadge(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSpeakerTo(&buf)
	assert.Equal(t, "console", s.Name())

	err := s.Say(context.Background(), Utterance{
		Text:     "2 repairs are stuck waiting on parts.",
		Priority: engine.PriorityHigh,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[high]")
	assert.Contains(t, out, "2 repairs are stuck waiting on parts.")
}
