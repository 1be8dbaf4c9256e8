// Package speech renders interruptions through an output channel: the
// console for interactive use, or a websocket push endpoint feeding a
// downstream TTS/notification service. Tone parameters travel with each
// utterance so the channel can slow down for critical items and soften for
// low-priority ones.
package speech

import (
	"context"

	"github.com/normanking/headsup/internal/engine"
)

// Utterance is one rendered message plus the tone it should be delivered
// with.
type Utterance struct {
	Text     string          `json:"text"`
	Priority engine.Priority `json:"priority"`

	// Rate, Pitch and Volume are multipliers around 1.0.
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`

	// Interrupt forces any in-flight speech to stop first.
	Interrupt bool `json:"interrupt"`

	// ExpectsResponse tells the channel to keep listening after speaking.
	ExpectsResponse bool `json:"expects_response,omitempty"`
}

// Speaker is an output channel for utterances.
type Speaker interface {
	// Say delivers one utterance. Errors are logged by the caller and
	// never retried within the cycle.
	Say(ctx context.Context, u Utterance) error

	// Name identifies the channel in logs.
	Name() string
}

// ToneFor derives delivery tone from priority: critical slows down, drops
// pitch and barges in; low-priority stays quiet and polite.
func ToneFor(p engine.Priority) (rate, pitch, volume float64, interrupt bool) {
	switch p {
	case engine.PriorityCritical:
		return 0.85, 0.9, 1.0, true
	case engine.PriorityImmediate:
		return 1.0, 1.0, 1.0, true
	case engine.PriorityHigh:
		return 0.95, 1.0, 1.0, false
	case engine.PriorityLow:
		return 1.0, 1.0, 0.7, false
	default:
		return 1.0, 1.0, 0.9, false
	}
}

// NewUtterance builds an utterance for an interruption's message and
// priority.
func NewUtterance(text string, in *engine.Interruption) Utterance {
	rate, pitch, volume, interrupt := ToneFor(in.Priority)
	return Utterance{
		Text:            text,
		Priority:        in.Priority,
		Rate:            rate,
		Pitch:           pitch,
		Volume:          volume,
		Interrupt:       interrupt,
		ExpectsResponse: in.ExpectsResponse,
	}
}
