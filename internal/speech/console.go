package speech

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/normanking/headsup/internal/engine"
)

var (
	criticalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	highStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	mediumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	lowStyle      = lipgloss.NewStyle().Faint(true)
	badgeStyle    = lipgloss.NewStyle().Faint(true)
)

// ConsoleSpeaker renders utterances to a writer with priority-keyed
// styling. It is the default channel for interactive CLI sessions.
type ConsoleSpeaker struct {
	out io.Writer
}

// NewConsoleSpeaker writes to stdout.
func NewConsoleSpeaker() *ConsoleSpeaker {
	return &ConsoleSpeaker{out: os.Stdout}
}

// NewConsoleSpeakerTo writes to a custom writer (tests).
func NewConsoleSpeakerTo(out io.Writer) *ConsoleSpeaker {
	return &ConsoleSpeaker{out: out}
}

// Name implements Speaker.
func (c *ConsoleSpeaker) Name() string { return "console" }

// Say implements Speaker.
func (c *ConsoleSpeaker) Say(_ context.Context, u Utterance) error {
	_, err := fmt.Fprintf(c.out, "%s %s\n", badgeStyle.Render("["+string(u.Priority)+"]"), styleFor(u.Priority).Render(u.Text))
	return err
}

func styleFor(p engine.Priority) lipgloss.Style {
	switch p {
	case engine.PriorityCritical:
		return criticalStyle
	case engine.PriorityHigh:
		return highStyle
	case engine.PriorityLow:
		return lowStyle
	default:
		return mediumStyle
	}
}
