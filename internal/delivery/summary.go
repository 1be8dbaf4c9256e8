package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/normanking/headsup/internal/engine"
)

// composeSummary computes the live answer for an on-demand summary. The
// engine deliberately ships no prewritten message for these; the numbers
// are read at delivery time so the answer is current.
func (c *Controller) composeSummary(ctx context.Context, st engine.SummaryType) string {
	switch st {
	case engine.SummaryEarningsToday:
		return c.earningsToday(ctx)
	case engine.SummaryMoneyOwed:
		return c.moneyOwed(ctx)
	default:
		c.log.Warn().Str("summary_type", string(st)).Msg("unknown summary type")
		return "I don't have that summary."
	}
}

func (c *Controller) earningsToday(ctx context.Context) string {
	now := c.clock()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	inflow, err := c.reader.TodayInflow(ctx, dayStart)
	if err != nil {
		c.log.Error().Err(err).Msg("earnings summary query failed")
		return "I couldn't pull today's numbers just now."
	}
	if inflow == 0 {
		return "Nothing has come in yet today."
	}
	return fmt.Sprintf("You've taken in $%.0f today.", inflow)
}

func (c *Controller) moneyOwed(ctx context.Context) string {
	debts, err := c.reader.ListOpenDebts(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("money-owed summary query failed")
		return "I couldn't pull the debt list just now."
	}
	if len(debts) == 0 {
		return "Nobody owes you anything right now."
	}

	var total float64
	parts := make([]string, 0, len(debts))
	for _, d := range debts {
		total += d.Amount
		parts = append(parts, fmt.Sprintf("%s $%.0f", d.Person, d.Amount))
	}
	return fmt.Sprintf("You're owed $%.0f in total: %s.", total, strings.Join(parts, ", "))
}
