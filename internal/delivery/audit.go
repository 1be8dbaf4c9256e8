package delivery

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/normanking/headsup/internal/bus"
	"github.com/normanking/headsup/internal/data"
)

// AuditStore persists delivered-interruption records.
type AuditStore interface {
	SaveAudit(ctx context.Context, entry data.AuditEntry) error
}

// AuditWriter subscribes to the event bus and appends one audit record per
// delivered interruption. Persistence failures are logged and dropped;
// audit is best-effort and never blocks delivery.
type AuditWriter struct {
	store AuditStore
	log   zerolog.Logger
	subID bus.SubscriptionID
}

// NewAuditWriter attaches a writer to the bus.
func NewAuditWriter(events *bus.Bus, store AuditStore, log zerolog.Logger) *AuditWriter {
	w := &AuditWriter{store: store, log: log}
	w.subID = events.Subscribe(bus.EventDelivered, w.onDelivered)
	return w
}

func (w *AuditWriter) onDelivered(ev bus.Event) {
	entry := data.AuditEntry{
		Subject:   ev.Subject,
		Trigger:   ev.Trigger,
		Priority:  ev.Priority,
		Message:   ev.Message,
		CreatedAt: ev.Timestamp,
	}
	if err := w.store.SaveAudit(context.Background(), entry); err != nil {
		w.log.Error().Err(err).Str("interruption_id", ev.InterruptionID).Msg("audit write failed")
	}
}

// Detach unsubscribes the writer from the bus.
func (w *AuditWriter) Detach(events *bus.Bus) {
	if w.subID != "" {
		_ = events.Unsubscribe(w.subID)
		w.subID = ""
	}
}
