package worker

import (
	"context"
	"sync/atomic"

	"ledger/internal/amqp"
	"ledger/internal/log"
)

// EventWorker consumes ledger events and records them in the log.
type EventWorker struct {
	logger *log.Logger
	counts map[amqp.EventKind]*int64
}

func NewEventWorker(logger *log.Logger) *EventWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &EventWorker{
		logger: logger.WithComponent(log.ComponentWorker),
		counts: map[amqp.EventKind]*int64{
			amqp.TransactionCreated: new(int64),
			amqp.TransactionUpdated: new(int64),
			amqp.TransactionDeleted: new(int64),
		},
	}
}

// HandleEvent processes a single ledger event from AMQP. It never fails, so
// nothing is requeued.
func (w *EventWorker) HandleEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	if n, ok := w.counts[event.Kind]; ok {
		atomic.AddInt64(n, 1)
	}

	w.logger.InfoContext(ctx, "Ledger event received",
		log.FieldEventKind, event.Kind,
		log.FieldTransactionID, event.ID,
		"published_at", event.Timestamp)
	return nil
}

// Count returns how many events of kind have been handled.
func (w *EventWorker) Count(kind amqp.EventKind) int64 {
	if n, ok := w.counts[kind]; ok {
		return atomic.LoadInt64(n)
	}
	return 0
}
