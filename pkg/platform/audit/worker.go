package audit

import (
	"context"
	"log/slog"
)

// Worker drains events from a channel into a sink so emitters never block on
// the transport. Publish failures are logged and the event dropped.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

// NewWorker constructs a worker reading from inbox.
func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

// Run consumes events until ctx is cancelled. It drains whatever is already
// buffered before returning.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			drainCtx := context.WithoutCancel(ctx)
			for {
				select {
				case event := <-w.inbox:
					w.publish(drainCtx, event)
				default:
					return ctx.Err()
				}
			}
		case event := <-w.inbox:
			w.publish(ctx, event)
		}
	}
}

func (w *Worker) publish(ctx context.Context, event Event) {
	if err := w.sink.Publish(ctx, event); err != nil {
		w.logger.Error("audit publish failed",
			"action", string(event.Action),
			"agreement_id", event.AgreementID,
			"error", err,
		)
	}
}
