package gateway

import (
	"context"
	"log/slog"
	"time"

	"ticketflow/internal/platform/metrics"
	"ticketflow/internal/ticket"
)

// EventProducer is the broker-facing surface the emitter needs.
type EventProducer interface {
	Produce(ctx context.Context, key, value []byte) error
}

// Emitter publishes ticket-generated events after the HTTP reply has been
// flushed. The emit never feeds back into the request that triggered it: a
// failure is logged, counted and swallowed, because the caller already got a
// success response. The emit-failures counter is the accepted-data-loss alarm.
type Emitter struct {
	producer EventProducer
	logger   *slog.Logger
	metrics  *metrics.Gateway
	timeout  time.Duration
}

func NewEmitter(producer EventProducer, logger *slog.Logger, m *metrics.Gateway) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
		metrics:  m,
		timeout:  10 * time.Second,
	}
}

// EmitAfterReply schedules the event emission as a detached task. It must be
// called only once the response for the originating request has been written.
// The returned channel closes when the emit attempt finishes, for tests and
// drain logic; callers on the request path ignore it.
func (e *Emitter) EmitAfterReply(ev ticket.Event) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		// Detached from the request context on purpose: the client
		// disconnecting must not cancel the emit.
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		value, err := ev.Encode()
		if err == nil {
			err = e.producer.Produce(ctx, []byte(ev.Key()), value)
		}
		if err != nil {
			e.metrics.EmitFailures.Inc()
			e.logger.Error("failed to produce ticket-generated event after reply",
				"ticket", ev.TicketNumber,
				"id", ev.ID,
				"error", err,
			)
			return
		}

		e.metrics.EventsEmitted.Inc()
		e.logger.Info("ticket-generated event produced",
			"ticket", ev.TicketNumber,
			"id", ev.ID,
		)
	}()
	return done
}
