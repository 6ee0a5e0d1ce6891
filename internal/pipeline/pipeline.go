package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ticketflow/internal/identity"
	"ticketflow/internal/oracle"
	"ticketflow/internal/platform/kafka/consumer"
	"ticketflow/internal/platform/metrics"
	"ticketflow/internal/store"
	"ticketflow/internal/ticket"
)

// Validator is the oracle-facing surface the pipeline needs.
type Validator interface {
	Validate(ctx context.Context, ownerID, ticketID string) (oracle.Verdict, error)
}

// ResultStore persists settled validation outcomes.
type ResultStore interface {
	Save(ctx context.Context, res store.ValidationResult) error
}

// Pipeline drives one message through parse, identity verification, oracle
// validation and persistence, strictly in that order and fail-fast. It is the
// consumer.Handler for the ticket-generated topic.
type Pipeline struct {
	verifier identity.Verifier
	oracle   Validator
	store    ResultStore
	logger   *slog.Logger
	metrics  *metrics.Pipeline
	tracer   trace.Tracer
}

func New(verifier identity.Verifier, v Validator, rs ResultStore, logger *slog.Logger, m *metrics.Pipeline) *Pipeline {
	return &Pipeline{
		verifier: verifier,
		oracle:   v,
		store:    rs,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("ticketflow/pipeline"),
	}
}

// Handle implements consumer.Handler. A nil return settles the message; an
// error requests redelivery. The mapping from outcome to return value is the
// only place that decision is made.
func (p *Pipeline) Handle(ctx context.Context, msg *consumer.Message) error {
	p.metrics.MessagesConsumed.Inc()

	ctx, span := p.tracer.Start(ctx, "pipeline.handle", trace.WithAttributes(
		attribute.String("messaging.topic", msg.Topic),
		attribute.Int("messaging.partition", int(msg.Partition)),
		attribute.Int64("messaging.offset", msg.Offset),
	))
	defer span.End()

	out := p.process(ctx, msg)
	p.metrics.Outcomes.WithLabelValues(string(out.Step), string(out.Class), orNone(out.Status)).Inc()
	span.SetAttributes(
		attribute.String("pipeline.step", string(out.Step)),
		attribute.String("pipeline.class", string(out.Class)),
	)

	if out.Err == nil {
		p.logger.Info("message settled",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"status", out.Status,
		)
		return nil
	}

	span.SetStatus(codes.Error, out.Err.Error())
	if out.Settled() {
		// Terminal failures are fully absorbed here: logged with enough
		// context to diagnose, then the offset advances.
		p.logger.Error("message failed terminally",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"step", out.Step,
			"detail", out.Detail,
			"error", out.Err,
		)
		return nil
	}

	p.logger.Warn("message failed, requesting redelivery",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"step", out.Step,
		"error", out.Err,
	)
	return fmt.Errorf("%s step failed: %w", out.Step, out.Err)
}

// process runs the state machine and reduces every path to an Outcome.
func (p *Pipeline) process(ctx context.Context, msg *consumer.Message) Outcome {
	ev, err := p.parse(msg)
	if err != nil {
		return terminal(StepParse, "malformed event payload", err)
	}

	ident, err := p.verify(ctx, ev)
	if err != nil {
		// No trustworthy subject exists, so nothing reaches persistence.
		return terminal(StepIdentity, "identity rejected for ticket "+ev.TicketNumber, err)
	}

	verdict, err := p.validate(ctx, ev)
	if err != nil {
		return retriable(StepOracle, "oracle unreachable", err)
	}
	if !verdict.Terminal() {
		// A transient oracle condition reported in-band; same recovery
		// path as a transport failure.
		return retriable(StepOracle, verdict.Details, errors.New(verdict.Details))
	}

	if err := p.persist(ctx, ev, ident, verdict); err != nil {
		var anomaly *store.AnomalyError
		if errors.As(err, &anomaly) {
			return terminal(StepPersist, "persistence anomaly, flagged for operator attention", err)
		}
		return retriable(StepPersist, "persistence failed", err)
	}

	return success(string(verdict.Status))
}

func (p *Pipeline) parse(msg *consumer.Message) (ticket.Event, error) {
	defer p.observe(StepParse)()
	return ticket.ParseEvent(msg.Value)
}

func (p *Pipeline) verify(ctx context.Context, ev ticket.Event) (identity.Identity, error) {
	defer p.observe(StepIdentity)()
	ident, err := p.verifier.Verify(ctx, ev.Token)
	if err != nil {
		return identity.Identity{}, err
	}
	p.logger.Debug("identity verified",
		"ticket", ev.TicketNumber,
		"subject", ident.SubjectID,
	)
	return ident, nil
}

func (p *Pipeline) validate(ctx context.Context, ev ticket.Event) (oracle.Verdict, error) {
	defer p.observe(StepOracle)()
	return p.oracle.Validate(ctx, ev.OwnerID(), ev.TicketNumber)
}

func (p *Pipeline) persist(ctx context.Context, ev ticket.Event, ident identity.Identity, verdict oracle.Verdict) error {
	defer p.observe(StepPersist)()
	return p.store.Save(ctx, store.ValidationResult{
		Event:    ev,
		Identity: ident,
		Verdict:  verdict,
	})
}

func (p *Pipeline) observe(step Step) func() {
	start := time.Now()
	return func() {
		p.metrics.StepDuration.WithLabelValues(string(step)).Observe(time.Since(start).Seconds())
	}
}

func orNone(status string) string {
	if status == "" {
		return "none"
	}
	return status
}
