package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline holds the Prometheus metrics for the validator process.
type Pipeline struct {
	MessagesConsumed prometheus.Counter
	Outcomes         *prometheus.CounterVec
	StepDuration     *prometheus.HistogramVec
}

// NewPipeline creates and registers the validator metrics.
func NewPipeline() *Pipeline {
	return &Pipeline{
		MessagesConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticketflow_messages_consumed_total",
			Help: "Total ticket-generated messages delivered to the pipeline",
		}),
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ticketflow_pipeline_outcomes_total",
			Help: "Pipeline outcomes by step, classification and status",
		}, []string{"step", "class", "status"}),
		StepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticketflow_pipeline_step_seconds",
			Help:    "Wall time spent in each pipeline step",
			Buckets: prometheus.DefBuckets,
		}, []string{"step"}),
	}
}

// Gateway holds the Prometheus metrics for the gateway process.
type Gateway struct {
	EventsEmitted prometheus.Counter
	EmitFailures  prometheus.Counter
}

// NewGateway creates and registers the gateway metrics. EmitFailures is the
// only visibility into events lost after the HTTP reply was already sent, so
// it should be alerted on.
func NewGateway() *Gateway {
	return &Gateway{
		EventsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticketflow_events_emitted_total",
			Help: "Ticket-generated events successfully produced to the broker",
		}),
		EmitFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ticketflow_emit_failures_total",
			Help: "Ticket-generated events that failed to produce after the HTTP reply",
		}),
	}
}
