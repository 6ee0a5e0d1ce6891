package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ticketflow/internal/ticket"
)

// Pinger reports broker reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TicketStage is the staging surface the handler needs.
type TicketStage interface {
	Put(ctx context.Context, ev ticket.Event) error
	Get(ctx context.Context) (ticket.Event, bool, error)
	Health(ctx context.Context) error
}

// Handler is the thin HTTP layer of the front door. It stages tickets, replies
// synchronously, and hands emission to the Emitter after the reply.
type Handler struct {
	stage   TicketStage
	emitter *Emitter
	broker  Pinger
	logger  *slog.Logger
}

func NewHandler(stage TicketStage, emitter *Emitter, broker Pinger, logger *slog.Logger) *Handler {
	return &Handler{stage: stage, emitter: emitter, broker: broker, logger: logger}
}

// NewRouter wires the public endpoints. The createTransation spelling is part
// of the public contract consumed by existing clients. Metrics are served on
// the separate operational listener, not here.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/getTicket", h.handleGetTicket)
	r.Post("/createTransation", h.handleCreateTransaction)
	r.Get("/healthz", h.handleHealth)
	return r
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ev, ok, err := h.stage.Get(r.Context())
	if err != nil {
		h.logger.Error("failed to load staged ticket", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to load ticket"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, []ticket.Event{})
		return
	}
	// Array form: the consumer side accepts array or object and uses the
	// first element.
	writeJSON(w, http.StatusOK, []ticket.Event{ev})
}

func (h *Handler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var ev ticket.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	if ev.ID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing or invalid id"})
		return
	}

	requestID := uuid.NewString()
	if err := h.stage.Put(r.Context(), ev); err != nil {
		h.logger.Error("failed to stage ticket",
			"request_id", requestID,
			"id", ev.ID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "failed to store transaction"})
		return
	}

	// Reply first; the event emission must never alter this response.
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "transaction created",
		"data":    ev,
	})

	h.logger.Info("transaction created",
		"request_id", requestID,
		"id", ev.ID,
		"ticket", ev.TicketNumber,
	)
	h.emitter.EmitAfterReply(ev)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.stage.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "redis unavailable"})
		return
	}
	if err := h.broker.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "broker unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
