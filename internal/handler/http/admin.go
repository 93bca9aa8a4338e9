package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quantfabric/alert-delivery-service/internal/exchange/circuit"
	"github.com/quantfabric/alert-delivery-service/internal/exchange/executor"
	"github.com/quantfabric/alert-delivery-service/internal/exchange/failover"
	amqphandler "github.com/quantfabric/alert-delivery-service/internal/handler/amqp"
	"github.com/quantfabric/alert-delivery-service/internal/notify/dispatcher"
)

// FailoverStatuser is the controller slice the admin surface reads from
// and steers.
type FailoverStatuser interface {
	Snapshot() failover.StatusSnapshot
	CurrentPrimary() string
	ManualFailover(toID string) error
}

// ExecutorStatuser exposes the executor tallies and breaker state.
type ExecutorStatuser interface {
	Stats() executor.Stats
	Breaker() *circuit.Breaker
}

type AdminHandler struct {
	notify   dispatcher.Dispatcher
	failover FailoverStatuser
	exec     ExecutorStatuser
	logger   *slog.Logger
}

func NewAdminHandler(notify dispatcher.Dispatcher, fo FailoverStatuser, exec ExecutorStatuser, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{notify: notify, failover: fo, exec: exec, logger: logger}
}

func (h *AdminHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"primary": h.failover.CurrentPrimary(),
	})
}

func (h *AdminHandler) FailoverStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.failover.Snapshot())
}

func (h *AdminHandler) ExecutorStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":   h.exec.Stats(),
		"breaker": h.exec.Breaker().Snapshot(),
	})
}

// ManualFailover promotes the named exchange. The controller validates
// availability; an unknown or unavailable target is the caller's error.
func (h *AdminHandler) ManualFailover(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "exchangeID")
	if err := h.failover.ManualFailover(id); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	h.logger.Info("MANUAL_FAILOVER_ACCEPTED", "to", id)
	writeJSON(w, http.StatusOK, map[string]string{"primary": id})
}

// InjectNotification accepts the same wire shape the broker delivers and
// pushes it straight into the pipeline. Category defaults to system.
func (h *AdminHandler) InjectNotification(w http.ResponseWriter, r *http.Request) {
	var body struct {
		amqphandler.AlertV1
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.Category == "" {
		body.Category = "system"
	}

	msg, err := body.ToDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.notify.Process(r.Context(), msg, body.Category)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": msg.ID})
}
