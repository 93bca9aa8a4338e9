package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quantfabric/alert-delivery-service/internal/adapter/store"
	"github.com/quantfabric/alert-delivery-service/internal/domain/model"
)

// UserHandler is the profile admin API. It talks to the repository
// through the same port the dispatcher reads from, so rule changes take
// effect on the next message without restarts.
type UserHandler struct {
	users  store.UserRepo
	logger *slog.Logger
}

func NewUserHandler(users store.UserRepo, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.users.Load(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Put replaces the whole profile. The path owns the user id; a body that
// names a different one is rejected rather than silently rewritten.
func (h *UserHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var p model.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	if p.UserID != userID {
		writeError(w, http.StatusBadRequest,
			fmt.Errorf("body user_id %q does not match path %q", p.UserID, userID))
		return
	}

	if err := h.users.Save(r.Context(), &p); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.logger.Info("PROFILE_SAVED", "user_id", userID)
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.users.Delete(r.Context(), userID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.logger.Info("PROFILE_DELETED", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var d model.Device
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if d.DeviceID == "" || d.PushToken == "" {
		writeError(w, http.StatusBadRequest, errors.New("device_id and push_token are required"))
		return
	}

	if err := h.users.RegisterDevice(r.Context(), userID, &d); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.logger.Info("DEVICE_REGISTERED", "user_id", userID, "device_id", d.DeviceID)
	writeJSON(w, http.StatusOK, map[string]string{"device_id": d.DeviceID})
}

func (h *UserHandler) DeactivateDevice(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	deviceID := chi.URLParam(r, "deviceID")

	if err := h.users.DeactivateDevice(r.Context(), userID, deviceID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.logger.Info("DEVICE_DEACTIVATED", "user_id", userID, "device_id", deviceID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) UpsertRule(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var rule model.NotificationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if rule.RuleID == "" {
		writeError(w, http.StatusBadRequest, errors.New("rule_id is required"))
		return
	}

	if err := h.users.UpsertRule(r.Context(), userID, &rule); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.logger.Info("RULE_UPSERTED", "user_id", userID, "rule_id", rule.RuleID)
	writeJSON(w, http.StatusOK, map[string]string{"rule_id": rule.RuleID})
}

func (h *UserHandler) RemoveRule(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ruleID := chi.URLParam(r, "ruleID")

	if err := h.users.RemoveRule(r.Context(), userID, ruleID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	h.logger.Info("RULE_REMOVED", "user_id", userID, "rule_id", ruleID)
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
