package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "caelex/internal/api/context"
	"caelex/internal/engine/webhooks"
	"caelex/internal/pkg/errors"
	"caelex/internal/platform/auth"
	"caelex/internal/platform/models"
)

type WebhookHandler struct {
	registry *webhooks.Registry
}

func NewWebhookHandler(registry *webhooks.Registry) *WebhookHandler {
	return &WebhookHandler{registry: registry}
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req struct {
		Name    string            `json:"name"`
		URL     string            `json:"url"`
		Events  []string          `json:"events"`
		Headers map[string]string `json:"headers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	webhook, secret, err := h.registry.Create(claims.OrganizationID, req.Name, req.URL, req.Events, req.Headers)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}

	// The only response that ever carries the signing secret.
	response := struct {
		Webhook *models.Webhook `json:"webhook"`
		Secret  string          `json:"secret"`
		Warning string          `json:"warning"`
	}{
		Webhook: webhook,
		Secret:  secret,
		Warning: "Store this secret securely. It will not be shown again.",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	list, err := h.registry.List(claims.OrganizationID)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	if list == nil {
		list = []*models.Webhook{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"webhooks": list})
}

func (h *WebhookHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	webhook, err := h.registry.Get(claims.OrganizationID, params.ByName("webhook_id"))
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(webhook)
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	if err := h.registry.Delete(claims.OrganizationID, params.ByName("webhook_id")); err != nil {
		errors.WriteAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
