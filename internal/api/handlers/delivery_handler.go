package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	apiContext "caelex/internal/api/context"
	"caelex/internal/engine/webhooks"
	"caelex/internal/pkg/errors"
	"caelex/internal/platform/auth"
	"caelex/internal/platform/models"
	"caelex/internal/platform/repositories"
)

const (
	defaultPerPage = 25
	maxPerPage     = 100
)

// DeliveryHandler exposes delivery history for audit and the manual
// retry control surface.
type DeliveryHandler struct {
	registry   *webhooks.Registry
	dispatcher *webhooks.Dispatcher
	deliveries *repositories.DeliveryRepository
}

func NewDeliveryHandler(registry *webhooks.Registry, dispatcher *webhooks.Dispatcher, deliveries *repositories.DeliveryRepository) *DeliveryHandler {
	return &DeliveryHandler{registry: registry, dispatcher: dispatcher, deliveries: deliveries}
}

// List returns a page of deliveries for one webhook, newest first.
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	webhookID := params.ByName("webhook_id")

	// Ownership check before touching delivery history.
	if _, err := h.registry.Get(claims.OrganizationID, webhookID); err != nil {
		errors.WriteAppError(w, err)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	deliveries, err := h.deliveries.ListByWebhook(webhookID, perPage, (page-1)*perPage)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list deliveries", nil)
		return
	}
	if deliveries == nil {
		deliveries = []*models.WebhookDelivery{}
	}

	total, err := h.deliveries.CountByWebhook(webhookID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list deliveries", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"deliveries": deliveries,
		"page":       page,
		"per_page":   perPage,
		"total":      total,
	})
}

// Retry re-queues a terminally failed delivery.
func (h *DeliveryHandler) Retry(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req struct {
		DeliveryID string `json:"delivery_id"`
		Action     string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.DeliveryID == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "delivery_id is required", nil)
		return
	}
	if req.Action != "retry" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "action must be \"retry\"", nil)
		return
	}

	delivery, err := h.dispatcher.RetryManually(r.Context(), claims.OrganizationID, req.DeliveryID)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"delivery": delivery})
}
