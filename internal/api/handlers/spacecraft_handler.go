package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	apiContext "caelex/internal/api/context"
	"caelex/internal/api/middleware"
	"caelex/internal/engine/webhooks"
	"caelex/internal/pkg/errors"
)

// SpacecraftHandler is the programmatic surface for spacecraft
// records. The records themselves live in the main application's
// store; this handler accepts the write, hands it off, and emits the
// corresponding webhook event.
type SpacecraftHandler struct {
	dispatcher *webhooks.Dispatcher
}

func NewSpacecraftHandler(dispatcher *webhooks.Dispatcher) *SpacecraftHandler {
	return &SpacecraftHandler{dispatcher: dispatcher}
}

func (h *SpacecraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	keyCtx := r.Context().Value(apiContext.APIKey).(*middleware.KeyContext)

	var req struct {
		Name         string `json:"name"`
		NoradID      string `json:"norad_id"`
		OrbitRegime  string `json:"orbit_regime"`
		LaunchDate   string `json:"launch_date"`
		Manufacturer string `json:"manufacturer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "name is required", nil)
		return
	}

	record := map[string]interface{}{
		"id":           "sc_" + uuid.New().String(),
		"name":         req.Name,
		"norad_id":     req.NoradID,
		"orbit_regime": req.OrbitRegime,
		"launch_date":  req.LaunchDate,
		"manufacturer": req.Manufacturer,
		"created_at":   time.Now().Unix(),
	}

	h.dispatcher.Dispatch(r.Context(), keyCtx.OrganizationID, webhooks.EventSpacecraftCreated, record)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

func (h *SpacecraftHandler) List(w http.ResponseWriter, r *http.Request) {
	keyCtx := r.Context().Value(apiContext.APIKey).(*middleware.KeyContext)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"organization_id": keyCtx.OrganizationID,
		"spacecraft":      []interface{}{},
	})
}
