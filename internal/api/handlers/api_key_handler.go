package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "caelex/internal/api/context"
	"caelex/internal/engine/keys"
	"caelex/internal/pkg/errors"
	"caelex/internal/platform/auth"
	"caelex/internal/platform/models"
)

type APIKeyHandler struct {
	keys *keys.Service
}

func NewAPIKeyHandler(keySvc *keys.Service) *APIKeyHandler {
	return &APIKeyHandler{keys: keySvc}
}

func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req struct {
		Name          string   `json:"name"`
		Scopes        []string `json:"scopes"`
		RateLimit     int      `json:"rate_limit"`
		ExpiresInDays int      `json:"expires_in_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	key, plaintext, err := h.keys.Create(claims.OrganizationID, claims.UserID, req.Name, req.Scopes, req.RateLimit, req.ExpiresInDays)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}

	// The only response that ever carries the plaintext token.
	response := struct {
		Key          *models.APIKey `json:"key"`
		PlainTextKey string         `json:"plain_text_key"`
		Warning      string         `json:"warning"`
	}{
		Key:          key,
		PlainTextKey: plaintext,
		Warning:      "Store this key securely. It will not be shown again.",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(response)
}

func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	list, err := h.keys.ListByOrg(claims.OrganizationID)
	if err != nil {
		errors.WriteAppError(w, err)
		return
	}
	if list == nil {
		list = []*models.APIKey{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"keys": list})
}

func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	keyID := params.ByName("key_id")

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.keys.Revoke(claims.OrganizationID, keyID, claims.UserID, req.Reason); err != nil {
		errors.WriteAppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
