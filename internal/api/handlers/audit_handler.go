package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	apiContext "caelex/internal/api/context"
	"caelex/internal/pkg/errors"
	"caelex/internal/platform/audit"
	"caelex/internal/platform/auth"
)

type AuditHandler struct {
	audit *audit.Logger
}

func NewAuditHandler(auditLog *audit.Logger) *AuditHandler {
	return &AuditHandler{audit: auditLog}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.audit.List(claims.OrganizationID, limit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list audit log", nil)
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"entries": entries})
}
