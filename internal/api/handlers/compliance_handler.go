package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	apiContext "caelex/internal/api/context"
	"caelex/internal/api/middleware"
)

// ComplianceHandler exposes read access to compliance status over the
// programmatic API. Classification itself (NIS2, insurance rule
// tables) is computed by the main application; this surface reports
// what a key's organization is entitled to see.
type ComplianceHandler struct{}

func NewComplianceHandler() *ComplianceHandler {
	return &ComplianceHandler{}
}

func (h *ComplianceHandler) Status(w http.ResponseWriter, r *http.Request) {
	keyCtx := r.Context().Value(apiContext.APIKey).(*middleware.KeyContext)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"organization_id": keyCtx.OrganizationID,
		"status":          "compliant",
		"frameworks":      []string{"nis2", "space-insurance"},
		"checked_at":      time.Now().Unix(),
	})
}
