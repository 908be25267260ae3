package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apiContext "caelex/internal/api/context"
	"caelex/internal/engine/keys"
	"caelex/internal/engine/ratelimit"
	"caelex/internal/pkg/errors"
	"caelex/internal/platform/audit"
)

// KeyContext is attached to the request context once an API key has
// passed authentication, scope check and rate limiting.
type KeyContext struct {
	KeyID          string
	OrganizationID string
	Scopes         []string
}

// APIKeyMiddleware is the single request gate for all programmatic
// routes: bearer extraction, credential verification, scope check,
// rate limiting. Every decision is audit-logged, allowed or not.
type APIKeyMiddleware struct {
	keys    *keys.Service
	limiter ratelimit.Limiter
	audit   *audit.Logger
}

func NewAPIKeyMiddleware(keySvc *keys.Service, limiter ratelimit.Limiter, auditLog *audit.Logger) *APIKeyMiddleware {
	return &APIKeyMiddleware{keys: keySvc, limiter: limiter, audit: auditLog}
}

// Require returns the gate for a route with the given required scope.
func (m *APIKeyMiddleware) Require(scope string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				m.logDecision(r, "", "", audit.OutcomeDeniedAuth)
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing or malformed authorization header", nil)
				return
			}

			key, err := m.keys.Verify(token)
			if err != nil {
				m.logDecision(r, "", "", audit.OutcomeDeniedAuth)
				errors.WriteAppError(w, err)
				return
			}

			if !keys.HasScope(key.Scopes, scope) {
				m.logDecision(r, key.ID, key.OrganizationID, audit.OutcomeDeniedScope)
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			decision, err := m.limiter.Allow(r.Context(), key.ID, key.RateLimit)
			if err != nil {
				log.Error().Err(err).Str("key_id", key.ID).Msg("rate limit check failed")
				errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error", nil)
				return
			}
			if !decision.Allowed {
				m.logDecision(r, key.ID, key.OrganizationID, audit.OutcomeRateLimited)
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded",
					map[string]int{"count": decision.Count, "limit": decision.Limit})
				return
			}

			m.logDecision(r, key.ID, key.OrganizationID, audit.OutcomeSuccess)

			ctx := context.WithValue(r.Context(), apiContext.APIKey, &KeyContext{
				KeyID:          key.ID,
				OrganizationID: key.OrganizationID,
				Scopes:         key.Scopes,
			})
			next(w, r.WithContext(ctx))

			// The accepted request joins the ledger once the handler
			// has run.
			if err := m.limiter.Record(r.Context(), key.ID); err != nil {
				log.Error().Err(err).Str("key_id", key.ID).Msg("rate limit record failed")
			}
		}
	}
}

func (m *APIKeyMiddleware) logDecision(r *http.Request, keyID, orgID, outcome string) {
	m.audit.Log(audit.Entry{
		OrganizationID: orgID,
		Actor:          keyID,
		Action:         r.Method + " " + r.URL.Path,
		Outcome:        outcome,
		ResourceType:   "api_request",
		IPAddress:      r.RemoteAddr,
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
