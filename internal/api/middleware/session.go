package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "caelex/internal/api/context"
	"caelex/internal/pkg/errors"
	"caelex/internal/platform/auth"
)

// SessionMiddleware gates the management endpoints (key and webhook
// administration) with dashboard session tokens.
type SessionMiddleware struct {
	tokenSvc *auth.TokenService
}

func NewSessionMiddleware(tokenSvc *auth.TokenService) *SessionMiddleware {
	return &SessionMiddleware{tokenSvc: tokenSvc}
}

func (m *SessionMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing authorization header", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(parts[1])
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		next(w, r.WithContext(ctx))
	}
}
