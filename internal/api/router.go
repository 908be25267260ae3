package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "caelex/internal/api/context"
	"caelex/internal/api/handlers"
	"caelex/internal/api/middleware"
)

type Dependencies struct {
	APIKeyHandler     *handlers.APIKeyHandler
	WebhookHandler    *handlers.WebhookHandler
	DeliveryHandler   *handlers.DeliveryHandler
	AuditHandler      *handlers.AuditHandler
	SpacecraftHandler *handlers.SpacecraftHandler
	ComplianceHandler *handlers.ComplianceHandler
	HealthHandler     *handlers.HealthHandler
	Session           *middleware.SessionMiddleware
	APIKeyGate        *middleware.APIKeyMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", wrap(deps.HealthHandler.Handle))

	session := deps.Session
	gate := deps.APIKeyGate

	// Key management (dashboard session)
	router.POST("/api/v1/keys", chain(deps.APIKeyHandler.Create, session.Handle))
	router.GET("/api/v1/keys", chain(deps.APIKeyHandler.List, session.Handle))
	router.DELETE("/api/v1/keys/:key_id", chain(deps.APIKeyHandler.Revoke, session.Handle))

	// Webhook management (dashboard session)
	router.POST("/api/v1/webhooks", chain(deps.WebhookHandler.Create, session.Handle))
	router.GET("/api/v1/webhooks", chain(deps.WebhookHandler.List, session.Handle))
	router.GET("/api/v1/webhooks/:webhook_id", chain(deps.WebhookHandler.Get, session.Handle))
	router.DELETE("/api/v1/webhooks/:webhook_id", chain(deps.WebhookHandler.Delete, session.Handle))

	// Delivery inspection and manual retry (dashboard session)
	router.GET("/api/v1/webhooks/:webhook_id/deliveries", chain(deps.DeliveryHandler.List, session.Handle))
	router.POST("/api/v1/deliveries/retry", chain(deps.DeliveryHandler.Retry, session.Handle))

	// Security audit log (dashboard session)
	router.GET("/api/v1/audit", chain(deps.AuditHandler.List, session.Handle))

	// Programmatic API (bearer API key, scoped, rate limited)
	router.GET("/api/v1/public/spacecraft",
		chain(deps.SpacecraftHandler.List, gate.Require("read:spacecraft")))
	router.POST("/api/v1/public/spacecraft",
		chain(deps.SpacecraftHandler.Create, gate.Require("write:spacecraft")))
	router.GET("/api/v1/public/compliance/status",
		chain(deps.ComplianceHandler.Status, gate.Require("read:compliance")))

	return router
}

// chain applies middlewares right to left around a handler.
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap converts http.HandlerFunc to httprouter.Handle, injecting the
// route params into the request context.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
