// Package http wires the handlers into the chi router and runs the server.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/signet/internal/http/handlers"
	"github.com/dropDatabas3/signet/internal/http/middlewares"
)

// NewRouter builds the route tree. Middleware order: request ID first so the
// logger can pick it up, then logging, then panic recovery innermost.
func NewRouter(d *handlers.Deps) http.Handler {
	r := chi.NewRouter()
	limited := middlewares.WithRateLimit(d.Limit)

	r.Get("/healthz", d.Healthz)
	r.Get("/readyz", d.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/.well-known/openid-configuration", d.Discovery)
	r.Get("/.well-known/jwks.json", d.JWKS)

	r.Get("/oauth2/authorize", d.Authorize)
	r.Post("/oauth2/authorize", d.Authorize)
	r.With(limited).Post("/oauth2/token", d.Token)
	r.With(limited).Post("/oauth2/par", d.PushedAuthorize)
	r.Get("/oauth2/endsession", d.EndSession)
	r.Post("/oauth2/endsession", d.EndSession)

	r.With(limited).Post("/v1/session/login", d.SessionLogin)
	r.Post("/v1/session/logout", d.SessionLogout)

	return middlewares.Chain(r,
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
		middlewares.WithRecover(),
	)
}
