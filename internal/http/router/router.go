// Package router arma el árbol de rutas del servicio sobre chi.
package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	healthctrl "github.com/dropDatabas3/musekit/internal/http/controllers/health"
	tokenctrl "github.com/dropDatabas3/musekit/internal/http/controllers/token"
	mw "github.com/dropDatabas3/musekit/internal/http/middlewares"
	"github.com/dropDatabas3/musekit/internal/musickit"
	"github.com/dropDatabas3/musekit/internal/rate"
)

// Deps contiene las piezas ya construidas que el router monta.
type Deps struct {
	Service  *musickit.Service
	Resolver musickit.Resolver
	Issuer   musickit.Issuer

	CORSAllowedOrigins []string

	// Rate limiting (opcional; nil desactiva cada uno)
	GlobalLimiter  rate.Limiter
	RefreshLimiter rate.Limiter

	// Hash argon2id de la clave que protege el refresh. Vacío = sin guardia.
	RefreshKeyHash string

	// Ping de redis para /readyz; nil cuando el limiter corre en memoria.
	CheckRedis func(ctx context.Context) error

	// Handler de /metrics ya registrado; nil = sin endpoint.
	MetricsHandler http.Handler
}

// New construye el router con la cadena global y las rutas /v1.
//
// Orden global: Recover → RequestID → Logging → Metrics → RateLimit →
// SecurityHeaders → CORS → routing. RequestID va antes de Logging porque el
// logger scoped lee el ID del contexto; Metrics va fuera del rate limit para
// que los 429 también cuenten.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	tokens := tokenctrl.NewTokenController(deps.Service)
	health := healthctrl.NewHealthController(deps.Resolver, deps.Issuer, deps.CheckRedis)

	r.Use(mw.WithRecover())
	r.Use(mw.WithRequestID())
	r.Use(mw.WithLogging())
	r.Use(mw.WithMetrics())
	if deps.GlobalLimiter != nil {
		r.Use(mw.WithRateLimit(mw.RateLimitConfig{
			Limiter:   adaptLimiter(deps.GlobalLimiter),
			KeyFunc:   mw.IPPathRateKey,
			Whitelist: []string{"/healthz", "/readyz", "/metrics"},
		}))
	}
	r.Use(mw.WithSecurityHeaders())
	r.Use(mw.WithCORS(deps.CORSAllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", health.Readyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		// Respuestas con material de token: nunca cachear.
		r.Group(func(r chi.Router) {
			r.Use(mw.WithNoStore())
			r.Get("/token", tokens.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.WithNoStore())
			if deps.RefreshLimiter != nil {
				r.Use(mw.WithRateLimit(mw.RateLimitConfig{
					Limiter: adaptLimiter(deps.RefreshLimiter),
					KeyFunc: mw.IPPathRateKey,
				}))
			}
			r.Use(mw.RequireRefreshKey(deps.RefreshKeyHash))
			r.Post("/token/refresh", tokens.Refresh)
		})

		r.Get("/token/status", tokens.Status)
	})

	return r
}

// limiterAdapter puentea rate.Limiter con la interfaz local de middlewares,
// que se mantiene sin dependencias hacia internal/rate.
type limiterAdapter struct {
	inner rate.Limiter
}

func (a limiterAdapter) Allow(ctx context.Context, key string) (mw.RateLimitResult, error) {
	res, err := a.inner.Allow(ctx, key)
	if err != nil {
		return mw.RateLimitResult{}, err
	}
	return mw.RateLimitResult{
		Allowed:     res.Allowed,
		Remaining:   res.Remaining,
		RetryAfter:  res.RetryAfter,
		WindowTTL:   res.WindowTTL,
		CurrentHits: res.CurrentHits,
	}, nil
}

func adaptLimiter(l rate.Limiter) mw.RateLimiter {
	if l == nil {
		return nil
	}
	return limiterAdapter{inner: l}
}
