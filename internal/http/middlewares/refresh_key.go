package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/musekit/internal/http/errors"
	"github.com/dropDatabas3/musekit/internal/observability/logger"
	"github.com/dropDatabas3/musekit/internal/security/adminkey"
)

// RequireRefreshKey protege el endpoint de refresh con una clave de operador.
// Reglas (en este orden):
//  1. Sin hash configurado: permitir (modo desarrollo, igual que sin enforce).
//  2. Header X-Refresh-Key presente y verificado contra el hash argon2id: permitir.
//     Si no, 401.
//
// La clave nunca se loguea; solo el resultado de la verificación.
func RequireRefreshKey(keyHash string) Middleware {
	keyHash = strings.TrimSpace(keyHash)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get("X-Refresh-Key"))
			if key == "" {
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("refresh key required"))
				return
			}
			if !adminkey.Verify(key, keyHash) {
				logger.From(r.Context()).Warn("refresh key rejected", logger.ClientIP(clientIP(r)))
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("invalid refresh key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
