package middlewares

import "net/http"

// WithNoStore agrega Cache-Control: no-store a la respuesta.
// Obligatorio en los endpoints que devuelven tokens: ningún proxy debe
// retener un developer token.
func WithNoStore() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
