package middlewares

import "context"

type requestIDKey struct{}

// setRequestID inyecta el request ID en el contexto (interno).
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID obtiene el request ID del contexto.
// Devuelve "" si no hay ninguno.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}
