// Package token contiene DTOs para los endpoints de developer token.
package token

// TokenResponse es la respuesta de GET /v1/token y POST /v1/token/refresh.
type TokenResponse struct {
	Token string `json:"token"`
	Demo  bool   `json:"demo"` // true si el token es el placeholder de demo
}

// StatusResponse es la respuesta de GET /v1/token/status.
type StatusResponse struct {
	Configured bool `json:"configured"` // credenciales completas en el entorno
	Cached     bool `json:"cached"`     // hay un token en el slot
	Demo       bool `json:"demo"`       // el token cacheado es el placeholder
}
