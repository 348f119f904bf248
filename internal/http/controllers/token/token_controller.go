// Package token contiene los controllers de developer token.
package token

import (
	"encoding/json"
	"errors"
	"net/http"

	dto "github.com/dropDatabas3/musekit/internal/http/dto/token"
	httperrors "github.com/dropDatabas3/musekit/internal/http/errors"
	"github.com/dropDatabas3/musekit/internal/musickit"
	"github.com/dropDatabas3/musekit/internal/observability/logger"
)

const contentTypeJSON = "application/json; charset=utf-8"

// TokenController maneja los endpoints /v1/token*.
type TokenController struct {
	service *musickit.Service
}

// NewTokenController crea el controller de tokens.
func NewTokenController(service *musickit.Service) *TokenController {
	return &TokenController{service: service}
}

// Get handles GET /v1/token
//
// Nunca responde error: si no hay credenciales o la firma falla, el service
// degrada al placeholder y el cliente recibe demo=true. Cache-Control viene
// del middleware WithNoStore.
func (c *TokenController) Get(w http.ResponseWriter, r *http.Request) {
	tok := c.service.DeveloperToken(r.Context())

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.TokenResponse{
		Token: tok,
		Demo:  tok == musickit.DemoToken,
	})
}

// Refresh handles POST /v1/token/refresh
//
// Fuerza una firma nueva saltando la caché. A diferencia de Get, acá los
// errores sí viajan al cliente: un refresh fallido no pisa el slot.
func (c *TokenController) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromWithFields(ctx, logger.Op("TokenController.Refresh"))

	tok, err := c.service.Refresh(ctx)
	if err != nil {
		log.Warn("forced refresh failed",
			logger.String("error_code", musickit.ErrorCode(err)),
			logger.Err(err))
		writeTokenError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.TokenResponse{Token: tok, Demo: false})
}

// Status handles GET /v1/token/status
func (c *TokenController) Status(w http.ResponseWriter, r *http.Request) {
	st := c.service.Status()

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(dto.StatusResponse{
		Configured: st.Configured,
		Cached:     st.Cached,
		Demo:       st.Demo,
	})
}

// ─── Error Mapping ───

func writeTokenError(w http.ResponseWriter, err error) {
	var cfgErr *musickit.ConfigError

	switch {
	case errors.As(err, &cfgErr):
		httperrors.WriteError(w, httperrors.ErrConfigMissing.WithDetail(cfgErr.Field))

	case errors.Is(err, musickit.ErrKeyUnreadable):
		httperrors.WriteError(w, httperrors.ErrKeyUnreadable)

	case errors.Is(err, musickit.ErrInvalidKey):
		httperrors.WriteError(w, httperrors.ErrInvalidKey)

	case errors.Is(err, musickit.ErrEncodingFailed):
		httperrors.WriteError(w, httperrors.ErrEncodingFailed)

	default:
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
