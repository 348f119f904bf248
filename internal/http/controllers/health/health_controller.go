// Package health contiene el controller para health checks.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	dto "github.com/dropDatabas3/musekit/internal/http/dto/health"
	"github.com/dropDatabas3/musekit/internal/musickit"
	"github.com/dropDatabas3/musekit/internal/observability/logger"
)

// HealthController maneja /readyz. La sonda nunca firma contra la caché:
// emite un token efímero descartable para probar la clave real.
type HealthController struct {
	resolver   musickit.Resolver
	issuer     musickit.Issuer
	checkRedis func(ctx context.Context) error // nil = redis no configurado
}

// NewHealthController crea el controller de health. checkRedis es opcional;
// se pasa cuando el rate limiter corre sobre redis.
func NewHealthController(res musickit.Resolver, iss musickit.Issuer, checkRedis func(ctx context.Context) error) *HealthController {
	return &HealthController{resolver: res, issuer: iss, checkRedis: checkRedis}
}

// Readyz maneja GET /readyz
//
// Credenciales ausentes o clave rota dejan el estado en "degraded" (200):
// el servicio sigue sirviendo el placeholder, así que puede recibir tráfico.
// Redis caído sí es "unavailable" (503): infraestructura compartida rota.
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Op("HealthController.Readyz"))

	comps := map[string]dto.ComponentStatus{}
	status := "ready"

	cred, err := c.resolver.Resolve()
	if err != nil {
		comps["credentials"] = dto.ComponentStatus{Status: "error", Message: err.Error()}
		comps["signing"] = dto.ComponentStatus{Status: "disabled"}
		status = "degraded"
	} else {
		comps["credentials"] = dto.ComponentStatus{Status: "ok"}
		if err := c.signCheck(cred); err != nil {
			comps["signing"] = dto.ComponentStatus{Status: "error", Message: err.Error()}
			status = "degraded"
		} else {
			comps["signing"] = dto.ComponentStatus{Status: "ok"}
		}
	}

	if c.checkRedis != nil {
		if err := c.checkRedis(ctx); err != nil {
			log.Error("redis unavailable", logger.Err(err))
			comps["redis"] = dto.ComponentStatus{Status: "error", Message: "redis unavailable"}
			status = "unavailable"
		} else {
			comps["redis"] = dto.ComponentStatus{Status: "ok"}
		}
	} else {
		comps["redis"] = dto.ComponentStatus{Status: "disabled"}
	}

	version := os.Getenv("SERVICE_VERSION")
	if version != "" {
		w.Header().Set("X-Service-Version", version)
	}

	statusCode := http.StatusOK
	if status == "unavailable" {
		statusCode = http.StatusServiceUnavailable
	}

	log.Debug("health check completed",
		logger.String("status", status),
		logger.Int("components_count", len(comps)),
	)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(dto.ReadyResponse{
		Status:     status,
		Components: comps,
		Version:    version,
		Timestamp:  time.Now().UTC(),
	})
}

// signCheck emite un token real descartable y chequea su estructura. Una
// firma exitosa ya prueba que la clave se leyó, parseó y firmó; acá solo
// validamos que header y claims salieron como deben.
func (c *HealthController) signCheck(cred musickit.Credential) error {
	tok, err := c.issuer.Sign(cred)
	if err != nil {
		return err
	}

	parsed, _, err := jwtv5.NewParser().ParseUnverified(tok, jwtv5.MapClaims{})
	if err != nil {
		return fmt.Errorf("self-check: %w", err)
	}
	if alg, _ := parsed.Header["alg"].(string); alg != "ES256" {
		return fmt.Errorf("self-check: alg inesperado %q", alg)
	}
	if kid, _ := parsed.Header["kid"].(string); kid != cred.KeyID {
		return fmt.Errorf("self-check: kid inesperado %q", kid)
	}
	claims, ok := parsed.Claims.(jwtv5.MapClaims)
	if !ok {
		return fmt.Errorf("self-check: claims inválidos")
	}
	if iss, _ := claims["iss"].(string); iss != cred.TeamID {
		return fmt.Errorf("self-check: iss inesperado %q", iss)
	}
	return nil
}
