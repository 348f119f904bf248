package musickit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	appmetrics "github.com/dropDatabas3/musekit/internal/metrics"
)

// Service es el dueño de la caché de proceso del developer token. Un slot,
// inyectable: nada de estado global escondido. El primer lector dispara la
// única firma del arranque; los concurrentes se cuelgan del mismo vuelo
// (singleflight) y reciben el mismo valor.
type Service struct {
	resolver Resolver
	issuer   Issuer
	log      *zap.Logger

	mu    sync.RWMutex
	token string // "" = slot frío

	sf singleflight.Group
}

// NewService arma el servicio con sus piezas. log nil usa zap.NewNop (modo
// librería embebida).
func NewService(res Resolver, iss Issuer, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{resolver: res, issuer: iss, log: log}
}

// DeveloperToken devuelve el token cacheado; en frío resuelve y firma una
// sola vez aunque lleguen llamadas concurrentes. Nunca falla: ante cualquier
// error registra el detalle estructurado y entrega el placeholder, que
// también queda cacheado hasta un Refresh exitoso o el reinicio.
func (s *Service) DeveloperToken(ctx context.Context) string {
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()
	if tok != "" {
		return tok
	}

	ch := s.sf.DoChan("developer_token", func() (interface{}, error) {
		// Doble chequeo: otro vuelo pudo poblar el slot antes de entrar.
		s.mu.RLock()
		cur := s.token
		s.mu.RUnlock()
		if cur != "" {
			return cur, nil
		}
		tok := s.mint()
		s.mu.Lock()
		s.token = tok
		s.mu.Unlock()
		return tok, nil
	})

	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		// El vuelo sigue en background y poblará el slot; este caller
		// no espera más y se lleva el placeholder sin cachear nada.
		return DemoToken
	}
}

// Refresh firma de nuevo saltándose la caché. Solo un éxito pisa el slot;
// un error sale tal cual (tipado) y deja lo cacheado intacto, incluso si lo
// cacheado es el placeholder.
func (s *Service) Refresh(ctx context.Context) (string, error) {
	cred, err := s.resolver.Resolve()
	if err != nil {
		appmetrics.TokenRefreshes.WithLabelValues(ErrorCode(err)).Inc()
		return "", err
	}
	tok, err := s.sign(cred)
	if err != nil {
		appmetrics.TokenRefreshes.WithLabelValues(ErrorCode(err)).Inc()
		return "", err
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	s.log.Info("developer token refreshed",
		zap.String("team_id", cred.TeamID),
		zap.String("key_id", cred.KeyID),
		zap.String("key_source", cred.Source()))
	appmetrics.TokenRefreshes.WithLabelValues("ok").Inc()
	return tok, nil
}

// Configured informa si el entorno tiene credenciales completas ahora mismo.
// No lee la clave ni firma nada.
func (s *Service) Configured() bool {
	_, err := s.resolver.Resolve()
	return err == nil
}

// Status describe el slot sin exponer material sensible.
type Status struct {
	Configured bool `json:"configured"`
	Cached     bool `json:"cached"`
	Demo       bool `json:"demo"`
}

// Status es una foto del estado actual para diagnóstico.
func (s *Service) Status() Status {
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()
	return Status{
		Configured: s.Configured(),
		Cached:     tok != "",
		Demo:       tok == DemoToken,
	}
}

// mint intenta emitir un token real; ante cualquier falla loguea el error
// completo y degrada al placeholder. Nunca devuelve error.
func (s *Service) mint() string {
	cred, err := s.resolver.Resolve()
	if err != nil {
		s.log.Warn("developer token falls back to placeholder",
			zap.String("error_code", ErrorCode(err)),
			zap.Error(err))
		appmetrics.TokensIssued.WithLabelValues("demo").Inc()
		return s.issuer.Placeholder()
	}
	tok, err := s.sign(cred)
	if err != nil {
		s.log.Warn("developer token falls back to placeholder",
			zap.String("team_id", cred.TeamID),
			zap.String("key_id", cred.KeyID),
			zap.String("key_source", cred.Source()),
			zap.String("error_code", ErrorCode(err)),
			zap.Error(err))
		appmetrics.TokensIssued.WithLabelValues("demo").Inc()
		return s.issuer.Placeholder()
	}
	s.log.Info("developer token issued",
		zap.String("team_id", cred.TeamID),
		zap.String("key_id", cred.KeyID),
		zap.String("key_source", cred.Source()))
	appmetrics.TokensIssued.WithLabelValues("real").Inc()
	return tok
}

// sign mide la duración de la firma para el histograma de métricas.
func (s *Service) sign(cred Credential) (string, error) {
	start := time.Now()
	tok, err := s.issuer.Sign(cred)
	appmetrics.TokenSignDuration.Observe(time.Since(start).Seconds())
	return tok, err
}
