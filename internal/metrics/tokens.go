package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Token-related Prometheus metrics. These are defined in a standalone package
// to avoid import cycles between the musickit core and HTTP packages.

var (
	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "musekit_tokens_issued_total",
		Help: "Developer tokens emitidos en frío, por modo (real|demo)",
	}, []string{"mode"})

	TokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "musekit_token_refreshes_total",
		Help: "Refrescos forzados por resultado (ok o código de error)",
	}, []string{"result"})

	TokenSignDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "musekit_token_sign_duration_seconds",
		Help:    "Duración de la firma ES256 en segundos",
		Buckets: prometheus.DefBuckets,
	})
)

// RegisterTokens registers the token metrics on the given registry (or default if nil).
func RegisterTokens(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(TokensIssued); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return err
		}
	}
	if err := reg.Register(TokenRefreshes); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return err
		}
	}
	if err := reg.Register(TokenSignDuration); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return err
		}
	}
	return nil
}
