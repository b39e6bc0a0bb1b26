package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OAuth protocol Prometheus metrics. Standalone package so the HTTP layer and
// the core can both record without import cycles.

var (
	AuthorizeRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_authorize_requests_total",
		Help: "Authorize endpoint outcomes, labeled by result (success or error kind)",
	}, []string{"result"})

	TokenRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_token_requests_total",
		Help: "Token endpoint outcomes, labeled by grant_type and result",
	}, []string{"grant_type", "result"})

	CodeReplays = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oauth_code_replays_total",
		Help: "Authorization code replay attempts that triggered the revocation cascade",
	})
)

// Register registers the OAuth metrics on the given registry (or the default
// if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{AuthorizeRequests, TokenRequests, CodeReplays} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
