package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Metrics are created eagerly so instrumented code never observes a nil
// collector; InitCustomMetrics only attaches them to a registry.
var (
	SessionsEstablishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessiongate_sessions_established_total",
		Help: "Total number of session credentials minted and written.",
	})
	SessionsRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessiongate_sessions_revoked_total",
		Help: "Total number of subjects revoked on logout.",
	})
	ActiveSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sessiongate_active_sessions_gauge",
		Help: "Current number of sessions established minus sessions terminated.",
	})
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessiongate_logins_success_total",
		Help: "Total number of successful logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessiongate_logins_failure_total",
		Help: "Total number of failed logins.",
	})
	UserRegisteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessiongate_users_registered_total",
		Help: "Total number of users registered.",
	})
	ReconcilerRollbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessiongate_reconciler_rollbacks_total",
		Help: "Total number of compensating user record deletions.",
	})
)

// InitCustomMetrics registers the gateway's Prometheus metrics. It should
// be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}
	for _, c := range []prometheus.Collector{
		SessionsEstablishedTotal,
		SessionsRevokedTotal,
		ActiveSessionsGauge,
		LoginSuccessTotal,
		LoginFailureTotal,
		UserRegisteredTotal,
		ReconcilerRollbacksTotal,
	} {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
