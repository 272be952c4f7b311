package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Register adds c to reg. When an equivalent collector is already registered
// the existing one is returned, so constructors can run more than once per
// process (tests, hot reload).
func Register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// Authorization decision results.
const (
	DecisionAllow           = "allow"
	DecisionDeny            = "deny"
	DecisionUnauthenticated = "unauthenticated"
)

// Cache lookup outcomes.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// AuthzMetrics counts enforcement decisions and the cache reads behind them.
type AuthzMetrics struct {
	decisions    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	repairs      *prometheus.CounterVec
}

// NewAuthzMetrics registers the iam_authz_* collectors with reg.
func NewAuthzMetrics(reg prometheus.Registerer) (*AuthzMetrics, error) {
	decisions, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iam",
		Subsystem: "authz",
		Name:      "decisions_total",
		Help:      "Authorization decisions partitioned by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	lookups, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iam",
		Subsystem: "authz",
		Name:      "cache_lookups_total",
		Help:      "Role permission cache reads partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	repairs, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iam",
		Subsystem: "authz",
		Name:      "cache_repairs_total",
		Help:      "Role permission cache rebuilds partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	return &AuthzMetrics{decisions: decisions, cacheLookups: lookups, repairs: repairs}, nil
}

func (m *AuthzMetrics) ObserveDecision(result string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(result).Inc()
}

func (m *AuthzMetrics) ObserveCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

func (m *AuthzMetrics) ObserveRepair(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.repairs.WithLabelValues(outcome).Inc()
}
