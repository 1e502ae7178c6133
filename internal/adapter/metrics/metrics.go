package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rulehub"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg, EnableOpenMetrics: true})
}

// Set groups every collector the server registers.
type Set struct {
	HTTP      *HTTPMetrics
	Votes     *VoteMetrics
	Guard     *GuardMetrics
	RateLimit *RateLimitMetrics
	Redis     *RedisMetrics
	DB        *DBMetrics
	Breakers  *CircuitBreakerMetrics
}

func NewSet(reg prometheus.Registerer) *Set {
	return &Set{
		HTTP:      NewHTTPMetrics(reg),
		Votes:     NewVoteMetrics(reg),
		Guard:     NewGuardMetrics(reg),
		RateLimit: NewRateLimitMetrics(reg),
		Redis:     NewRedisMetrics(reg),
		DB:        NewDBMetrics(reg),
		Breakers:  NewCircuitBreakerMetrics(reg),
	}
}
