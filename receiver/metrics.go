package receiver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coreframe/clustermanager/cluster"
)

// Metrics exposes the registry's occupancy and the receiver's per-verb
// traffic as Prometheus series. This is an ambient observability
// surface, not itself a wire-protocol concern.
type Metrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

// NewMetrics registers table-occupancy gauges against reg (computed
// live at scrape time via GaugeFunc, so there is nothing to keep in
// sync) and returns the request/error counters ServeMux wraps around
// the receiver.
func NewMetrics(registerer prometheus.Registerer, reg *cluster.Registry) *Metrics {
	tableGauge := func(name, help string, used func() int) {
		registerer.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Namespace: "clustermanager", Subsystem: "table", Name: name, Help: help},
			func() float64 { return float64(used()) },
		))
	}
	tableGauge("nodes_used", "Nodes currently occupying a table slot.", func() int { return len(reg.NodeIDsUsed()) })
	tableGauge("hosts_used", "Host-alias rows currently allocated.", func() int { return len(reg.HostIDsUsed()) })
	tableGauge("contexts_used", "Context rows currently allocated.", func() int { return len(reg.ContextIDsUsed()) })
	tableGauge("balancers_used", "Balancer rows currently allocated.", func() int { return len(reg.BalancerIDsUsed()) })
	tableGauge("domains_used", "Domain rows currently allocated.", func() int { return len(reg.DomainsUsed()) })
	tableGauge("sessions_used", "Session-id observations currently held.", func() int { return len(reg.SessionIDsUsed()) })

	registerer.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: "clustermanager", Name: "version", Help: "Current registry version counter."},
		func() float64 { return float64(reg.GetVersion()) },
	))

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clustermanager", Name: "requests_total", Help: "MCMP requests handled, by verb.",
		}, []string{"verb"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clustermanager", Name: "errors_total", Help: "MCMP error responses, by kind.",
		}, []string{"kind"}),
	}
	registerer.MustRegister(m.requests, m.errors)
	return m
}

// Wrap instruments h.ServeHTTP with per-verb request counting; error
// counting happens via the Type response header set by writeError.
func (m *Metrics) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.WithLabelValues(r.Method).Inc()
		rw := &statusCapture{ResponseWriter: w}
		h.ServeHTTP(rw, r)
		if kind := rw.Header().Get("Type"); kind != "" {
			m.errors.WithLabelValues(kind).Inc()
		}
	})
}

// Handler serves the standard Prometheus /metrics exposition format.
func (m *Metrics) Handler() http.Handler { return promhttp.Handler() }

// statusCapture lets Wrap read response headers after ServeHTTP
// returns without altering response semantics.
type statusCapture struct {
	http.ResponseWriter
}
