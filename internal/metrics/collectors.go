package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/dmlab/internal/models"
)

// Collectors holds every Prometheus series the service exports.
type Collectors struct {
	reg *prometheus.Registry

	Requests       *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	CacheLookups   *prometheus.CounterVec
	Saves          *prometheus.CounterVec
	Normalizations *prometheus.CounterVec
	Records        *prometheus.GaugeVec
}

func NewCollectors() *Collectors {
	c := &Collectors{
		reg: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dmlab", Name: "http_requests_total", Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dmlab", Name: "http_request_duration_seconds", Help: "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dmlab", Name: "memo_lookups_total", Help: "Memoized query lookups by kind and result.",
		}, []string{"kind", "result"}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dmlab", Name: "state_saves_total", Help: "State persistence attempts by backend and result.",
		}, []string{"backend", "result"}),
		Normalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dmlab", Name: "normalizations_total", Help: "Loaded payloads by detected schema version.",
		}, []string{"detected_version", "migrated"}),
		Records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dmlab", Name: "state_records", Help: "Records currently held in the state.",
		}, []string{"kind"}),
	}
	c.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.Requests, c.Duration, c.CacheLookups, c.Saves, c.Normalizations, c.Records,
	)
	return c
}

// Handler serves the exposition format for this registry.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

func (c *Collectors) Registry() *prometheus.Registry { return c.reg }

// ObserveState refreshes the record gauges.
func (c *Collectors) ObserveState(st models.AppState) {
	if c == nil {
		return
	}
	c.Records.WithLabelValues("logs").Set(float64(len(st.Logs)))
	c.Records.WithLabelValues("experiments").Set(float64(len(st.Experiments)))
	c.Records.WithLabelValues("prospects").Set(float64(len(st.Prospects)))
	c.Records.WithLabelValues("accounts").Set(float64(len(st.Config.Accounts)))
}

func (c *Collectors) lookup(kind string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(kind, result).Inc()
}
