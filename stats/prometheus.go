package stats

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// PrometheusExporter serves a /metrics endpoint reflecting Registry's latest
// per-server snapshots, grounded on ptp/sptp/stats's PrometheusExporter —
// but scraping the in-process Registry directly instead of re-fetching over
// HTTP, since TRIGGER/PROC already live in this binary.
type PrometheusExporter struct {
	registry   *prometheus.Registry
	stats      *Registry
	listenPort int
	interval   time.Duration

	gauges map[string]prometheus.Gauge
}

// NewPrometheusExporter returns an exporter that scrapes stats every
// interval and serves the result on listenPort.
func NewPrometheusExporter(stats *Registry, listenPort int, interval time.Duration) *PrometheusExporter {
	return &PrometheusExporter{
		registry:   prometheus.NewRegistry(),
		stats:      stats,
		listenPort: listenPort,
		interval:   interval,
		gauges:     make(map[string]prometheus.Gauge),
	}
}

// Start scrapes once, then launches the periodic scrape loop and the
// metrics HTTP server. It does not return; callers run it in a goroutine.
func (e *PrometheusExporter) Start() {
	e.scrapeMetrics()
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for range ticker.C {
			e.scrapeMetrics()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", e.listenPort), mux))
}

func (e *PrometheusExporter) scrapeMetrics() {
	for _, snap := range e.stats.Snapshot() {
		e.set(snap.ServerID, "phat", snap.Data.Phat)
		e.set(snap.ServerID, "phat_err", snap.Data.PhatErr)
		e.set(snap.ServerID, "phat_local", snap.Data.PhatLocal)
		e.set(snap.ServerID, "ca", snap.Data.Ca)
		e.set(snap.ServerID, "ca_err", snap.Data.CaErr)
		e.set(snap.ServerID, "error_bound", snap.Err.ErrorBound)
		e.set(snap.ServerID, "error_bound_avg", snap.Err.ErrorBoundAvg)
		e.set(snap.ServerID, "min_rtt", snap.Err.MinRTT)
		e.set(snap.ServerID, "status", float64(snap.Data.Status))
		if snap.Preferred {
			e.set(snap.ServerID, "preferred", 1)
		} else {
			e.set(snap.ServerID, "preferred", 0)
		}
	}
}

func (e *PrometheusExporter) set(serverID, metric string, val float64) {
	key := flattenKey(serverID) + "_" + metric
	g, ok := e.gauges[key]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radclock_" + key,
			Help: fmt.Sprintf("radclock %s for server %s", metric, serverID),
		})
		if err := e.registry.Register(g); err != nil {
			are := &prometheus.AlreadyRegisteredError{}
			if errors.As(err, are) {
				g = are.ExistingCollector.(prometheus.Gauge)
			} else {
				log.Errorf("stats: failed to register metric %s: %v", key, err)
				return
			}
		}
		e.gauges[key] = g
	}
	g.Set(val)
}

func flattenKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
