// Package metrics is the concrete implementation of the "metrics timer
// façade" the orchestrator calls into: a handful of Prometheus counters
// and histograms, pushed to an optional Pushgateway. Grounded directly on
// src/remote/metrics.go's downloadErrorCounter/push pattern, generalized
// from one counter to the small set recc's pipeline needs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"

	logging "gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("metrics")

// Sink is the interface the orchestrator and its collaborators depend on,
// so a no-op Sink can stand in during tests.
type Sink interface {
	CacheHit()
	CacheMiss()
	BytesUploaded(n int64)
	BytesDownloaded(n int64)
	ExecuteRetry()
	ActionDuration(d time.Duration)
	Push()
}

// Prometheus is the default Sink: in-process counters, optionally pushed
// to gatewayURL after each invocation.
type Prometheus struct {
	gatewayURL string

	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	bytesUploaded   prometheus.Counter
	bytesDownloaded prometheus.Counter
	executeRetries  prometheus.Counter
	actionDuration  prometheus.Histogram
}

// New builds a Prometheus sink. gatewayURL may be empty, in which case
// Push is a no-op.
func New(gatewayURL string) *Prometheus {
	return &Prometheus{
		gatewayURL: gatewayURL,
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recc_action_cache_hits_total",
			Help: "Number of actions served from the remote action cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recc_action_cache_misses_total",
			Help: "Number of actions that required remote execution.",
		}),
		bytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recc_cas_bytes_uploaded_total",
			Help: "Total bytes uploaded to the CAS.",
		}),
		bytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recc_cas_bytes_downloaded_total",
			Help: "Total bytes downloaded from the CAS.",
		}),
		executeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recc_execute_retries_total",
			Help: "Number of times the Execute stream was retried.",
		}),
		actionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "recc_action_duration_seconds",
			Help: "Wall-clock duration of a single recc invocation.",
		}),
	}
}

func (p *Prometheus) CacheHit()                      { p.cacheHits.Inc() }
func (p *Prometheus) CacheMiss()                     { p.cacheMisses.Inc() }
func (p *Prometheus) BytesUploaded(n int64)           { p.bytesUploaded.Add(float64(n)) }
func (p *Prometheus) BytesDownloaded(n int64)         { p.bytesDownloaded.Add(float64(n)) }
func (p *Prometheus) ExecuteRetry()                  { p.executeRetries.Inc() }
func (p *Prometheus) ActionDuration(d time.Duration) { p.actionDuration.Observe(d.Seconds()) }

// Push sends the current counter values to the configured Pushgateway.
func (p *Prometheus) Push() {
	if p.gatewayURL == "" {
		log.Debug("no Prometheus pushgateway URL configured, skipping metrics push")
		return
	}
	if err := push.New(p.gatewayURL, "recc").
		Collector(p.cacheHits).
		Collector(p.cacheMisses).
		Collector(p.bytesUploaded).
		Collector(p.bytesDownloaded).
		Collector(p.executeRetries).
		Collector(p.actionDuration).
		Format(expfmt.FmtText).
		Push(); err != nil {
		log.Warning("error pushing to Prometheus pushgateway: %s", err)
	}
}

// Noop discards everything; used when no metrics collection is wanted.
type Noop struct{}

func (Noop) CacheHit()                    {}
func (Noop) CacheMiss()                   {}
func (Noop) BytesUploaded(int64)          {}
func (Noop) BytesDownloaded(int64)        {}
func (Noop) ExecuteRetry()                {}
func (Noop) ActionDuration(time.Duration) {}
func (Noop) Push()                        {}
