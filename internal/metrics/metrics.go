package metrics

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pingcap/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/studiowebux/checkoutload/internal/checkout"
)

const namespace = "checkoutload"

// Collector holds the load test collectors and implements checkout.Reporter
type Collector struct {
	registry *prometheus.Registry

	ChecksTotal       *prometheus.CounterVec
	IterationsTotal   *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	IterationDuration prometheus.Histogram
	ActiveVUs         prometheus.Gauge
}

// NewCollector creates collectors registered on a private registry
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checks_total",
				Help:      "The number of evaluated checks",
			}, []string{"check", "result"}), // result: pass, fail
		IterationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "iterations_total",
				Help:      "The number of finished checkout iterations",
			}, []string{"shape", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Bucketed histogram of request duration per checkout step",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2.0, 15),
			}, []string{"step", "status"}),
		IterationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "iteration_duration_seconds",
				Help:      "Bucketed histogram of iteration duration, think time excluded",
				Buckets:   prometheus.ExponentialBuckets(0.002, 2.0, 15),
			}),
		ActiveVUs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_vus",
				Help:      "The number of running virtual users",
			}),
	}

	c.registry.MustRegister(
		c.ChecksTotal,
		c.IterationsTotal,
		c.RequestDuration,
		c.IterationDuration,
		c.ActiveVUs,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry exposes the private registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Check(name string, ok bool) {
	result := "pass"
	if !ok {
		result = "fail"
	}
	c.ChecksTotal.WithLabelValues(name, result).Inc()
}

func (c *Collector) Request(step checkout.Step, status int, d time.Duration) {
	c.RequestDuration.WithLabelValues(string(step), strconv.Itoa(status)).Observe(d.Seconds())
}

func (c *Collector) Iteration(res checkout.IterationResult) {
	c.IterationsTotal.WithLabelValues(res.Shape, string(res.Outcome)).Inc()
	c.IterationDuration.Observe(res.Duration.Seconds())
}

// VUStarted and VUStopped track the active virtual user gauge
func (c *Collector) VUStarted() { c.ActiveVUs.Inc() }
func (c *Collector) VUStopped() { c.ActiveVUs.Dec() }

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Router mounts the handler on GET /metrics
func (c *Collector) Router() http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", c.Handler())
	return r
}

// Serve exposes /metrics on addr until ctx is done
func (c *Collector) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Annotatef(err, "listen on %s", addr)
	}

	srv := &http.Server{Handler: c.Router(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && errors.Cause(err) != http.ErrServerClosed {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return nil
}
