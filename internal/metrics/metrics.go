// Package metrics exposes client-side REST and notification metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tgienger/tasktrack/internal/logger"
	"github.com/tgienger/tasktrack/internal/models"
)

// Registry holds every tasktrack collector
var Registry = prometheus.NewRegistry()

var (
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasktrack_api_requests_in_flight",
			Help: "REST requests currently in flight",
		},
	)
	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasktrack_api_requests_total",
			Help: "REST requests by status code and method",
		},
		[]string{"code", "method"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasktrack_api_request_duration_seconds",
			Help:    "REST request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"code", "method"},
	)
	Notices = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasktrack_notifications_total",
			Help: "User-facing notifications by level",
		},
		[]string{"level"},
	)
)

func init() {
	Registry.MustRegister(RequestsInFlight)
	Registry.MustRegister(Requests)
	Registry.MustRegister(RequestDuration)
	Registry.MustRegister(Notices)
}

// Transport instruments next (http.DefaultTransport when nil)
func Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(RequestsInFlight,
		promhttp.InstrumentRoundTripperCounter(Requests,
			promhttp.InstrumentRoundTripperDuration(RequestDuration, next),
		),
	)
}

// Handler serves the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Recorder is the journal side of a notification sink
type Recorder interface {
	Record(n models.Notification) error
}

// CountingNotifier counts notifications by level before passing them on
type CountingNotifier struct {
	Next Recorder
}

// Record counts n and forwards it
func (c CountingNotifier) Record(n models.Notification) error {
	Notices.WithLabelValues(string(n.Level)).Inc()
	if c.Next == nil {
		return nil
	}
	return c.Next.Record(n)
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
