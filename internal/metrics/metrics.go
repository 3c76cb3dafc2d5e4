// Package metrics exposes Prometheus collectors for HTTP traffic and
// credential operations.
package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "usersvc"

// Options configures collector registration.
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

func (o Options) withDefaults() Options {
	if o.Namespace == "" {
		o.Namespace = defaultNamespace
	}
	if o.Registerer == nil {
		o.Registerer = prometheus.DefaultRegisterer
	}
	if len(o.Buckets) == 0 {
		o.Buckets = prometheus.DefBuckets
	}
	return o
}

// register registers c, reusing an identical collector if one is already
// registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
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

// HTTPMetrics exposes Prometheus collectors for request instrumentation.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics constructs collectors for HTTP request metrics and registers
// them with the configured registerer.
func NewHTTPMetrics(opts Options) (*HTTPMetrics, error) {
	opts = opts.withDefaults()

	requests, err := register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests partitioned by method, route, and status code.",
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(opts.Registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Histogram of HTTP request latencies in seconds partitioned by method, route, and status code.",
		Buckets:   opts.Buckets,
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := register(opts.Registerer, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: opts.Namespace,
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	}))
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{
		Requests: requests,
		Duration: duration,
		InFlight: inFlight,
	}, nil
}

// Handler returns a Gin middleware that records the HTTP metrics.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}

		m.Requests.With(labels).Inc()
		m.Duration.With(labels).Observe(time.Since(start).Seconds())
	}
}

// Outcome labels for AuthMetrics.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid_input"
	OutcomeConflict    = "conflict"
	OutcomeBadCreds    = "bad_credentials"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// AuthMetrics counts registration and login outcomes.
type AuthMetrics struct {
	Registrations *prometheus.CounterVec
	Logins        *prometheus.CounterVec
	HashDuration  prometheus.Histogram
}

// NewAuthMetrics constructs and registers the credential collectors.
func NewAuthMetrics(opts Options) (*AuthMetrics, error) {
	opts = opts.withDefaults()

	registrations, err := register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: "auth",
		Name:      "registrations_total",
		Help:      "Registration attempts partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	logins, err := register(opts.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace,
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	hashDuration, err := register(opts.Registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: opts.Namespace,
		Subsystem: "auth",
		Name:      "password_hash_duration_seconds",
		Help:      "Time spent hashing or verifying passwords.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	}))
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		Registrations: registrations,
		Logins:        logins,
		HashDuration:  hashDuration,
	}, nil
}

func (m *AuthMetrics) ObserveRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) ObserveHash(d time.Duration) {
	if m == nil {
		return
	}
	m.HashDuration.Observe(d.Seconds())
}
