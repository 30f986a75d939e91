package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tech-arch1tect/authsession/internal/apperror"
)

const namespace = "authsession"

// Result labels for auth outcome counters.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Service owns a private registry so several instances can coexist in one
// process.
type Service struct {
	registry *prometheus.Registry

	signups          *prometheus.CounterVec
	logins           *prometheus.CounterVec
	refreshes        *prometheus.CounterVec
	reuseDetected    prometheus.Counter
	logouts          *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
}

func NewService() *Service {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Service{
		registry: reg,
		signups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signups_total",
			Help:      "Total number of signup attempts by result",
		}, []string{"result"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Total number of login attempts by result",
		}, []string{"result"}),
		refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Total number of session refresh attempts by result",
		}, []string{"result"}),
		reuseDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_reuse_detected_total",
			Help:      "Total number of refresh tokens presented after rotation",
		}),
		logouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Total number of logouts, labelled by whether a stored session was cleared",
		}, []string{"cleared"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served",
		}),
	}
}

func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Service) RecordSignup(result string) {
	if s != nil {
		s.signups.WithLabelValues(result).Inc()
	}
}

func (s *Service) RecordLogin(result string) {
	if s != nil {
		s.logins.WithLabelValues(result).Inc()
	}
}

func (s *Service) RecordRefresh(result string) {
	if s != nil {
		s.refreshes.WithLabelValues(result).Inc()
	}
}

func (s *Service) RecordReuseDetected() {
	if s != nil {
		s.reuseDetected.Inc()
	}
}

func (s *Service) RecordLogout(cleared bool) {
	if s != nil {
		s.logouts.WithLabelValues(strconv.FormatBool(cleared)).Inc()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Middleware records request counts and latency keyed by the matched route.
func (s *Service) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			s.requestsInFlight.Inc()
			defer s.requestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = apperror.Status(err)
			}

			path := c.Path()
			if path == "" {
				path = "unknown"
			}
			labels := []string{c.Request().Method, path, strconv.Itoa(status)}
			s.requestsTotal.WithLabelValues(labels...).Inc()
			s.requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
