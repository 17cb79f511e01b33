package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	deniedTotal     prometheus.Counter
	commandsTotal   *prometheus.CounterVec
	filesServed     prometheus.Counter
	speakerSessions prometheus.Gauge
}

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sonosbox_http_requests_total",
		Help: "HTTP requests handled, by status class",
	}, []string{"class"})
	deniedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sonosbox_http_denied_total",
		Help: "Requests rejected by source address",
	})
	commandsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sonosbox_device_commands_total",
		Help: "Commands issued to speakers, by action and outcome",
	}, []string{"action", "outcome"})
	filesServed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sonosbox_files_served_total",
		Help: "Media files streamed to speakers",
	})
	speakerSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sonosbox_speaker_sessions",
		Help: "Speaker sessions opened at startup",
	})

	registry.MustRegister(
		requestsTotal,
		deniedTotal,
		commandsTotal,
		filesServed,
		speakerSessions,
	)

	return &Metrics{
		registry:        registry,
		requestsTotal:   requestsTotal,
		deniedTotal:     deniedTotal,
		commandsTotal:   commandsTotal,
		filesServed:     filesServed,
		speakerSessions: speakerSessions,
	}
}

func (m *Metrics) ObserveStatus(status int) {
	m.requestsTotal.WithLabelValues(statusClass(status)).Inc()
}

func (m *Metrics) IncDenied() {
	m.deniedTotal.Inc()
}

func (m *Metrics) ObserveCommand(action string, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.commandsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncFilesServed() {
	m.filesServed.Inc()
}

func (m *Metrics) SetSpeakerSessions(n int) {
	m.speakerSessions.Set(float64(n))
}

func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
