// Package metrics собирает счётчики хранилища улик для Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Результаты проверки целостности.
const (
	ResultIntact   = "intact"
	ResultTampered = "tampered"
)

// Metrics — набор счётчиков на собственном реестре.
// Методы безопасны для nil-получателя: сервисы в тестах работают без метрик.
type Metrics struct {
	registry          *prometheus.Registry
	ingested          prometheus.Counter
	retrieved         prometheus.Counter
	verifications     *prometheus.CounterVec
	integrityFailures *prometheus.CounterVec
}

// New регистрирует счётчики и стандартные коллекторы процесса и Go runtime.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evidence_ingested_total",
			Help: "Evidence items encrypted and stored.",
		}),
		retrieved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evidence_retrieved_total",
			Help: "Evidence items decrypted and served to their owner.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_verifications_total",
			Help: "Integrity verifications by result.",
		}, []string{"result"}),
		integrityFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evidence_integrity_failures_total",
			Help: "Authenticated decryption failures by operation.",
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.ingested, m.retrieved, m.verifications, m.integrityFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Ingested() {
	if m != nil {
		m.ingested.Inc()
	}
}

func (m *Metrics) Retrieved() {
	if m != nil {
		m.retrieved.Inc()
	}
}

// Verified учитывает результат проверки целостности.
func (m *Metrics) Verified(intact bool) {
	if m == nil {
		return
	}
	result := ResultTampered
	if intact {
		result = ResultIntact
	}
	m.verifications.WithLabelValues(result).Inc()
}

// IntegrityFailure учитывает неудачную аутентифицированную расшифровку.
func (m *Metrics) IntegrityFailure(op string) {
	if m != nil {
		m.integrityFailures.WithLabelValues(op).Inc()
	}
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
