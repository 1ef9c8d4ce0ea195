package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	EventosAuditoria    *prometheus.CounterVec
	AnomaliasIntegridad prometheus.Counter
	FanoutDescartados   prometheus.Counter

	DecisionesCreadas  prometheus.Counter
	DecisionesFirmadas prometheus.Counter
	FirmasFallidas     *prometheus.CounterVec
	DuracionFirma      prometheus.Histogram

	LatenciaHTTP *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		EventosAuditoria: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigej_auditoria_eventos_total",
			Help: "Audit events appended to the chain, by event kind",
		}, []string{"tipo"}),
		AnomaliasIntegridad: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigej_auditoria_anomalias_total",
			Help: "Integrity anomalies reported by chain verification",
		}),
		FanoutDescartados: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigej_auditoria_fanout_descartados_total",
			Help: "Audit events dropped by the best-effort Kafka fanout",
		}),
		DecisionesCreadas: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigej_decisiones_creadas_total",
			Help: "Judicial decisions created",
		}),
		DecisionesFirmadas: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigej_decisiones_firmadas_total",
			Help: "Judicial decisions signed",
		}),
		FirmasFallidas: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigej_firmas_fallidas_total",
			Help: "Failed signature attempts, by machine reason",
		}, []string{"motivo"}),
		DuracionFirma: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigej_firma_duracion_segundos",
			Help:    "Wall time of the signing operation including the external signer",
			Buckets: prometheus.DefBuckets,
		}),
		LatenciaHTTP: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sigej_http_latencia_segundos",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"ruta", "estado"}),
	}
}
