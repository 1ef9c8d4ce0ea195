package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"sigej/internal/platform/metrics"
	dErrors "sigej/pkg/domain-errors"
	"sigej/pkg/requestcontext"
)

// Fanout mirrors appended events to a secondary sink (Kafka for SIEM). It
// must never block or fail the append path; delivery is best effort.
type Fanout interface {
	Publicar(evento Evento)
}

// Service owns the chain semantics: hashing, linkage and verification. The
// store only provides serialized persistence.
type Service struct {
	store   Store
	metrics *metrics.Metrics
	fanout  Fanout
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithFanout sets the best-effort secondary sink.
func WithFanout(f Fanout) Option {
	return func(s *Service) { s.fanout = f }
}

func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Registrar chains and persists one event. This is the fail-closed write: a
// triggering business operation must abort when Registrar fails, because a
// signed decision with no audit entry is a worse failure than a rejected
// request.
func (s *Service) Registrar(ctx context.Context, borrador Borrador) (Evento, error) {
	if !borrador.Tipo.Valido() {
		return Evento{}, dErrors.New(dErrors.CodeValidation, "tipo de evento desconocido: "+string(borrador.Tipo))
	}
	if !borrador.Modulo.Valido() {
		return Evento{}, dErrors.New(dErrors.CodeValidation, "módulo desconocido: "+string(borrador.Modulo))
	}

	// Microsecond precision: timestamptz stores microseconds, and the hash
	// must recompute identically after a round trip through the store.
	creadoEn := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)

	evento, err := s.store.Append(ctx, func(secuencia uint64, hashAnterior string) (Evento, error) {
		e := Evento{
			Secuencia:     secuencia,
			Cadena:        CadenaPrincipal,
			Tipo:          borrador.Tipo,
			FuncionarioID: borrador.FuncionarioID,
			Correo:        borrador.Correo,
			Modulo:        borrador.Modulo,
			Descripcion:   borrador.Descripcion,
			Datos:         borrador.Datos,
			IP:            borrador.IP,
			UserAgent:     borrador.UserAgent,
			CreadoEn:      creadoEn,
			HashAnterior:  hashAnterior,
		}
		e.Hash = e.CalcularHash()
		return e, nil
	})
	if err != nil {
		return Evento{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "no se pudo registrar el evento de auditoría")
	}

	if s.metrics != nil {
		s.metrics.EventosAuditoria.WithLabelValues(string(evento.Tipo)).Inc()
	}
	if s.fanout != nil {
		s.fanout.Publicar(evento)
	}
	return evento, nil
}

// Consultar returns one page of events matching the filters, ordered by
// append sequence. Pagination is stateless: resume with Pagina.Siguiente.
func (s *Service) Consultar(ctx context.Context, filtros Filtros) (Pagina, error) {
	if filtros.Limite <= 0 || filtros.Limite > limiteMaximo {
		filtros.Limite = limiteMaximo
	}

	eventos, err := s.store.Consultar(ctx, filtros)
	if err != nil {
		return Pagina{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "no se pudo consultar la auditoría")
	}

	pagina := Pagina{Eventos: eventos}
	if len(eventos) == filtros.Limite {
		pagina.Siguiente = eventos[len(eventos)-1].Secuencia
	}
	return pagina, nil
}

const limiteMaximo = 500

// ExportarCSV writes every event matching the filters as CSV, paging through
// the store with the sequence cursor so exports are not capped at one page.
func (s *Service) ExportarCSV(ctx context.Context, filtros Filtros, w io.Writer, seudonimo Seudonimizador) error {
	var eventos []Evento
	for {
		pagina, err := s.Consultar(ctx, filtros)
		if err != nil {
			return err
		}
		eventos = append(eventos, pagina.Eventos...)
		if pagina.Siguiente == 0 {
			break
		}
		filtros.Cursor = pagina.Siguiente
	}
	return EscribirCSV(w, eventos, seudonimo)
}

// VerificarRango re-walks the chain over the closed range [desde, hasta] and
// recomputes every hash. It never trusts stored validity flags and never
// fails for data-level findings; those are anomalies in the report. Only
// store I/O produces an error.
func (s *Service) VerificarRango(ctx context.Context, desde, hasta uint64) (InformeIntegridad, error) {
	if desde == 0 {
		desde = 1
	}
	ultima, err := s.store.UltimaSecuencia(ctx)
	if err != nil {
		return InformeIntegridad{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "no se pudo leer la cadena")
	}
	if hasta == 0 || hasta > ultima {
		hasta = ultima
	}

	informe := InformeIntegridad{Valido: true, Desde: desde, Hasta: hasta}
	if hasta < desde {
		return informe, nil
	}

	// Fetch one entry before the range when possible so the first in-range
	// link can be checked against its true predecessor.
	desdeLectura := desde
	if desdeLectura > 1 {
		desdeLectura--
	}
	eventos, err := s.store.Rango(ctx, desdeLectura, hasta)
	if err != nil {
		return InformeIntegridad{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "no se pudo leer la cadena")
	}

	esperada := desdeLectura
	var anterior *Evento
	for i := range eventos {
		e := &eventos[i]

		if e.Secuencia != esperada {
			faltaDesde := max(esperada, desde)
			informe.Anomalias = append(informe.Anomalias, Anomalia{
				Secuencia: e.Secuencia,
				Tipo:      AnomaliaSecuencia,
				Detalle:   fmt.Sprintf("faltan las secuencias %d a %d", faltaDesde, e.Secuencia-1),
			})
		} else if anterior != nil && e.HashAnterior != anterior.Hash {
			informe.Anomalias = append(informe.Anomalias, Anomalia{
				Secuencia:       e.Secuencia,
				Tipo:            AnomaliaEnlace,
				HashAlmacenado:  e.HashAnterior,
				HashRecalculado: anterior.Hash,
				Detalle:         "el enlace no coincide con el hash del evento anterior",
			})
		}

		if e.Secuencia == 1 && e.HashAnterior != HashGenesis {
			informe.Anomalias = append(informe.Anomalias, Anomalia{
				Secuencia:      1,
				Tipo:           AnomaliaGenesis,
				HashAlmacenado: e.HashAnterior,
				Detalle:        "el primer enlace no coincide con la constante génesis",
			})
		}

		// Only entries inside the requested range get hash recomputation; the
		// predecessor fetched for linkage is outside the caller's contract.
		if e.Secuencia >= desde {
			informe.Revisados++
			if recalculado := e.CalcularHash(); recalculado != e.Hash {
				informe.Anomalias = append(informe.Anomalias, Anomalia{
					Secuencia:       e.Secuencia,
					Tipo:            AnomaliaHash,
					HashAlmacenado:  e.Hash,
					HashRecalculado: recalculado,
					Detalle:         "el hash almacenado no coincide con el recalculado",
				})
			}
		}

		anterior = e
		esperada = e.Secuencia + 1
	}

	if esperada <= hasta {
		informe.Anomalias = append(informe.Anomalias, Anomalia{
			Secuencia: hasta,
			Tipo:      AnomaliaSecuencia,
			Detalle:   fmt.Sprintf("faltan las secuencias %d a %d", max(esperada, desde), hasta),
		})
	}

	informe.Valido = len(informe.Anomalias) == 0
	if s.metrics != nil && !informe.Valido {
		s.metrics.AnomaliasIntegridad.Add(float64(len(informe.Anomalias)))
	}
	return informe, nil
}
