package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sigej/internal/audit"
	"sigej/internal/firma"
	"sigej/internal/integrity"
	"sigej/internal/platform/metrics"
	"sigej/pkg/domain"
	dErrors "sigej/pkg/domain-errors"
	"sigej/pkg/platform/sentinel"
	"sigej/pkg/platform/tx"
	"sigej/pkg/requestcontext"
)

// Auditoria is the fail-closed audit sink. Every transition appends an event
// inside the same transaction as its store write; an append failure aborts
// the business operation, because a transition with no audit entry is a worse
// failure than a rejected request.
type Auditoria interface {
	Registrar(ctx context.Context, borrador audit.Borrador) (audit.Evento, error)
}

const (
	timeoutFirmaPorDefecto = 10 * time.Second
	reintentosPersistencia = 3
)

// Service owns the lifecycle rules. Storage, signing and auditing stay behind
// interfaces so the rules remain centralized and testable.
type Service struct {
	store        Store
	auditoria    Auditoria
	certificados firma.CertificadoStore
	firmante     firma.Firmante
	runner       tx.Runner
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	timeoutFirma time.Duration
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTimeoutFirma bounds the external signer call.
func WithTimeoutFirma(d time.Duration) Option {
	return func(s *Service) { s.timeoutFirma = d }
}

func NewService(store Store, auditoria Auditoria, certificados firma.CertificadoStore, firmante firma.Firmante, runner tx.Runner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("decision store is required")
	}
	if auditoria == nil {
		return nil, fmt.Errorf("audit service is required")
	}
	if certificados == nil {
		return nil, fmt.Errorf("certificate store is required")
	}
	if firmante == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if runner == nil {
		runner = tx.NoopRunner{}
	}
	s := &Service{
		store:        store,
		auditoria:    auditoria,
		certificados: certificados,
		firmante:     firmante,
		runner:       runner,
		tracer:       otel.Tracer("sigej/decision"),
		timeoutFirma: timeoutFirmaPorDefecto,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Crear produces a new decision in BORRADOR owned by the requesting judge.
func (s *Service) Crear(ctx context.Context, input CrearInput, actor requestcontext.ActorContext) (*Decision, error) {
	if actor.Rol != domain.RolJuez {
		return nil, s.denegar(ctx, actor, "crear decisión")
	}
	if !input.Tipo.Valido() {
		return nil, dErrors.NewMotivo(dErrors.CodeValidation, dErrors.MotivoTipoInvalido,
			"tipoDecision debe ser AUTO, PROVIDENCIA o SENTENCIA")
	}
	if !TituloValido(input.Titulo) {
		return nil, dErrors.NewMotivo(dErrors.CodeValidation, dErrors.MotivoTituloInvalido,
			fmt.Sprintf("el título debe tener al menos %d caracteres", longitudMinimaTitulo))
	}
	if input.CausaID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "la causa es obligatoria")
	}

	ahora := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
	d := &Decision{
		ID:            domain.NewDecisionID(),
		CausaID:       input.CausaID,
		Tipo:          input.Tipo,
		Titulo:        input.Titulo,
		Contenido:     input.Contenido,
		JuezID:        actor.FuncionarioID,
		Estado:        EstadoBorrador,
		CreadoEn:      ahora,
		ActualizadoEn: ahora,
	}

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Crear(ctx, d); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "no se pudo crear la decisión")
		}
		return s.registrar(ctx, actor, audit.TipoCreacionDecision,
			fmt.Sprintf("decisión %s creada (%s)", d.ID, d.Tipo), d)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DecisionesCreadas.Inc()
	}
	return d, nil
}

// Actualizar patches content fields. Allowed only in BORRADOR and only by the
// authoring judge; a signed decision reports an immutable conflict.
func (s *Service) Actualizar(ctx context.Context, id domain.DecisionID, input ActualizarInput, actor requestcontext.ActorContext) (*Decision, error) {
	d, err := s.cargar(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.FuncionarioID != d.JuezID {
		return nil, s.denegar(ctx, actor, "actualizar decisión "+id.String())
	}
	if err := s.exigirEstado(d, EstadoBorrador); err != nil {
		return nil, err
	}

	if input.Titulo != nil {
		if !TituloValido(*input.Titulo) {
			return nil, dErrors.NewMotivo(dErrors.CodeValidation, dErrors.MotivoTituloInvalido,
				fmt.Sprintf("el título debe tener al menos %d caracteres", longitudMinimaTitulo))
		}
		d.Titulo = *input.Titulo
	}
	if input.Contenido != nil {
		d.Contenido = *input.Contenido
	}
	d.ActualizadoEn = requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.ActualizarBorrador(ctx, d); err != nil {
			return s.traducirEstado(err, "no se pudo actualizar la decisión")
		}
		return s.registrar(ctx, actor, audit.TipoActualizacionDecision,
			"decisión "+id.String()+" actualizada", d)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// PrepararFirma transitions BORRADOR → LISTA_PARA_FIRMA after checking the
// requester holds a valid signing certificate. Certificate problems are
// reported distinctly from authorization failures so the caller can route the
// user to enrollment.
func (s *Service) PrepararFirma(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (*Decision, error) {
	d, err := s.cargar(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.FuncionarioID != d.JuezID {
		return nil, s.denegar(ctx, actor, "preparar firma de decisión "+id.String())
	}
	if err := s.exigirEstado(d, EstadoBorrador); err != nil {
		return nil, err
	}
	if _, err := s.certificadoVigente(ctx, actor.FuncionarioID); err != nil {
		return nil, err
	}

	cuando := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.CambiarEstado(ctx, id, EstadoBorrador, EstadoListaParaFirma, cuando); err != nil {
			return s.traducirEstado(err, "no se pudo preparar la firma")
		}
		return s.registrar(ctx, actor, audit.TipoDecisionListaFirma,
			"decisión "+id.String()+" lista para firma", d)
	})
	if err != nil {
		return nil, err
	}

	d.Estado = EstadoListaParaFirma
	d.ActualizadoEn = cuando
	return d, nil
}

// Firmar renders the canonical document, computes its integrity hash, invokes
// the external signer and persists the FIRMADA state atomically with the
// audit entry. The persistence step is idempotent per id and retried on
// transient store failure; the signer is never re-invoked within one call. A
// signer timeout leaves the decision in LISTA_PARA_FIRMA so a retry of Firmar
// is safe. Once successful, the decision's content is immutable forever.
func (s *Service) Firmar(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (*Decision, error) {
	ctx, span := s.tracer.Start(ctx, "decision.firmar",
		trace.WithAttributes(attribute.String("decision.id", id.String())))
	defer span.End()

	inicio := time.Now()
	d, err := s.firmar(ctx, id, actor)
	if err != nil {
		if s.metrics != nil {
			s.metrics.FirmasFallidas.WithLabelValues(motivoMetrica(err)).Inc()
		}
		span.RecordError(err)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DecisionesFirmadas.Inc()
		s.metrics.DuracionFirma.Observe(time.Since(inicio).Seconds())
	}
	return d, nil
}

func (s *Service) firmar(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (*Decision, error) {
	d, err := s.cargar(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.FuncionarioID != d.JuezID {
		return nil, s.denegar(ctx, actor, "firmar decisión "+id.String())
	}
	switch d.Estado {
	case EstadoListaParaFirma:
		// proceed
	case EstadoFirmada:
		return nil, dErrors.NewMotivo(dErrors.CodeConflict, dErrors.MotivoYaFirmada,
			"la decisión ya está firmada")
	default:
		return nil, dErrors.NewMotivo(dErrors.CodeConflict, dErrors.MotivoEstadoInvalido,
			"la decisión no está lista para firma")
	}

	cert, err := s.certificadoVigente(ctx, actor.FuncionarioID)
	if err != nil {
		return nil, err
	}

	// Render exactly what will be persisted; the hash covers these bytes.
	documento := RenderizarDocumento(d)
	hashIntegridad := integrity.SumBytes(documento)

	ctxFirma, cancelar := context.WithTimeout(ctx, s.timeoutFirma)
	defer cancelar()
	resultado, err := s.firmante.Firmar(ctxFirma, cert, documento)
	if err != nil {
		return nil, traducirErrorFirmante(err)
	}

	firmaDecision := FirmaDecision{
		HashIntegridad:     hashIntegridad,
		Algoritmo:          resultado.Algoritmo,
		CertificadoTitular: cert.Titular,
		CertificadoSerie:   resultado.Serie,
		FirmadoEn:          resultado.FirmadoEn.UTC().Truncate(time.Microsecond),
		ArtefactoRef:       resultado.ArtefactoRef,
	}

	// The signer has acted; its side effect is irreversible. Persist with
	// bounded retries instead of ever re-signing.
	datos, _ := json.Marshal(map[string]string{
		"decision_id":     id.String(),
		"causa_id":        d.CausaID.String(),
		"hash_integridad": hashIntegridad,
		"certificado":     firmaDecision.CertificadoSerie,
		"artefacto":       firmaDecision.ArtefactoRef,
	})
	var errPersistencia error
	for intento := 0; intento < reintentosPersistencia; intento++ {
		errPersistencia = s.runner.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.store.GuardarFirma(ctx, id, firmaDecision, firmaDecision.FirmadoEn); err != nil {
				return err
			}
			return s.registrarDatos(ctx, actor, audit.TipoFirmaDecision,
				"decisión "+id.String()+" firmada", datos)
		})
		if errPersistencia == nil {
			break
		}
		if errors.Is(errPersistencia, sentinel.ErrInvalidState) {
			// A concurrent Firmar won the conditional update.
			return nil, dErrors.NewMotivo(dErrors.CodeConflict, dErrors.MotivoYaFirmada,
				"la decisión ya está firmada")
		}
		if !retryable(errPersistencia) {
			break
		}
	}
	if errPersistencia != nil {
		return nil, dErrors.Wrap(errPersistencia, dErrors.CodeUnavailable,
			"no se pudo persistir la firma")
	}

	d.Estado = EstadoFirmada
	d.Firma = &firmaDecision
	d.ActualizadoEn = firmaDecision.FirmadoEn
	return d, nil
}

// VerificarIntegridad recomputes the document hash from stored content and
// compares it with the persisted integrity hash. It never trusts a cached
// validity flag.
func (s *Service) VerificarIntegridad(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (ResultadoIntegridad, error) {
	d, err := s.cargar(ctx, id)
	if err != nil {
		return ResultadoIntegridad{}, err
	}
	if actor.FuncionarioID != d.JuezID && !actor.Rol.PuedeLeerTodas() {
		return ResultadoIntegridad{}, s.denegar(ctx, actor, "verificar decisión "+id.String())
	}
	if d.Firma == nil {
		return ResultadoIntegridad{}, dErrors.NewMotivo(dErrors.CodeConflict, dErrors.MotivoEstadoInvalido,
			"la decisión aún no tiene firma que verificar")
	}

	recalculado := HashDocumento(d)
	resultado := ResultadoIntegridad{
		Integro:         recalculado == d.Firma.HashIntegridad,
		HashAlmacenado:  d.Firma.HashIntegridad,
		HashRecalculado: recalculado,
	}
	if resultado.Integro {
		resultado.Detalles = "el contenido coincide con el hash firmado"
	} else {
		resultado.Detalles = "el contenido almacenado no coincide con el hash firmado"
		if s.metrics != nil {
			s.metrics.AnomaliasIntegridad.Inc()
		}
	}

	datos, _ := json.Marshal(map[string]any{
		"decision_id": id.String(),
		"integro":     resultado.Integro,
	})
	if err := s.registrarDatos(ctx, actor, audit.TipoVerificacionIntegridad,
		"verificación de integridad de decisión "+id.String(), datos); err != nil {
		return ResultadoIntegridad{}, err
	}
	return resultado, nil
}

// Eliminar hard-deletes a draft. Any other state is a conflict; signed
// content is never physically removed.
func (s *Service) Eliminar(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) error {
	d, err := s.cargar(ctx, id)
	if err != nil {
		return err
	}
	if actor.FuncionarioID != d.JuezID {
		return s.denegar(ctx, actor, "eliminar decisión "+id.String())
	}
	if err := s.exigirEstado(d, EstadoBorrador); err != nil {
		return err
	}

	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Eliminar(ctx, id); err != nil {
			return s.traducirEstado(err, "no se pudo eliminar la decisión")
		}
		return s.registrar(ctx, actor, audit.TipoEliminacionDecision,
			"borrador "+id.String()+" eliminado", d)
	})
}

// Anular flags a signed decision as annulled. Logical only: the signed
// content and its hash remain stored, retrievable and verifiable.
func (s *Service) Anular(ctx context.Context, id domain.DecisionID, motivo string, actor requestcontext.ActorContext) (*Decision, error) {
	d, err := s.cargar(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.FuncionarioID != d.JuezID {
		return nil, s.denegar(ctx, actor, "anular decisión "+id.String())
	}
	if d.Estado != EstadoFirmada {
		return nil, dErrors.NewMotivo(dErrors.CodeConflict, dErrors.MotivoEstadoInvalido,
			"sólo una decisión firmada puede anularse")
	}

	cuando := requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Anular(ctx, id, motivo, cuando); err != nil {
			return s.traducirEstado(err, "no se pudo anular la decisión")
		}
		return s.registrar(ctx, actor, audit.TipoAnulacionDecision,
			"decisión "+id.String()+" anulada: "+motivo, d)
	})
	if err != nil {
		return nil, err
	}

	d.Estado = EstadoAnulada
	d.AnuladaEn = &cuando
	d.MotivoAnulacion = motivo
	d.ActualizadoEn = cuando
	return d, nil
}

// Obtener returns a decision for reading. The author reads their own;
// ADMIN_CJ and SECRETARIO read across all decisions.
func (s *Service) Obtener(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (*Decision, error) {
	d, err := s.cargar(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.FuncionarioID != d.JuezID && !actor.Rol.PuedeLeerTodas() {
		return nil, s.denegar(ctx, actor, "leer decisión "+id.String())
	}
	return d, nil
}

// Listar returns decisions visible to the actor. Judges see their own.
func (s *Service) Listar(ctx context.Context, filtros ListarFiltros, actor requestcontext.ActorContext) ([]*Decision, error) {
	if !actor.Rol.PuedeLeerTodas() {
		filtros.JuezID = actor.FuncionarioID
	}
	decisiones, err := s.store.Listar(ctx, filtros)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "no se pudo listar decisiones")
	}
	return decisiones, nil
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func (s *Service) cargar(ctx context.Context, id domain.DecisionID) (*Decision, error) {
	d, err := s.store.PorID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.NewMotivo(dErrors.CodeNotFound, dErrors.MotivoNoEncontrada, "decisión no encontrada")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "no se pudo leer la decisión")
	}
	return d, nil
}

// exigirEstado reports the immutable/state conflict for mutation paths.
func (s *Service) exigirEstado(d *Decision, esperado Estado) error {
	if d.Estado == esperado {
		return nil
	}
	if d.Estado == EstadoFirmada || d.Estado == EstadoAnulada {
		return dErrors.NewMotivo(dErrors.CodeConflict, dErrors.MotivoYaFirmada,
			"la decisión está firmada y es inmutable")
	}
	return dErrors.NewMotivo(dErrors.CodeConflict, dErrors.MotivoEstadoInvalido,
		"operación inválida para el estado "+string(d.Estado))
}

// certificadoVigente loads and validates the requester's credential.
func (s *Service) certificadoVigente(ctx context.Context, id domain.FuncionarioID) (firma.CertificadoDescriptor, error) {
	cert, err := s.certificados.PorFuncionario(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return firma.CertificadoDescriptor{}, dErrors.NewMotivo(dErrors.CodeCertificate, dErrors.MotivoCertNoEncontrado,
			"el funcionario no tiene certificado de firma")
	}
	if err != nil {
		return firma.CertificadoDescriptor{}, dErrors.Wrap(err, dErrors.CodeUnavailable,
			"no se pudo consultar el certificado")
	}
	if !cert.VigenteEn(requestcontext.Now(ctx)) {
		return firma.CertificadoDescriptor{}, dErrors.NewMotivo(dErrors.CodeCertificate, dErrors.MotivoCertExpirado,
			"el certificado de firma está fuera de su período de vigencia")
	}
	return cert, nil
}

// denegar appends the ACCESO_DENEGADO event and returns the authorization
// failure. The append is fail-closed like every other: an audit outage turns
// the denial into an unavailability error rather than dropping the record.
func (s *Service) denegar(ctx context.Context, actor requestcontext.ActorContext, accion string) error {
	datos, _ := json.Marshal(map[string]string{"accion": accion, "rol": string(actor.Rol)})
	if err := s.registrarDatos(ctx, actor, audit.TipoAccesoDenegado, "acceso denegado: "+accion, datos); err != nil {
		return err
	}
	return dErrors.NewMotivo(dErrors.CodeForbidden, dErrors.MotivoNoAutorizado,
		"el funcionario no está autorizado para esta operación")
}

func (s *Service) registrar(ctx context.Context, actor requestcontext.ActorContext, tipo audit.TipoEvento, descripcion string, d *Decision) error {
	datos, _ := json.Marshal(map[string]string{
		"decision_id": d.ID.String(),
		"causa_id":    d.CausaID.String(),
		"estado":      string(d.Estado),
	})
	return s.registrarDatos(ctx, actor, tipo, descripcion, datos)
}

func (s *Service) registrarDatos(ctx context.Context, actor requestcontext.ActorContext, tipo audit.TipoEvento, descripcion string, datos json.RawMessage) error {
	_, err := s.auditoria.Registrar(ctx, audit.Borrador{
		Tipo:          tipo,
		FuncionarioID: actor.FuncionarioID,
		Correo:        actor.Correo,
		Modulo:        audit.ModuloDocumentos,
		Descripcion:   descripcion,
		Datos:         datos,
		IP:            requestcontext.ClientIP(ctx),
		UserAgent:     requestcontext.UserAgent(ctx),
	})
	return err
}

func (s *Service) traducirEstado(err error, mensaje string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.NewMotivo(dErrors.CodeNotFound, dErrors.MotivoNoEncontrada, "decisión no encontrada")
	}
	if errors.Is(err, sentinel.ErrInvalidState) {
		// The state moved between the read and the conditional write.
		return dErrors.NewMotivo(dErrors.CodeConflict, dErrors.MotivoEstadoInvalido,
			"el estado de la decisión cambió; vuelva a consultarla")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, mensaje)
}

func traducirErrorFirmante(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.WrapMotivo(err, dErrors.CodeCertificate, dErrors.MotivoCertExpirado,
			"el firmante rechazó el certificado por expirado")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.WrapMotivo(err, dErrors.CodeCertificate, dErrors.MotivoCertInvalido,
			"el firmante rechazó el certificado")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.WrapMotivo(err, dErrors.CodeUnavailable, dErrors.MotivoFirmanteNoDisponible,
			"el firmante externo no está disponible; la decisión sigue lista para firma")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "fallo inesperado del firmante")
	}
}

func retryable(err error) bool {
	return !dErrors.HasCode(err, dErrors.CodeValidation) &&
		!dErrors.HasCode(err, dErrors.CodeForbidden) &&
		!dErrors.HasCode(err, dErrors.CodeConflict)
}

func motivoMetrica(err error) string {
	if motivo := dErrors.MotivoDe(err); motivo != "" {
		return motivo
	}
	return string(dErrors.CodeOf(err))
}
