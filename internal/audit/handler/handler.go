// Package handler exposes the audit trail over HTTP: filtered queries with
// cursor pagination, on-demand chain verification and CSV export. All
// endpoints require the ADMIN_CJ role; export additionally requires a recent
// step-up verification, recorded as a keyed fact with a TTL.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sigej/internal/audit"
	"sigej/internal/platform/keyedstore"
	"sigej/internal/platform/privacy"
	"sigej/pkg/domain"
	dErrors "sigej/pkg/domain-errors"
	"sigej/pkg/platform/httputil"
	"sigej/pkg/requestcontext"
)

// Service defines the audit operations the handler depends on.
type Service interface {
	Registrar(ctx context.Context, borrador audit.Borrador) (audit.Evento, error)
	Consultar(ctx context.Context, filtros audit.Filtros) (audit.Pagina, error)
	VerificarRango(ctx context.Context, desde, hasta uint64) (audit.InformeIntegridad, error)
	ExportarCSV(ctx context.Context, filtros audit.Filtros, w io.Writer, seudonimo audit.Seudonimizador) error
}

// vigenciaStepUp bounds how long a step-up verification authorizes exports.
const vigenciaStepUp = 15 * time.Minute

// Handler wires audit endpoints to the audit service.
type Handler struct {
	service   Service
	logger    *slog.Logger
	stepUp    keyedstore.Store
	seudonimo *privacy.Seudonimizador
}

// New constructs an audit handler with its dependencies.
func New(service Service, logger *slog.Logger, stepUp keyedstore.Store, seudonimo *privacy.Seudonimizador) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		stepUp:    stepUp,
		seudonimo: seudonimo,
	}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/auditoria/eventos", h.HandleConsultar)
	r.Get("/auditoria/verificar", h.HandleVerificar)
	r.Get("/auditoria/exportar", h.HandleExportar)
	r.Post("/auditoria/step-up", h.HandleStepUp)
}

// HandleConsultar handles GET /auditoria/eventos requests.
func (h *Handler) HandleConsultar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.admin(w, ctx)
	if !ok {
		return
	}

	filtros, err := filtrosDeConsulta(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	pagina, err := h.service.Consultar(ctx, filtros)
	if err != nil {
		h.fallo(ctx, "consultar auditoría", err)
		httputil.WriteError(w, err)
		return
	}

	// The query itself is an auditable access.
	if err := h.registrarAcceso(ctx, actor, audit.TipoConsultaAuditoria, "consulta del registro de auditoría"); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPagina(pagina))
}

// HandleVerificar handles GET /auditoria/verificar requests. Anomalies are
// results, not errors: a tampered chain still answers 200 with the report.
func (h *Handler) HandleVerificar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.admin(w, ctx)
	if !ok {
		return
	}

	desde, err := parametroSecuencia(r, "desde")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	hasta, err := parametroSecuencia(r, "hasta")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	informe, err := h.service.VerificarRango(ctx, desde, hasta)
	if err != nil {
		h.fallo(ctx, "verificar cadena", err)
		httputil.WriteError(w, err)
		return
	}

	if err := h.registrarAcceso(ctx, actor, audit.TipoVerificacionIntegridad, "verificación de la cadena de auditoría"); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !informe.Valido {
		h.logger.WarnContext(ctx, "cadena de auditoría con anomalías",
			"desde", informe.Desde,
			"hasta", informe.Hasta,
			"anomalias", len(informe.Anomalias),
		)
	}
	httputil.WriteJSON(w, http.StatusOK, FromInforme(informe))
}

// HandleExportar handles GET /auditoria/exportar requests, streaming CSV.
// Identities are pseudonymized unless interno=true is requested, which keeps
// the real identifiers for internal forensics.
func (h *Handler) HandleExportar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.admin(w, ctx)
	if !ok {
		return
	}

	vigente, err := h.stepUp.Vigente(ctx, claveStepUp(actor.FuncionarioID))
	if err != nil {
		h.fallo(ctx, "comprobar step-up", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "no se pudo comprobar la verificación reforzada"))
		return
	}
	if !vigente {
		httputil.WriteError(w, dErrors.NewMotivo(dErrors.CodeForbidden, dErrors.MotivoVerificacionRequerida,
			"la exportación requiere una verificación reforzada reciente"))
		return
	}

	filtros, err := filtrosDeConsulta(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// The export event must be on the chain before any bytes leave.
	if err := h.registrarAcceso(ctx, actor, audit.TipoExportacionAuditoria, "exportación del registro de auditoría"); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var seudonimo audit.Seudonimizador
	if r.URL.Query().Get("interno") != "true" {
		seudonimo = h.seudonimo.Derivar
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="auditoria.csv"`)
	if err := h.service.ExportarCSV(ctx, filtros, w, seudonimo); err != nil {
		// Headers already sent; log and drop the connection.
		h.fallo(ctx, "escribir CSV", err)
	}
}

// HandleStepUp handles POST /auditoria/step-up requests. The actual
// credential check happens upstream; reaching this endpoint with a fresh
// token is the verification, and the handler records the fact.
func (h *Handler) HandleStepUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.admin(w, ctx)
	if !ok {
		return
	}

	if err := h.stepUp.Marcar(ctx, claveStepUp(actor.FuncionarioID), vigenciaStepUp); err != nil {
		h.fallo(ctx, "registrar step-up", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "no se pudo registrar la verificación reforzada"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"vigencia_segundos": int(vigenciaStepUp.Seconds()),
	})
}

func claveStepUp(id domain.FuncionarioID) string {
	return "stepup:" + id.String()
}

// admin authenticates and enforces the ADMIN_CJ role. The denial is recorded
// on the chain like any other denied access.
func (h *Handler) admin(w http.ResponseWriter, ctx context.Context) (requestcontext.ActorContext, bool) {
	actor := requestcontext.Actor(ctx)
	if actor.Anonimo() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "se requiere autenticación"))
		return requestcontext.ActorContext{}, false
	}
	if actor.Rol != domain.RolAdminCJ {
		if err := h.registrarAcceso(ctx, actor, audit.TipoAccesoDenegado, "acceso denegado: auditoría"); err != nil {
			httputil.WriteError(w, err)
			return requestcontext.ActorContext{}, false
		}
		httputil.WriteError(w, dErrors.NewMotivo(dErrors.CodeForbidden, dErrors.MotivoNoAutorizado,
			"sólo ADMIN_CJ puede acceder a la auditoría"))
		return requestcontext.ActorContext{}, false
	}
	return actor, true
}

func (h *Handler) registrarAcceso(ctx context.Context, actor requestcontext.ActorContext, tipo audit.TipoEvento, descripcion string) error {
	_, err := h.service.Registrar(ctx, audit.Borrador{
		Tipo:          tipo,
		FuncionarioID: actor.FuncionarioID,
		Correo:        actor.Correo,
		Modulo:        audit.ModuloAdmin,
		Descripcion:   descripcion,
		IP:            requestcontext.ClientIP(ctx),
		UserAgent:     requestcontext.UserAgent(ctx),
	})
	if err != nil {
		h.fallo(ctx, "registrar acceso a auditoría", err)
	}
	return err
}

func (h *Handler) fallo(ctx context.Context, operacion string, err error) {
	h.logger.ErrorContext(ctx, "operación de auditoría fallida",
		"request_id", requestcontext.RequestID(ctx),
		"operacion", operacion,
		"error", err,
	)
}

func filtrosDeConsulta(r *http.Request) (audit.Filtros, error) {
	var filtros audit.Filtros
	consulta := r.URL.Query()

	if v := consulta.Get("funcionario_id"); v != "" {
		id, err := domain.ParseFuncionarioID(v)
		if err != nil {
			return audit.Filtros{}, err
		}
		filtros.FuncionarioID = id
	}
	if v := consulta.Get("tipo"); v != "" {
		filtros.Tipo = audit.TipoEvento(v)
	}
	if v := consulta.Get("modulo"); v != "" {
		filtros.Modulo = audit.Modulo(v)
	}
	if v := consulta.Get("desde"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return audit.Filtros{}, dErrors.New(dErrors.CodeValidation, "desde debe ser RFC3339")
		}
		filtros.Desde = t
	}
	if v := consulta.Get("hasta"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return audit.Filtros{}, dErrors.New(dErrors.CodeValidation, "hasta debe ser RFC3339")
		}
		filtros.Hasta = t
	}
	if v := consulta.Get("cursor"); v != "" {
		cursor, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return audit.Filtros{}, dErrors.New(dErrors.CodeValidation, "cursor inválido")
		}
		filtros.Cursor = cursor
	}
	if v := consulta.Get("limite"); v != "" {
		limite, err := strconv.Atoi(v)
		if err != nil || limite < 0 {
			return audit.Filtros{}, dErrors.New(dErrors.CodeValidation, "limite inválido")
		}
		filtros.Limite = limite
	}
	return filtros, nil
}

func parametroSecuencia(r *http.Request, nombre string) (uint64, error) {
	v := r.URL.Query().Get(nombre)
	if v == "" {
		return 0, nil
	}
	secuencia, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeValidation, nombre+" inválido")
	}
	return secuencia, nil
}
