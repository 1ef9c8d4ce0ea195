// Package handler wires the decision lifecycle to HTTP. Authorization beyond
// "has a valid identity" lives in the service, which also records the denial
// events; the handler only translates requests and responses.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sigej/internal/decision"
	"sigej/pkg/domain"
	dErrors "sigej/pkg/domain-errors"
	"sigej/pkg/platform/httputil"
	"sigej/pkg/requestcontext"
)

// Service defines the decision operations the handler depends on.
type Service interface {
	Crear(ctx context.Context, input decision.CrearInput, actor requestcontext.ActorContext) (*decision.Decision, error)
	Actualizar(ctx context.Context, id domain.DecisionID, input decision.ActualizarInput, actor requestcontext.ActorContext) (*decision.Decision, error)
	PrepararFirma(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (*decision.Decision, error)
	Firmar(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (*decision.Decision, error)
	VerificarIntegridad(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (decision.ResultadoIntegridad, error)
	Anular(ctx context.Context, id domain.DecisionID, motivo string, actor requestcontext.ActorContext) (*decision.Decision, error)
	Eliminar(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) error
	Obtener(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (*decision.Decision, error)
	Listar(ctx context.Context, filtros decision.ListarFiltros, actor requestcontext.ActorContext) ([]*decision.Decision, error)
}

// Handler wires decision endpoints to the decision service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a decision handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts decision endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/decisiones", h.HandleCrear)
	r.Get("/decisiones", h.HandleListar)
	r.Get("/decisiones/{id}", h.HandleObtener)
	r.Patch("/decisiones/{id}", h.HandleActualizar)
	r.Delete("/decisiones/{id}", h.HandleEliminar)
	r.Post("/decisiones/{id}/preparar-firma", h.HandlePrepararFirma)
	r.Post("/decisiones/{id}/firmar", h.HandleFirmar)
	r.Post("/decisiones/{id}/anular", h.HandleAnular)
	r.Get("/decisiones/{id}/integridad", h.HandleVerificarIntegridad)
}

// HandleCrear handles POST /decisiones requests.
func (h *Handler) HandleCrear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.actor(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CrearRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.Crear(ctx, req.Input(), actor)
	if err != nil {
		h.fallo(ctx, "crear decisión", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "decisión creada",
		"request_id", requestID,
		"decision_id", d.ID,
		"causa_id", d.CausaID,
		"tipo", d.Tipo,
	)
	httputil.WriteJSON(w, http.StatusCreated, FromDecision(d))
}

// HandleListar handles GET /decisiones requests.
func (h *Handler) HandleListar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, ctx)
	if !ok {
		return
	}

	var filtros decision.ListarFiltros
	if v := r.URL.Query().Get("causa_id"); v != "" {
		causaID, err := domain.ParseCausaID(v)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filtros.CausaID = causaID
	}
	if v := r.URL.Query().Get("estado"); v != "" {
		filtros.Estado = decision.Estado(v)
	}

	decisiones, err := h.service.Listar(ctx, filtros, actor)
	if err != nil {
		h.fallo(ctx, "listar decisiones", requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDecisiones(decisiones))
}

// HandleObtener handles GET /decisiones/{id} requests.
func (h *Handler) HandleObtener(w http.ResponseWriter, r *http.Request) {
	h.conID(w, r, func(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (any, int, error) {
		d, err := h.service.Obtener(ctx, id, actor)
		if err != nil {
			return nil, 0, err
		}
		return FromDecision(d), http.StatusOK, nil
	})
}

// HandleActualizar handles PATCH /decisiones/{id} requests.
func (h *Handler) HandleActualizar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.actor(w, ctx)
	if !ok {
		return
	}
	id, ok := h.decisionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ActualizarRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.Actualizar(ctx, id, req.Input(), actor)
	if err != nil {
		h.fallo(ctx, "actualizar decisión", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDecision(d))
}

// HandleEliminar handles DELETE /decisiones/{id} requests.
func (h *Handler) HandleEliminar(w http.ResponseWriter, r *http.Request) {
	h.conID(w, r, func(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (any, int, error) {
		if err := h.service.Eliminar(ctx, id, actor); err != nil {
			return nil, 0, err
		}
		return nil, http.StatusNoContent, nil
	})
}

// HandlePrepararFirma handles POST /decisiones/{id}/preparar-firma requests.
func (h *Handler) HandlePrepararFirma(w http.ResponseWriter, r *http.Request) {
	h.conID(w, r, func(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (any, int, error) {
		d, err := h.service.PrepararFirma(ctx, id, actor)
		if err != nil {
			return nil, 0, err
		}
		return FromDecision(d), http.StatusOK, nil
	})
}

// HandleFirmar handles POST /decisiones/{id}/firmar requests.
func (h *Handler) HandleFirmar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	actor, ok := h.actor(w, ctx)
	if !ok {
		return
	}
	id, ok := h.decisionID(w, r)
	if !ok {
		return
	}

	d, err := h.service.Firmar(ctx, id, actor)
	if err != nil {
		h.fallo(ctx, "firmar decisión", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "decisión firmada",
		"request_id", requestID,
		"decision_id", d.ID,
		"hash_integridad", d.Firma.HashIntegridad,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromDecision(d))
}

// HandleAnular handles POST /decisiones/{id}/anular requests.
func (h *Handler) HandleAnular(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor, ok := h.actor(w, ctx)
	if !ok {
		return
	}
	id, ok := h.decisionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AnularRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.Anular(ctx, id, req.Motivo, actor)
	if err != nil {
		h.fallo(ctx, "anular decisión", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDecision(d))
}

// HandleVerificarIntegridad handles GET /decisiones/{id}/integridad requests.
func (h *Handler) HandleVerificarIntegridad(w http.ResponseWriter, r *http.Request) {
	h.conID(w, r, func(ctx context.Context, id domain.DecisionID, actor requestcontext.ActorContext) (any, int, error) {
		resultado, err := h.service.VerificarIntegridad(ctx, id, actor)
		if err != nil {
			return nil, 0, err
		}
		return FromIntegridad(resultado), http.StatusOK, nil
	})
}

// conID factors the id-parameterized endpoints that take no body.
func (h *Handler) conID(w http.ResponseWriter, r *http.Request, fn func(context.Context, domain.DecisionID, requestcontext.ActorContext) (any, int, error)) {
	ctx := r.Context()
	actor, ok := h.actor(w, ctx)
	if !ok {
		return
	}
	id, ok := h.decisionID(w, r)
	if !ok {
		return
	}

	respuesta, status, err := fn(ctx, id, actor)
	if err != nil {
		h.fallo(ctx, r.Method+" "+r.URL.Path, requestcontext.RequestID(ctx), err)
		httputil.WriteError(w, err)
		return
	}
	if respuesta == nil {
		w.WriteHeader(status)
		return
	}
	httputil.WriteJSON(w, status, respuesta)
}

func (h *Handler) actor(w http.ResponseWriter, ctx context.Context) (requestcontext.ActorContext, bool) {
	actor := requestcontext.Actor(ctx)
	if actor.Anonimo() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "se requiere autenticación"))
		return requestcontext.ActorContext{}, false
	}
	return actor, true
}

func (h *Handler) decisionID(w http.ResponseWriter, r *http.Request) (domain.DecisionID, bool) {
	id, err := domain.ParseDecisionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.DecisionID{}, false
	}
	return id, true
}

func (h *Handler) fallo(ctx context.Context, operacion, requestID string, err error) {
	h.logger.ErrorContext(ctx, "operación de decisión fallida",
		"request_id", requestID,
		"operacion", operacion,
		"error", err,
	)
}
