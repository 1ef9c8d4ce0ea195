package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigej/internal/audit"
	"sigej/internal/platform/keyedstore"
	"sigej/internal/platform/privacy"
	"sigej/pkg/domain"
	dErrors "sigej/pkg/domain-errors"
	"sigej/pkg/requestcontext"
)

type entornoAuditoria struct {
	router   http.Handler
	servicio *audit.Service
	admin    requestcontext.ActorContext
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// conActor injects the authenticated actor directly; the JWT middleware has
// its own tests.
func conActor(actor requestcontext.ActorContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(r.Context(), actor)))
		})
	}
}

func nuevoEntornoAuditoria(t *testing.T, actor requestcontext.ActorContext) *entornoAuditoria {
	t.Helper()

	servicio, err := audit.NewService(audit.NewInMemoryStore())
	require.NoError(t, err)

	seudonimo, err := privacy.NewSeudonimizador([]byte("secreto-de-prueba"))
	require.NoError(t, err)

	h := New(servicio, testLogger(), keyedstore.NewMemory(), seudonimo)

	router := chi.NewRouter()
	router.Use(conActor(actor))
	h.Register(router)

	return &entornoAuditoria{router: router, servicio: servicio, admin: actor}
}

func actorAdmin() requestcontext.ActorContext {
	return requestcontext.ActorContext{
		FuncionarioID: domain.NewFuncionarioID(),
		Rol:           domain.RolAdminCJ,
		Correo:        "auditor@pjud.example",
	}
}

func (e *entornoAuditoria) sembrar(t *testing.T, cantidad int) {
	t.Helper()
	for i := 0; i < cantidad; i++ {
		_, err := e.servicio.Registrar(context.Background(), audit.Borrador{
			Tipo:          audit.TipoCreacionDecision,
			FuncionarioID: e.admin.FuncionarioID,
			Correo:        e.admin.Correo,
			Modulo:        audit.ModuloCasos,
			Descripcion:   "evento sembrado",
		})
		require.NoError(t, err)
	}
}

func (e *entornoAuditoria) hacer(t *testing.T, metodo, ruta string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(metodo, ruta, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestConsultarViaHTTP(t *testing.T) {
	entorno := nuevoEntornoAuditoria(t, actorAdmin())
	entorno.sembrar(t, 3)

	rec := entorno.hacer(t, http.MethodGet, "/auditoria/eventos")
	require.Equal(t, http.StatusOK, rec.Code)

	var pagina PaginaResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pagina))
	require.Len(t, pagina.Eventos, 3)
	assert.Equal(t, uint64(1), pagina.Eventos[0].Secuencia)

	// The query itself lands on the chain.
	segunda := entorno.hacer(t, http.MethodGet, "/auditoria/eventos")
	require.Equal(t, http.StatusOK, segunda.Code)
	var despues PaginaResponse
	require.NoError(t, json.NewDecoder(segunda.Body).Decode(&despues))
	require.Len(t, despues.Eventos, 4)
	assert.Equal(t, string(audit.TipoConsultaAuditoria), despues.Eventos[3].Tipo)
}

func TestVerificarViaHTTP(t *testing.T) {
	entorno := nuevoEntornoAuditoria(t, actorAdmin())
	entorno.sembrar(t, 5)

	rec := entorno.hacer(t, http.MethodGet, "/auditoria/verificar?desde=1&hasta=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var informe InformeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&informe))
	assert.True(t, informe.Valido)
	assert.Equal(t, 5, informe.Revisados)
	assert.Empty(t, informe.Anomalias)
}

func TestExportarRequiereStepUp(t *testing.T) {
	entorno := nuevoEntornoAuditoria(t, actorAdmin())
	entorno.sembrar(t, 2)

	rec := entorno.hacer(t, http.MethodGet, "/auditoria/exportar")
	require.Equal(t, http.StatusForbidden, rec.Code)
	var cuerpo map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cuerpo))
	assert.Equal(t, dErrors.MotivoVerificacionRequerida, cuerpo["motivo"])

	rec = entorno.hacer(t, http.MethodPost, "/auditoria/step-up")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = entorno.hacer(t, http.MethodGet, "/auditoria/exportar")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	// Identities in the export are pseudonyms, not the real id.
	csv := rec.Body.String()
	assert.NotContains(t, csv, entorno.admin.FuncionarioID.String())
	assert.NotContains(t, csv, entorno.admin.Correo)
	assert.True(t, strings.Contains(csv, "evento sembrado"))
}

func TestExportarInternoConservaIdentidades(t *testing.T) {
	entorno := nuevoEntornoAuditoria(t, actorAdmin())
	entorno.sembrar(t, 1)

	rec := entorno.hacer(t, http.MethodPost, "/auditoria/step-up")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = entorno.hacer(t, http.MethodGet, "/auditoria/exportar?interno=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), entorno.admin.FuncionarioID.String())
}

func TestRolInsuficienteQuedaRegistrado(t *testing.T) {
	juez := requestcontext.ActorContext{
		FuncionarioID: domain.NewFuncionarioID(),
		Rol:           domain.RolJuez,
		Correo:        "jueza@pjud.example",
	}
	entorno := nuevoEntornoAuditoria(t, juez)

	rec := entorno.hacer(t, http.MethodGet, "/auditoria/eventos")
	require.Equal(t, http.StatusForbidden, rec.Code)
	var cuerpo map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cuerpo))
	assert.Equal(t, dErrors.MotivoNoAutorizado, cuerpo["motivo"])

	// The denial itself is on the chain.
	pagina, err := entorno.servicio.Consultar(context.Background(), audit.Filtros{})
	require.NoError(t, err)
	require.Len(t, pagina.Eventos, 1)
	assert.Equal(t, audit.TipoAccesoDenegado, pagina.Eventos[0].Tipo)
}
