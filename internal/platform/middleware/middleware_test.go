package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigej/internal/platform/metrics"
	"sigej/pkg/domain"
)

func TestLatencyAgrupaPorPatronDeRuta(t *testing.T) {
	m := metrics.New()

	router := chi.NewRouter()
	router.Use(Latency(m))
	router.Get("/decisiones/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "rota" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Distinct ids must land on one series, not one per UUID.
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/decisiones/"+domain.NewDecisionID().String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, testutil.CollectAndCount(m.LatenciaHTTP))

	// The status label still splits series under the same pattern.
	req := httptest.NewRequest(http.MethodGet, "/decisiones/rota", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 2, testutil.CollectAndCount(m.LatenciaHTTP))
}
