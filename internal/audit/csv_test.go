package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigej/pkg/domain"
)

func TestEscribirCSV(t *testing.T) {
	juez := domain.NewFuncionarioID()
	eventos := []Evento{
		{
			Secuencia:     1,
			Cadena:        CadenaPrincipal,
			Tipo:          TipoCreacionDecision,
			FuncionarioID: juez,
			Correo:        "jueza@pjud.example",
			Modulo:        ModuloCasos,
			Descripcion:   "decisión creada, con coma",
			Datos:         []byte(`{"decision_id":"x"}`),
			IP:            "10.0.0.1",
			CreadoEn:      time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
			HashAnterior:  HashGenesis,
			Hash:          "abc",
		},
		{
			Secuencia:    2,
			Cadena:       CadenaPrincipal,
			Tipo:         TipoLoginFallido,
			Modulo:       ModuloAuth,
			CreadoEn:     time.Date(2026, 5, 4, 12, 1, 0, 0, time.UTC),
			HashAnterior: "abc",
			Hash:         "def",
		},
	}

	t.Run("identity export keeps real identifiers", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, EscribirCSV(&buf, eventos, nil))

		filas, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, filas, 3)

		assert.Equal(t, "secuencia", filas[0][0])
		assert.Equal(t, juez.String(), filas[1][2])
		assert.Equal(t, "decisión creada, con coma", filas[1][5])
		assert.Equal(t, `{"decision_id":"x"}`, filas[1][6])
		// Event without actor keeps blank identity columns.
		assert.Empty(t, filas[2][2])
	})

	t.Run("pseudonymized export masks actor columns", func(t *testing.T) {
		var buf bytes.Buffer
		mascara := func(s string) string {
			if s == "" {
				return ""
			}
			return "seudo-" + s[:4]
		}
		require.NoError(t, EscribirCSV(&buf, eventos, mascara))

		filas, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(filas[1][2], "seudo-"))
		assert.True(t, strings.HasPrefix(filas[1][3], "seudo-"))
		// Hash columns stay untouched so the export remains re-verifiable.
		assert.Equal(t, HashGenesis, filas[1][10])
		assert.Equal(t, "abc", filas[1][11])
	})
}

func TestExportarCSVRecorreTodasLasPaginas(t *testing.T) {
	servicio, err := NewService(NewInMemoryStore())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := servicio.Registrar(ctx, Borrador{
			Tipo:        TipoCreacionDecision,
			Modulo:      ModuloCasos,
			Descripcion: "evento exportado",
		})
		require.NoError(t, err)
	}

	var buf bytes.Buffer
	require.NoError(t, servicio.ExportarCSV(ctx, Filtros{Limite: 2}, &buf, nil))

	filas, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	// One header plus every event, regardless of the page size.
	require.Len(t, filas, 6)
	assert.Equal(t, "secuencia", filas[0][0])
	assert.Equal(t, "1", filas[1][0])
	assert.Equal(t, "5", filas[5][0])
}
