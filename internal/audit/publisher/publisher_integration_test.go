//go:build integration

package publisher_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"sigej/internal/audit"
	"sigej/internal/audit/publisher"
	"sigej/pkg/domain"
	"sigej/pkg/testutil/containers"
)

func TestPublicarEntregaEventos(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redpanda := containers.NewRedpandaContainer(t)
	redpanda.CreateTopic(t, publisher.TopicEventos)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub, err := publisher.New(redpanda.Brokers, logger, nil)
	require.NoError(t, err)
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	funcionario := domain.NewFuncionarioID()
	for i := 1; i <= 3; i++ {
		pub.Publicar(audit.Evento{
			Secuencia:     uint64(i),
			Cadena:        audit.CadenaPrincipal,
			Tipo:          audit.TipoCreacionDecision,
			FuncionarioID: funcionario,
			Correo:        "jueza@pjud.example",
			Modulo:        audit.ModuloCasos,
			Descripcion:   "evento publicado",
			CreadoEn:      time.Now().UTC().Truncate(time.Microsecond),
			HashAnterior:  audit.HashGenesis,
			Hash:          "ab12cd34",
		})
	}

	consumer := redpanda.NewConsumer(t, publisher.TopicEventos)

	type mensaje struct {
		Secuencia   uint64 `json:"secuencia"`
		Cadena      string `json:"cadena"`
		Tipo        string `json:"tipo"`
		Funcionario string `json:"funcionario"`
		Hash        string `json:"hash"`
	}

	var recibidos []mensaje
	deadline := time.Now().Add(15 * time.Second)
	for len(recibidos) < 3 && time.Now().Before(deadline) {
		pollCtx, pollCancel := context.WithTimeout(ctx, 2*time.Second)
		fetches := consumer.PollFetches(pollCtx)
		pollCancel()
		fetches.EachRecord(func(r *kgo.Record) {
			var m mensaje
			require.NoError(t, json.Unmarshal(r.Value, &m))
			recibidos = append(recibidos, m)
		})
	}

	require.Len(t, recibidos, 3)
	require.Equal(t, uint64(1), recibidos[0].Secuencia)
	require.Equal(t, audit.CadenaPrincipal, recibidos[0].Cadena)
	require.Equal(t, string(audit.TipoCreacionDecision), recibidos[0].Tipo)
	require.Equal(t, funcionario.String(), recibidos[0].Funcionario)
	require.Equal(t, "ab12cd34", recibidos[0].Hash)
}

// TestPublicarNoBloquea fills the buffer far past capacity without a running
// drain loop; enqueuing must stay non-blocking and drop oldest.
func TestPublicarNoBloquea(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redpanda := containers.NewRedpandaContainer(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub, err := publisher.New(redpanda.Brokers, logger, nil)
	require.NoError(t, err)
	defer pub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5000; i++ {
			pub.Publicar(audit.Evento{Secuencia: uint64(i + 1), Cadena: audit.CadenaPrincipal})
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Publicar blocked on a full buffer")
	}
}
