package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sigej/pkg/domain"
	dErrors "sigej/pkg/domain-errors"
	"sigej/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *InMemoryStore
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	var err error
	s.service, err = NewService(s.store)
	s.Require().NoError(err)
}

func (s *ServiceSuite) registrar(tipo TipoEvento, descripcion string) Evento {
	evento, err := s.service.Registrar(context.Background(), Borrador{
		Tipo:          tipo,
		FuncionarioID: domain.FuncionarioID{},
		Modulo:        ModuloCasos,
		Descripcion:   descripcion,
	})
	s.Require().NoError(err)
	return evento
}

func (s *ServiceSuite) TestRegistrar() {
	s.Run("first event links to genesis", func() {
		evento := s.registrar(TipoCreacionDecision, "primera")
		s.Equal(uint64(1), evento.Secuencia)
		s.Equal(HashGenesis, evento.HashAnterior)
		s.Equal(evento.CalcularHash(), evento.Hash)
	})

	s.Run("subsequent events link by hash", func() {
		primero := s.registrar(TipoCreacionDecision, "una")
		segundo := s.registrar(TipoActualizacionDecision, "dos")
		s.Equal(primero.Secuencia+1, segundo.Secuencia)
		s.Equal(primero.Hash, segundo.HashAnterior)
	})

	s.Run("unknown event type is rejected", func() {
		_, err := s.service.Registrar(context.Background(), Borrador{
			Tipo:   TipoEvento("ALGO_RARO"),
			Modulo: ModuloCasos,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown module is rejected", func() {
		_, err := s.service.Registrar(context.Background(), Borrador{
			Tipo:   TipoCreacionDecision,
			Modulo: Modulo("OTRO"),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure surfaces as unavailable", func() {
		ctx, cancelar := context.WithCancel(context.Background())
		cancelar()
		_, err := s.service.Registrar(ctx, Borrador{
			Tipo:   TipoCreacionDecision,
			Modulo: ModuloCasos,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("timestamps are stored in UTC at microsecond precision", func() {
		zona := time.FixedZone("UTC-5", -5*60*60)
		cuando := time.Date(2026, 3, 14, 9, 26, 53, 589793238, zona)
		ctx := requestcontext.WithTime(context.Background(), cuando)
		evento, err := s.service.Registrar(ctx, Borrador{
			Tipo:   TipoCreacionDecision,
			Modulo: ModuloCasos,
		})
		s.Require().NoError(err)
		s.Equal(time.UTC, evento.CreadoEn.Location())
		s.Zero(evento.CreadoEn.Nanosecond() % 1000)
		s.True(evento.CreadoEn.Equal(cuando.Truncate(time.Microsecond)))
	})
}

func (s *ServiceSuite) TestRegistrarConcurrente() {
	const total = 50
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.service.Registrar(context.Background(), Borrador{
				Tipo:        TipoCreacionDecision,
				Modulo:      ModuloCasos,
				Descripcion: fmt.Sprintf("concurrente %d", n),
			})
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	// Every sequence assigned exactly once and the whole chain verifies.
	informe, err := s.service.VerificarRango(context.Background(), 1, 0)
	s.Require().NoError(err)
	s.True(informe.Valido)
	s.Equal(total, informe.Revisados)
	s.Empty(informe.Anomalias)
}

func (s *ServiceSuite) TestVerificarRango() {
	for i := 0; i < 10; i++ {
		s.registrar(TipoCreacionDecision, fmt.Sprintf("evento %d", i))
	}

	s.Run("intact chain is valid", func() {
		informe, err := s.service.VerificarRango(context.Background(), 1, 10)
		s.Require().NoError(err)
		s.True(informe.Valido)
		s.Equal(10, informe.Revisados)
	})

	s.Run("subrange links against its true predecessor", func() {
		informe, err := s.service.VerificarRango(context.Background(), 4, 7)
		s.Require().NoError(err)
		s.True(informe.Valido)
		s.Equal(4, informe.Revisados)
	})

	s.Run("payload tamper yields exactly one hash anomaly", func() {
		s.Require().True(s.store.Corromper(5, func(e *Evento) {
			e.Descripcion = "contenido alterado"
		}))

		informe, err := s.service.VerificarRango(context.Background(), 1, 10)
		s.Require().NoError(err)
		s.False(informe.Valido)
		s.Require().Len(informe.Anomalias, 1)
		anomalia := informe.Anomalias[0]
		s.Equal(AnomaliaHash, anomalia.Tipo)
		s.Equal(uint64(5), anomalia.Secuencia)
		s.NotEqual(anomalia.HashAlmacenado, anomalia.HashRecalculado)

		// Restore for the sibling subtests.
		s.Require().True(s.store.Corromper(5, func(e *Evento) {
			e.Descripcion = "evento 4"
		}))
	})

	s.Run("rewritten hash breaks the next link instead", func() {
		var original string
		s.Require().True(s.store.Corromper(5, func(e *Evento) {
			e.Descripcion = "alterado y recubierto"
			original = e.Hash
			e.Hash = e.CalcularHash()
		}))

		informe, err := s.service.VerificarRango(context.Background(), 1, 10)
		s.Require().NoError(err)
		s.False(informe.Valido)
		s.Require().Len(informe.Anomalias, 1)
		s.Equal(AnomaliaEnlace, informe.Anomalias[0].Tipo)
		s.Equal(uint64(6), informe.Anomalias[0].Secuencia)

		s.Require().True(s.store.Corromper(5, func(e *Evento) {
			e.Descripcion = "evento 4"
			e.Hash = original
		}))
	})

	s.Run("deleted entry reports a sequence gap", func() {
		s.Require().True(s.store.Suprimir(7))

		informe, err := s.service.VerificarRango(context.Background(), 1, 10)
		s.Require().NoError(err)
		s.False(informe.Valido)

		var tipos []TipoAnomalia
		for _, a := range informe.Anomalias {
			tipos = append(tipos, a.Tipo)
		}
		s.Contains(tipos, AnomaliaSecuencia)
	})

	s.Run("trailing gap is reported", func() {
		s.Require().True(s.store.Suprimir(10))

		informe, err := s.service.VerificarRango(context.Background(), 9, 10)
		s.Require().NoError(err)
		s.False(informe.Valido)
		s.Require().NotEmpty(informe.Anomalias)
		s.Equal(AnomaliaSecuencia, informe.Anomalias[len(informe.Anomalias)-1].Tipo)
	})
}

func (s *ServiceSuite) TestVerificarRangoGenesis() {
	s.registrar(TipoCreacionDecision, "única")
	s.Require().True(s.store.Corromper(1, func(e *Evento) {
		e.HashAnterior = "deadbeef"
		e.Hash = e.CalcularHash()
	}))

	informe, err := s.service.VerificarRango(context.Background(), 1, 1)
	s.Require().NoError(err)
	s.False(informe.Valido)
	s.Require().Len(informe.Anomalias, 1)
	s.Equal(AnomaliaGenesis, informe.Anomalias[0].Tipo)
}

func (s *ServiceSuite) TestVerificarRangoVacio() {
	informe, err := s.service.VerificarRango(context.Background(), 1, 0)
	s.Require().NoError(err)
	s.True(informe.Valido)
	s.Zero(informe.Revisados)
}

func (s *ServiceSuite) TestConsultar() {
	juez := domain.NewFuncionarioID()
	for i := 0; i < 7; i++ {
		borrador := Borrador{
			Tipo:        TipoCreacionDecision,
			Modulo:      ModuloCasos,
			Descripcion: fmt.Sprintf("evento %d", i),
		}
		if i%2 == 0 {
			borrador.FuncionarioID = juez
		}
		_, err := s.service.Registrar(context.Background(), borrador)
		s.Require().NoError(err)
	}

	s.Run("filter by funcionario", func() {
		pagina, err := s.service.Consultar(context.Background(), Filtros{FuncionarioID: juez})
		s.Require().NoError(err)
		s.Len(pagina.Eventos, 4)
	})

	s.Run("cursor pagination walks the whole set", func() {
		var (
			cursor uint64
			total  int
		)
		for {
			pagina, err := s.service.Consultar(context.Background(), Filtros{Cursor: cursor, Limite: 3})
			s.Require().NoError(err)
			total += len(pagina.Eventos)
			if pagina.Siguiente == 0 {
				break
			}
			cursor = pagina.Siguiente
		}
		s.Equal(7, total)
	})

	s.Run("events keep their payload bytes", func() {
		datos := json.RawMessage(`{"b":1,"a":2}`)
		evento, err := s.service.Registrar(context.Background(), Borrador{
			Tipo:   TipoFirmaDecision,
			Modulo: ModuloDocumentos,
			Datos:  datos,
		})
		s.Require().NoError(err)

		pagina, err := s.service.Consultar(context.Background(), Filtros{Tipo: TipoFirmaDecision})
		s.Require().NoError(err)
		s.Require().Len(pagina.Eventos, 1)
		s.Equal(string(datos), string(pagina.Eventos[0].Datos))
		s.Equal(evento.Hash, pagina.Eventos[0].CalcularHash())
	})
}

type fanoutRegistro struct {
	mu      sync.Mutex
	eventos []Evento
}

func (f *fanoutRegistro) Publicar(evento Evento) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventos = append(f.eventos, evento)
}

func (s *ServiceSuite) TestFanout() {
	fanout := &fanoutRegistro{}
	servicio, err := NewService(s.store, WithFanout(fanout))
	s.Require().NoError(err)

	_, err = servicio.Registrar(context.Background(), Borrador{
		Tipo:   TipoLoginExitoso,
		Modulo: ModuloAuth,
	})
	s.Require().NoError(err)

	fanout.mu.Lock()
	defer fanout.mu.Unlock()
	s.Require().Len(fanout.eventos, 1)
	s.Equal(TipoLoginExitoso, fanout.eventos[0].Tipo)
}
