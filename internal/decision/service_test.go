package decision

//go:generate mockgen -source=../firma/firma.go -destination=../firma/mocks/mocks.go -package=mocks Firmante,CertificadoStore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"sigej/internal/audit"
	"sigej/internal/firma"
	"sigej/internal/firma/mocks"
	"sigej/pkg/domain"
	dErrors "sigej/pkg/domain-errors"
	"sigej/pkg/platform/sentinel"
	"sigej/pkg/platform/tx"
	"sigej/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	store        *InMemoryStore
	auditStore   *audit.InMemoryStore
	auditoria    *audit.Service
	certificados *firma.InMemoryCertificados
	firmante     *mocks.MockFirmante
	service      *Service

	juez      requestcontext.ActorContext
	otroJuez  requestcontext.ActorContext
	admin     requestcontext.ActorContext
	secretivo requestcontext.ActorContext
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()

	var err error
	s.auditoria, err = audit.NewService(s.auditStore)
	s.Require().NoError(err)

	s.certificados = firma.NewInMemoryCertificados()
	s.firmante = mocks.NewMockFirmante(s.ctrl)

	s.service, err = NewService(s.store, s.auditoria, s.certificados, s.firmante, tx.NoopRunner{})
	s.Require().NoError(err)

	s.juez = requestcontext.ActorContext{
		FuncionarioID: domain.NewFuncionarioID(),
		Rol:           domain.RolJuez,
		Correo:        "jueza.perez@pjud.example",
	}
	s.otroJuez = requestcontext.ActorContext{
		FuncionarioID: domain.NewFuncionarioID(),
		Rol:           domain.RolJuez,
		Correo:        "juez.gomez@pjud.example",
	}
	s.admin = requestcontext.ActorContext{
		FuncionarioID: domain.NewFuncionarioID(),
		Rol:           domain.RolAdminCJ,
		Correo:        "admin@pjud.example",
	}
	s.secretivo = requestcontext.ActorContext{
		FuncionarioID: domain.NewFuncionarioID(),
		Rol:           domain.RolSecretario,
		Correo:        "secretario@pjud.example",
	}
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) certificadoVigente(actor requestcontext.ActorContext) firma.CertificadoDescriptor {
	cert := firma.CertificadoDescriptor{
		Titular:       actor.Correo,
		Serie:         "CERT-" + actor.FuncionarioID.String()[:8],
		Algoritmo:     "SHA256withRSA",
		ValidoDesde:   time.Now().Add(-24 * time.Hour),
		ValidoHasta:   time.Now().Add(24 * time.Hour),
		FuncionarioID: actor.FuncionarioID,
	}
	s.Require().NoError(s.certificados.Guardar(context.Background(), cert))
	return cert
}

func (s *ServiceSuite) crearBorrador(actor requestcontext.ActorContext) *Decision {
	d, err := s.service.Crear(context.Background(), CrearInput{
		CausaID:   domain.NewCausaID(),
		Tipo:      TipoSentencia,
		Titulo:    "Sentencia definitiva causa 1234-2026",
		Contenido: "Vistos y considerando...",
	}, actor)
	s.Require().NoError(err)
	return d
}

func (s *ServiceSuite) listaParaFirma(actor requestcontext.ActorContext) *Decision {
	s.certificadoVigente(actor)
	d := s.crearBorrador(actor)
	d, err := s.service.PrepararFirma(context.Background(), d.ID, actor)
	s.Require().NoError(err)
	return d
}

func (s *ServiceSuite) ultimoEvento() audit.Evento {
	ultima, err := s.auditStore.UltimaSecuencia(context.Background())
	s.Require().NoError(err)
	s.Require().NotZero(ultima)
	eventos, err := s.auditStore.Rango(context.Background(), ultima, ultima)
	s.Require().NoError(err)
	s.Require().Len(eventos, 1)
	return eventos[0]
}

func (s *ServiceSuite) TestCrear() {
	s.Run("judge creates a draft", func() {
		d := s.crearBorrador(s.juez)
		s.Equal(EstadoBorrador, d.Estado)
		s.Equal(s.juez.FuncionarioID, d.JuezID)
		s.False(d.ID.IsNil())

		evento := s.ultimoEvento()
		s.Equal(audit.TipoCreacionDecision, evento.Tipo)
		s.Equal(s.juez.FuncionarioID, evento.FuncionarioID)
	})

	s.Run("short title is rejected", func() {
		_, err := s.service.Crear(context.Background(), CrearInput{
			CausaID: domain.NewCausaID(),
			Tipo:    TipoAuto,
			Titulo:  "Ab",
		}, s.juez)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(dErrors.MotivoTituloInvalido, dErrors.MotivoDe(err))
	})

	s.Run("unknown type is rejected", func() {
		_, err := s.service.Crear(context.Background(), CrearInput{
			CausaID: domain.NewCausaID(),
			Tipo:    TipoDecision("DECRETO"),
			Titulo:  "Título suficientemente largo",
		}, s.juez)
		s.Require().Error(err)
		s.Equal(dErrors.MotivoTipoInvalido, dErrors.MotivoDe(err))
	})

	s.Run("non-judge cannot create and the denial is audited", func() {
		_, err := s.service.Crear(context.Background(), CrearInput{
			CausaID: domain.NewCausaID(),
			Tipo:    TipoAuto,
			Titulo:  "Título suficientemente largo",
		}, s.secretivo)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(dErrors.MotivoNoAutorizado, dErrors.MotivoDe(err))

		evento := s.ultimoEvento()
		s.Equal(audit.TipoAccesoDenegado, evento.Tipo)
		s.Equal(s.secretivo.FuncionarioID, evento.FuncionarioID)
	})
}

func (s *ServiceSuite) TestActualizar() {
	s.Run("author edits a draft", func() {
		d := s.crearBorrador(s.juez)
		titulo := "Sentencia definitiva corregida 1234-2026"
		actualizada, err := s.service.Actualizar(context.Background(), d.ID, ActualizarInput{Titulo: &titulo}, s.juez)
		s.Require().NoError(err)
		s.Equal(titulo, actualizada.Titulo)
		s.Equal(audit.TipoActualizacionDecision, s.ultimoEvento().Tipo)
	})

	s.Run("another judge is denied with an audit trail", func() {
		d := s.crearBorrador(s.juez)
		titulo := "Intento ajeno de modificación"
		_, err := s.service.Actualizar(context.Background(), d.ID, ActualizarInput{Titulo: &titulo}, s.otroJuez)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		evento := s.ultimoEvento()
		s.Equal(audit.TipoAccesoDenegado, evento.Tipo)
		s.Equal(s.otroJuez.FuncionarioID, evento.FuncionarioID)
	})

	s.Run("missing decision reports not found", func() {
		titulo := "No importa este título"
		_, err := s.service.Actualizar(context.Background(), domain.NewDecisionID(), ActualizarInput{Titulo: &titulo}, s.juez)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestPrepararFirma() {
	s.Run("draft with valid certificate becomes ready", func() {
		s.certificadoVigente(s.juez)
		d := s.crearBorrador(s.juez)
		lista, err := s.service.PrepararFirma(context.Background(), d.ID, s.juez)
		s.Require().NoError(err)
		s.Equal(EstadoListaParaFirma, lista.Estado)
		s.Equal(audit.TipoDecisionListaFirma, s.ultimoEvento().Tipo)
	})

	s.Run("missing certificate is a certificate error", func() {
		d := s.crearBorrador(s.otroJuez)
		_, err := s.service.PrepararFirma(context.Background(), d.ID, s.otroJuez)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeCertificate))
		s.Equal(dErrors.MotivoCertNoEncontrado, dErrors.MotivoDe(err))
	})

	s.Run("expired certificate is rejected", func() {
		cert := firma.CertificadoDescriptor{
			Titular:       s.otroJuez.Correo,
			Serie:         "CERT-VENCIDO",
			Algoritmo:     "SHA256withRSA",
			ValidoDesde:   time.Now().Add(-48 * time.Hour),
			ValidoHasta:   time.Now().Add(-24 * time.Hour),
			FuncionarioID: s.otroJuez.FuncionarioID,
		}
		s.Require().NoError(s.certificados.Guardar(context.Background(), cert))

		d := s.crearBorrador(s.otroJuez)
		_, err := s.service.PrepararFirma(context.Background(), d.ID, s.otroJuez)
		s.Require().Error(err)
		s.Equal(dErrors.MotivoCertExpirado, dErrors.MotivoDe(err))
	})
}

func (s *ServiceSuite) TestFirmar() {
	s.Run("full flow produces an immutable signed decision", func() {
		lista := s.listaParaFirma(s.juez)
		documento := RenderizarDocumento(lista)

		s.firmante.EXPECT().
			Firmar(gomock.Any(), gomock.Any(), documento).
			Return(firma.Firma{
				Algoritmo:    "SHA256withRSA",
				ArtefactoRef: "hsm://artefactos/abc123",
				Serie:        "CERT-001",
				FirmadoEn:    time.Now(),
			}, nil)

		firmada, err := s.service.Firmar(context.Background(), lista.ID, s.juez)
		s.Require().NoError(err)
		s.Equal(EstadoFirmada, firmada.Estado)
		s.Require().NotNil(firmada.Firma)
		s.Equal(HashDocumento(firmada), firmada.Firma.HashIntegridad)
		s.Equal("hsm://artefactos/abc123", firmada.Firma.ArtefactoRef)
		s.Equal(audit.TipoFirmaDecision, s.ultimoEvento().Tipo)

		// Content is now frozen.
		titulo := "Edición posterior a la firma"
		_, err = s.service.Actualizar(context.Background(), firmada.ID, ActualizarInput{Titulo: &titulo}, s.juez)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(dErrors.MotivoYaFirmada, dErrors.MotivoDe(err))

		// And the stored hash did not move.
		releida, err := s.service.Obtener(context.Background(), firmada.ID, s.juez)
		s.Require().NoError(err)
		s.Equal(firmada.Firma.HashIntegridad, releida.Firma.HashIntegridad)
	})

	s.Run("second sign reports already signed without re-invoking the signer", func() {
		lista := s.listaParaFirma(s.juez)
		s.firmante.EXPECT().
			Firmar(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(firma.Firma{Algoritmo: "SHA256withRSA", ArtefactoRef: "hsm://a/1", Serie: "S", FirmadoEn: time.Now()}, nil).
			Times(1)

		_, err := s.service.Firmar(context.Background(), lista.ID, s.juez)
		s.Require().NoError(err)

		_, err = s.service.Firmar(context.Background(), lista.ID, s.juez)
		s.Require().Error(err)
		s.Equal(dErrors.MotivoYaFirmada, dErrors.MotivoDe(err))
	})

	s.Run("unavailable signer leaves the decision ready for retry", func() {
		lista := s.listaParaFirma(s.juez)
		s.firmante.EXPECT().
			Firmar(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(firma.Firma{}, sentinel.ErrUnavailable)

		_, err := s.service.Firmar(context.Background(), lista.ID, s.juez)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
		s.Equal(dErrors.MotivoFirmanteNoDisponible, dErrors.MotivoDe(err))

		sigue, errCarga := s.store.PorID(context.Background(), lista.ID)
		s.Require().NoError(errCarga)
		s.Equal(EstadoListaParaFirma, sigue.Estado)

		// A retry can then succeed.
		s.firmante.EXPECT().
			Firmar(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(firma.Firma{Algoritmo: "SHA256withRSA", ArtefactoRef: "hsm://a/2", Serie: "S", FirmadoEn: time.Now()}, nil)
		firmada, err := s.service.Firmar(context.Background(), lista.ID, s.juez)
		s.Require().NoError(err)
		s.Equal(EstadoFirmada, firmada.Estado)
	})

	s.Run("signing a draft is a state conflict", func() {
		s.certificadoVigente(s.juez)
		d := s.crearBorrador(s.juez)
		_, err := s.service.Firmar(context.Background(), d.ID, s.juez)
		s.Require().Error(err)
		s.Equal(dErrors.MotivoEstadoInvalido, dErrors.MotivoDe(err))
	})

	s.Run("another judge cannot sign", func() {
		lista := s.listaParaFirma(s.juez)
		_, err := s.service.Firmar(context.Background(), lista.ID, s.otroJuez)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(audit.TipoAccesoDenegado, s.ultimoEvento().Tipo)
	})
}

func (s *ServiceSuite) firmada(actor requestcontext.ActorContext) *Decision {
	lista := s.listaParaFirma(actor)
	s.firmante.EXPECT().
		Firmar(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(firma.Firma{Algoritmo: "SHA256withRSA", ArtefactoRef: "hsm://a/x", Serie: "S", FirmadoEn: time.Now()}, nil)
	firmada, err := s.service.Firmar(context.Background(), lista.ID, actor)
	s.Require().NoError(err)
	return firmada
}

func (s *ServiceSuite) TestVerificarIntegridad() {
	s.Run("intact decision verifies", func() {
		d := s.firmada(s.juez)
		resultado, err := s.service.VerificarIntegridad(context.Background(), d.ID, s.juez)
		s.Require().NoError(err)
		s.True(resultado.Integro)
		s.Equal(resultado.HashAlmacenado, resultado.HashRecalculado)
		s.Equal(audit.TipoVerificacionIntegridad, s.ultimoEvento().Tipo)
	})

	s.Run("tampered content is detected on every verification", func() {
		d := s.firmada(s.juez)
		s.Require().True(s.store.Corromper(d.ID, func(d *Decision) {
			d.Contenido = d.Contenido + " [texto insertado]"
		}))

		resultado, err := s.service.VerificarIntegridad(context.Background(), d.ID, s.admin)
		s.Require().NoError(err)
		s.False(resultado.Integro)
		s.NotEqual(resultado.HashAlmacenado, resultado.HashRecalculado)

		// No cached flag: the second run recomputes and still fails.
		resultado, err = s.service.VerificarIntegridad(context.Background(), d.ID, s.admin)
		s.Require().NoError(err)
		s.False(resultado.Integro)
	})

	s.Run("unsigned decision has nothing to verify", func() {
		d := s.crearBorrador(s.juez)
		_, err := s.service.VerificarIntegridad(context.Background(), d.ID, s.juez)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestAnular() {
	s.Run("signed decision can be annulled keeping its content", func() {
		d := s.firmada(s.juez)
		anulada, err := s.service.Anular(context.Background(), d.ID, "recurso de reposición acogido", s.juez)
		s.Require().NoError(err)
		s.Equal(EstadoAnulada, anulada.Estado)
		s.Require().NotNil(anulada.AnuladaEn)
		s.Equal(audit.TipoAnulacionDecision, s.ultimoEvento().Tipo)

		// Signed content and hash remain verifiable after annulment.
		resultado, err := s.service.VerificarIntegridad(context.Background(), d.ID, s.juez)
		s.Require().NoError(err)
		s.True(resultado.Integro)
	})

	s.Run("draft cannot be annulled", func() {
		d := s.crearBorrador(s.juez)
		_, err := s.service.Anular(context.Background(), d.ID, "motivo cualquiera", s.juez)
		s.Require().Error(err)
		s.Equal(dErrors.MotivoEstadoInvalido, dErrors.MotivoDe(err))
	})
}

func (s *ServiceSuite) TestEliminar() {
	s.Run("author deletes a draft", func() {
		d := s.crearBorrador(s.juez)
		s.Require().NoError(s.service.Eliminar(context.Background(), d.ID, s.juez))
		_, err := s.store.PorID(context.Background(), d.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.Equal(audit.TipoEliminacionDecision, s.ultimoEvento().Tipo)
	})

	s.Run("signed decision cannot be deleted", func() {
		d := s.firmada(s.juez)
		err := s.service.Eliminar(context.Background(), d.ID, s.juez)
		s.Require().Error(err)
		s.Equal(dErrors.MotivoYaFirmada, dErrors.MotivoDe(err))
	})
}

func (s *ServiceSuite) TestLecturas() {
	propia := s.crearBorrador(s.juez)
	ajena := s.crearBorrador(s.otroJuez)

	s.Run("judges read their own decisions only", func() {
		_, err := s.service.Obtener(context.Background(), propia.ID, s.juez)
		s.NoError(err)

		_, err = s.service.Obtener(context.Background(), ajena.ID, s.juez)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		decisiones, err := s.service.Listar(context.Background(), ListarFiltros{}, s.juez)
		s.Require().NoError(err)
		s.Require().Len(decisiones, 1)
		s.Equal(propia.ID, decisiones[0].ID)
	})

	s.Run("admin and secretary read across judges", func() {
		_, err := s.service.Obtener(context.Background(), ajena.ID, s.admin)
		s.NoError(err)
		_, err = s.service.Obtener(context.Background(), ajena.ID, s.secretivo)
		s.NoError(err)

		decisiones, err := s.service.Listar(context.Background(), ListarFiltros{}, s.admin)
		s.Require().NoError(err)
		s.Len(decisiones, 2)
	})
}
