package decision

import (
	"context"
	"sync"
	"time"

	"sigej/pkg/domain"
	"sigej/pkg/platform/sentinel"
)

// InMemoryStore keeps decisions in a map. One mutex serializes mutations,
// which satisfies the conditional-update contract coarsely; the postgres
// store does it per row.
type InMemoryStore struct {
	mu         sync.RWMutex
	decisiones map[domain.DecisionID]*Decision
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{decisiones: make(map[domain.DecisionID]*Decision)}
}

func (s *InMemoryStore) Crear(_ context.Context, d *Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, existe := s.decisiones[d.ID]; existe {
		return sentinel.ErrConflict
	}
	s.decisiones[d.ID] = d.Clone()
	return nil
}

func (s *InMemoryStore) PorID(_ context.Context, id domain.DecisionID) (*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisiones[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return d.Clone(), nil
}

func (s *InMemoryStore) Listar(_ context.Context, filtros ListarFiltros) ([]*Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var resultado []*Decision
	for _, d := range s.decisiones {
		if !filtros.CausaID.IsNil() && d.CausaID != filtros.CausaID {
			continue
		}
		if !filtros.JuezID.IsNil() && d.JuezID != filtros.JuezID {
			continue
		}
		if filtros.Estado != "" && d.Estado != filtros.Estado {
			continue
		}
		resultado = append(resultado, d.Clone())
	}
	return resultado, nil
}

func (s *InMemoryStore) ActualizarBorrador(_ context.Context, d *Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	actual, ok := s.decisiones[d.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if actual.Estado != EstadoBorrador {
		return sentinel.ErrInvalidState
	}
	s.decisiones[d.ID] = d.Clone()
	return nil
}

func (s *InMemoryStore) CambiarEstado(_ context.Context, id domain.DecisionID, desde, hacia Estado, cuando time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	actual, ok := s.decisiones[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if actual.Estado != desde {
		return sentinel.ErrInvalidState
	}
	actual.Estado = hacia
	actual.ActualizadoEn = cuando
	return nil
}

func (s *InMemoryStore) GuardarFirma(_ context.Context, id domain.DecisionID, firma FirmaDecision, cuando time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	actual, ok := s.decisiones[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if actual.Estado != EstadoListaParaFirma {
		return sentinel.ErrInvalidState
	}
	actual.Estado = EstadoFirmada
	actual.Firma = &firma
	actual.ActualizadoEn = cuando
	return nil
}

func (s *InMemoryStore) Anular(_ context.Context, id domain.DecisionID, motivo string, cuando time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	actual, ok := s.decisiones[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if actual.Estado != EstadoFirmada {
		return sentinel.ErrInvalidState
	}
	actual.Estado = EstadoAnulada
	actual.AnuladaEn = &cuando
	actual.MotivoAnulacion = motivo
	actual.ActualizadoEn = cuando
	return nil
}

func (s *InMemoryStore) Eliminar(_ context.Context, id domain.DecisionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	actual, ok := s.decisiones[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if actual.Estado != EstadoBorrador {
		return sentinel.ErrInvalidState
	}
	delete(s.decisiones, id)
	return nil
}

// Corromper mutates a stored decision in place, bypassing the lifecycle.
// Exists so integrity tests can simulate out-of-band store tampering.
func (s *InMemoryStore) Corromper(id domain.DecisionID, mutar func(*Decision)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisiones[id]
	if !ok {
		return false
	}
	mutar(d)
	return true
}
