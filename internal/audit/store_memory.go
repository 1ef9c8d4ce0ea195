package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps the chain in a slice. The appending mutex doubles as
// the per-chain serialization the Store contract requires.
type InMemoryStore struct {
	mu      sync.RWMutex
	eventos []Evento
	// The tail is tracked separately from the slice so out-of-band tampering
	// via Corromper/Suprimir cannot disturb the append path.
	ultimaSec uint64
	tailHash  string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tailHash: HashGenesis}
}

func (s *InMemoryStore) Append(ctx context.Context, construir func(secuencia uint64, hashAnterior string) (Evento, error)) (Evento, error) {
	if err := ctx.Err(); err != nil {
		return Evento{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	evento, err := construir(s.ultimaSec+1, s.tailHash)
	if err != nil {
		return Evento{}, err
	}
	s.eventos = append(s.eventos, evento)
	s.ultimaSec = evento.Secuencia
	s.tailHash = evento.Hash
	return evento, nil
}

func (s *InMemoryStore) Rango(_ context.Context, desde, hasta uint64) ([]Evento, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resultado []Evento
	for _, e := range s.eventos {
		if e.Secuencia >= desde && e.Secuencia <= hasta {
			resultado = append(resultado, e)
		}
	}
	return resultado, nil
}

func (s *InMemoryStore) Consultar(_ context.Context, filtros Filtros) ([]Evento, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var resultado []Evento
	for _, e := range s.eventos {
		if e.Secuencia <= filtros.Cursor {
			continue
		}
		if !filtros.FuncionarioID.IsNil() && e.FuncionarioID != filtros.FuncionarioID {
			continue
		}
		if filtros.Tipo != "" && e.Tipo != filtros.Tipo {
			continue
		}
		if filtros.Modulo != "" && e.Modulo != filtros.Modulo {
			continue
		}
		if !filtros.Desde.IsZero() && e.CreadoEn.Before(filtros.Desde) {
			continue
		}
		if !filtros.Hasta.IsZero() && e.CreadoEn.After(filtros.Hasta) {
			continue
		}
		resultado = append(resultado, e)
		if filtros.Limite > 0 && len(resultado) == filtros.Limite {
			break
		}
	}
	return resultado, nil
}

func (s *InMemoryStore) UltimaSecuencia(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ultimaSec, nil
}

// Corromper mutates a stored entry in place, bypassing the append path.
// Exists so integrity tests can simulate out-of-band tampering.
func (s *InMemoryStore) Corromper(secuencia uint64, mutar func(*Evento)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.eventos {
		if s.eventos[i].Secuencia == secuencia {
			mutar(&s.eventos[i])
			return true
		}
	}
	return false
}

// Suprimir removes a stored entry in place, bypassing the append path.
// Exists so integrity tests can simulate a cover-up deletion.
func (s *InMemoryStore) Suprimir(secuencia uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.eventos {
		if s.eventos[i].Secuencia == secuencia {
			s.eventos = append(s.eventos[:i], s.eventos[i+1:]...)
			return true
		}
	}
	return false
}
