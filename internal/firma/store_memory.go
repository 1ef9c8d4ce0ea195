package firma

import (
	"context"
	"sync"

	"sigej/pkg/domain"
	"sigej/pkg/platform/sentinel"
)

// InMemoryCertificados holds certificate descriptors keyed by official. Used
// in development wiring and tests; production reads the enrollment registry.
type InMemoryCertificados struct {
	mu    sync.RWMutex
	certs map[domain.FuncionarioID]CertificadoDescriptor
}

func NewInMemoryCertificados() *InMemoryCertificados {
	return &InMemoryCertificados{certs: make(map[domain.FuncionarioID]CertificadoDescriptor)}
}

func (s *InMemoryCertificados) Guardar(_ context.Context, cert CertificadoDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certs[cert.FuncionarioID] = cert
	return nil
}

func (s *InMemoryCertificados) PorFuncionario(_ context.Context, id domain.FuncionarioID) (CertificadoDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[id]
	if !ok {
		return CertificadoDescriptor{}, sentinel.ErrNotFound
	}
	return cert, nil
}
