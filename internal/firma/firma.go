// Package firma wraps the external signing capability and the certificate
// lookup the decision lifecycle consumes. Both are collaborators: the core
// treats certificates as read-only input and the signer as a remote,
// possibly slow, possibly transiently failing service.
package firma

import (
	"context"
	"time"

	"sigej/pkg/domain"
)

// CertificadoDescriptor is the judge's signing credential metadata.
type CertificadoDescriptor struct {
	Titular       string
	Serie         string
	Algoritmo     string
	ValidoDesde   time.Time
	ValidoHasta   time.Time
	FuncionarioID domain.FuncionarioID
}

// VigenteEn reports whether the certificate is inside its validity window.
func (c CertificadoDescriptor) VigenteEn(t time.Time) bool {
	return !t.Before(c.ValidoDesde) && !t.After(c.ValidoHasta)
}

// Firma is the result of a successful external signature.
type Firma struct {
	Algoritmo    string
	ArtefactoRef string
	Serie        string
	FirmadoEn    time.Time
}

// Firmante is the external signing capability. Implementations must bound the
// call with the context deadline; a timeout or transient failure returns
// sentinel.ErrUnavailable (wrapped) so the caller can retry safely.
type Firmante interface {
	Firmar(ctx context.Context, cert CertificadoDescriptor, contenido []byte) (Firma, error)
}

// CertificadoStore looks up the signing credential for an official.
// Returns sentinel.ErrNotFound when the official has no certificate.
type CertificadoStore interface {
	PorFuncionario(ctx context.Context, id domain.FuncionarioID) (CertificadoDescriptor, error)
}
