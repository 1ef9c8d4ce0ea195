package firma

import (
	"context"
	"fmt"
	"time"

	"sigej/internal/integrity"
	"sigej/pkg/requestcontext"
)

// FirmanteLocal produces deterministic signature artifacts without an
// external service. Development and test wiring only: it gives the lifecycle
// a real Firma shape while the institutional HSM stays out of the loop.
type FirmanteLocal struct{}

func NewFirmanteLocal() *FirmanteLocal {
	return &FirmanteLocal{}
}

func (f *FirmanteLocal) Firmar(ctx context.Context, cert CertificadoDescriptor, contenido []byte) (Firma, error) {
	if err := ctx.Err(); err != nil {
		return Firma{}, err
	}
	ref := integrity.NewDigest().
		Texto(cert.Serie).
		Bytes(contenido).
		Sum()
	return Firma{
		Algoritmo:    cert.Algoritmo,
		ArtefactoRef: fmt.Sprintf("local://artefactos/%s", ref),
		Serie:        cert.Serie,
		FirmadoEn:    requestcontext.Now(ctx).UTC().Truncate(time.Microsecond),
	}, nil
}
