package decision

import (
	"context"
	"time"

	"sigej/pkg/domain"
)

// Store persists decisions. Mutating methods are conditional on the expected
// current state, applied atomically, so two concurrent transitions on the
// same decision can never both succeed; transitions on different decisions do
// not contend. Implementations return sentinel.ErrNotFound for missing rows
// and sentinel.ErrInvalidState when the expected-state condition fails.
type Store interface {
	Crear(ctx context.Context, d *Decision) error
	PorID(ctx context.Context, id domain.DecisionID) (*Decision, error)
	Listar(ctx context.Context, filtros ListarFiltros) ([]*Decision, error)

	// ActualizarBorrador overwrites content fields iff the row is still in
	// BORRADOR.
	ActualizarBorrador(ctx context.Context, d *Decision) error

	// CambiarEstado moves the row desde → hacia iff it is currently desde.
	CambiarEstado(ctx context.Context, id domain.DecisionID, desde, hacia Estado, cuando time.Time) error

	// GuardarFirma persists FIRMADA plus the signature fields iff the row is
	// in LISTA_PARA_FIRMA. This is the all-or-nothing write of the signing
	// step; callers retry it rather than re-invoking the signer.
	GuardarFirma(ctx context.Context, id domain.DecisionID, firma FirmaDecision, cuando time.Time) error

	// Anular flags FIRMADA → ANULADA, retaining content and hash.
	Anular(ctx context.Context, id domain.DecisionID, motivo string, cuando time.Time) error

	// Eliminar hard-deletes the row iff it is in BORRADOR.
	Eliminar(ctx context.Context, id domain.DecisionID) error
}
