// Package decision implements the judicial decision lifecycle: a state
// machine from draft to a cryptographically immutable signed artifact. Once a
// decision is FIRMADA its content fields and integrity hash are frozen; no
// code path mutates them again. Further lifecycle actions (annulment) record
// new state, never in-place edits of the signed payload.
package decision

import (
	"time"
	"unicode/utf8"

	"sigej/pkg/domain"
)

// TipoDecision enumerates the judicial document types.
type TipoDecision string

const (
	TipoAuto        TipoDecision = "AUTO"
	TipoProvidencia TipoDecision = "PROVIDENCIA"
	TipoSentencia   TipoDecision = "SENTENCIA"
)

func (t TipoDecision) Valido() bool {
	switch t {
	case TipoAuto, TipoProvidencia, TipoSentencia:
		return true
	}
	return false
}

// Estado is the lifecycle state.
type Estado string

const (
	EstadoBorrador       Estado = "BORRADOR"
	EstadoListaParaFirma Estado = "LISTA_PARA_FIRMA"
	EstadoFirmada        Estado = "FIRMADA"
	EstadoAnulada        Estado = "ANULADA"
)

// transiciones is the complete transition relation. ANULADA is terminal;
// nothing ever returns to BORRADOR or LISTA_PARA_FIRMA.
var transiciones = map[Estado][]Estado{
	EstadoBorrador:       {EstadoListaParaFirma},
	EstadoListaParaFirma: {EstadoFirmada},
	EstadoFirmada:        {EstadoAnulada},
	EstadoAnulada:        {},
}

// PuedeTransicionar reports whether the state machine admits de → hacia.
func PuedeTransicionar(de, hacia Estado) bool {
	for _, permitido := range transiciones[de] {
		if permitido == hacia {
			return true
		}
	}
	return false
}

// longitudMinimaTitulo is the validation floor for decision titles.
const longitudMinimaTitulo = 5

// TituloValido checks the minimum length in runes, not bytes.
func TituloValido(titulo string) bool {
	return utf8.RuneCountInString(titulo) >= longitudMinimaTitulo
}

// FirmaDecision carries the signature metadata persisted atomically with the
// FIRMADA transition. Immutable once written.
type FirmaDecision struct {
	HashIntegridad     string
	Algoritmo          string
	CertificadoTitular string
	CertificadoSerie   string
	FirmadoEn          time.Time
	ArtefactoRef       string
}

// Decision is the judicial document. Content fields are mutable only in
// BORRADOR; Firma is non-nil exactly when Estado is FIRMADA or ANULADA.
type Decision struct {
	ID            domain.DecisionID
	CausaID       domain.CausaID
	Tipo          TipoDecision
	Titulo        string
	Contenido     string
	JuezID        domain.FuncionarioID
	Estado        Estado
	CreadoEn      time.Time
	ActualizadoEn time.Time

	Firma           *FirmaDecision
	AnuladaEn       *time.Time
	MotivoAnulacion string
}

// Clone returns a deep copy so stores can hand out values without aliasing
// their internal state.
func (d *Decision) Clone() *Decision {
	copia := *d
	if d.Firma != nil {
		firma := *d.Firma
		copia.Firma = &firma
	}
	if d.AnuladaEn != nil {
		anulada := *d.AnuladaEn
		copia.AnuladaEn = &anulada
	}
	return &copia
}

// CrearInput is the caller-facing creation shape.
type CrearInput struct {
	CausaID   domain.CausaID
	Tipo      TipoDecision
	Titulo    string
	Contenido string
}

// ActualizarInput is a partial update; nil fields are left untouched.
type ActualizarInput struct {
	Titulo    *string
	Contenido *string
}

// ResultadoIntegridad is the outcome of an on-demand hash re-verification.
// It is a result, never an error; the verifier recomputes from stored content
// and never trusts a cached flag.
type ResultadoIntegridad struct {
	Integro         bool
	HashAlmacenado  string
	HashRecalculado string
	Detalles        string
}

// ListarFiltros selects decisions for read endpoints.
type ListarFiltros struct {
	CausaID domain.CausaID
	JuezID  domain.FuncionarioID
	Estado  Estado
}
