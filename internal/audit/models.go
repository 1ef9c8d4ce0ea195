// Package audit implements the tamper-evident audit trail. Events form an
// append-only hash chain: each entry embeds the hash of its predecessor, so
// any retroactive modification or deletion of a historical record breaks the
// chain from that point forward. The chain detects tampering after the fact;
// it does not prevent it.
package audit

import (
	"encoding/json"
	"time"

	"sigej/internal/integrity"
	"sigej/pkg/domain"
)

// HashGenesis anchors the first entry of a chain. Documented constant: a
// chain whose first link does not point here is reported as an anomaly.
const HashGenesis = "0000000000000000000000000000000000000000000000000000000000000000"

// CadenaPrincipal is the single logical chain this deployment writes. The
// stores key their tail by chain name so sharding stays a schema no-op.
const CadenaPrincipal = "auditoria"

// TipoEvento enumerates the auditable actions.
type TipoEvento string

const (
	TipoLoginExitoso           TipoEvento = "LOGIN_EXITOSO"
	TipoLoginFallido           TipoEvento = "LOGIN_FALLIDO"
	TipoCreacionCausa          TipoEvento = "CREACION_CAUSA"
	TipoCambioEstado           TipoEvento = "CAMBIO_ESTADO"
	TipoCreacionDecision       TipoEvento = "CREACION_DECISION"
	TipoActualizacionDecision  TipoEvento = "ACTUALIZACION_DECISION"
	TipoDecisionListaFirma     TipoEvento = "DECISION_LISTA_FIRMA"
	TipoFirmaDecision          TipoEvento = "FIRMA_DECISION"
	TipoAnulacionDecision      TipoEvento = "ANULACION_DECISION"
	TipoEliminacionDecision    TipoEvento = "ELIMINACION_DECISION"
	TipoConsultaAuditoria      TipoEvento = "CONSULTA_AUDITORIA"
	TipoExportacionAuditoria   TipoEvento = "EXPORTACION_AUDITORIA"
	TipoVerificacionIntegridad TipoEvento = "VERIFICACION_INTEGRIDAD"
	TipoAccesoDenegado         TipoEvento = "ACCESO_DENEGADO"
)

// Valido reports whether the event kind is known.
func (t TipoEvento) Valido() bool {
	switch t {
	case TipoLoginExitoso, TipoLoginFallido, TipoCreacionCausa, TipoCambioEstado,
		TipoCreacionDecision, TipoActualizacionDecision, TipoDecisionListaFirma,
		TipoFirmaDecision, TipoAnulacionDecision, TipoEliminacionDecision,
		TipoConsultaAuditoria, TipoExportacionAuditoria,
		TipoVerificacionIntegridad, TipoAccesoDenegado:
		return true
	}
	return false
}

// Modulo enumerates the application areas an event belongs to.
type Modulo string

const (
	ModuloAuth           Modulo = "AUTH"
	ModuloCasos          Modulo = "CASOS"
	ModuloAdmin          Modulo = "ADMIN"
	ModuloDocumentos     Modulo = "DOCUMENTOS"
	ModuloAudiencias     Modulo = "AUDIENCIAS"
	ModuloNotificaciones Modulo = "NOTIFICACIONES"
)

// Valido reports whether the module is known.
func (m Modulo) Valido() bool {
	switch m {
	case ModuloAuth, ModuloCasos, ModuloAdmin, ModuloDocumentos,
		ModuloAudiencias, ModuloNotificaciones:
		return true
	}
	return false
}

// Evento is one immutable chain entry. It is created exactly once when an
// auditable action completes, never updated and never deleted; the actor's
// correo is frozen at event time even if the user record later changes.
type Evento struct {
	Secuencia     uint64
	Cadena        string
	Tipo          TipoEvento
	FuncionarioID domain.FuncionarioID
	Correo        string
	Modulo        Modulo
	Descripcion   string
	// Datos is an opaque structured payload. The chain does not interpret it,
	// but it is hashed as part of the entry content.
	Datos        json.RawMessage
	IP           string
	UserAgent    string
	CreadoEn     time.Time
	HashAnterior string
	Hash         string
}

// CalcularHash computes the entry hash over every field except Hash itself,
// including HashAnterior. Invariant:
//
//	e.Hash == CalcularHash(e)  y  e.HashAnterior == predecesor.Hash
func (e *Evento) CalcularHash() string {
	return integrity.NewDigest().
		Entero(e.Secuencia).
		Texto(e.Cadena).
		Texto(string(e.Tipo)).
		Texto(e.FuncionarioID.String()).
		Texto(e.Correo).
		Texto(string(e.Modulo)).
		Texto(e.Descripcion).
		Bytes(e.Datos).
		Texto(e.IP).
		Texto(e.UserAgent).
		Instante(e.CreadoEn).
		Texto(e.HashAnterior).
		Sum()
}

// Borrador is the caller-facing shape of an event before it is chained.
type Borrador struct {
	Tipo          TipoEvento
	FuncionarioID domain.FuncionarioID
	Correo        string
	Modulo        Modulo
	Descripcion   string
	Datos         json.RawMessage
	IP            string
	UserAgent     string
}

// Filtros selects events for queries and exports. Zero values mean no filter.
// Ordering is always by append sequence; pagination is a sequence cursor so
// reads are stateless and restartable.
type Filtros struct {
	FuncionarioID domain.FuncionarioID
	Tipo          TipoEvento
	Modulo        Modulo
	Desde         time.Time
	Hasta         time.Time
	// Cursor is the sequence to resume after (exclusive). Zero starts at the
	// beginning.
	Cursor uint64
	Limite int
}

// Pagina is one page of query results. Siguiente is the cursor for the next
// page, zero when the results are exhausted.
type Pagina struct {
	Eventos   []Evento
	Siguiente uint64
}

// TipoAnomalia classifies what the verifier found.
type TipoAnomalia string

const (
	// AnomaliaHash: the stored hash does not match the recomputed one.
	AnomaliaHash TipoAnomalia = "HASH_NO_COINCIDE"
	// AnomaliaEnlace: the entry's HashAnterior does not match its
	// predecessor's stored hash.
	AnomaliaEnlace TipoAnomalia = "ENLACE_ROTO"
	// AnomaliaSecuencia: a gap in sequence numbers (a deleted entry).
	AnomaliaSecuencia TipoAnomalia = "SECUENCIA_INCOMPLETA"
	// AnomaliaGenesis: the first link does not match HashGenesis.
	AnomaliaGenesis TipoAnomalia = "GENESIS_INVALIDO"
)

// Anomalia is one detected deviation. It is a result, never an error.
type Anomalia struct {
	Secuencia       uint64
	Tipo            TipoAnomalia
	HashAlmacenado  string
	HashRecalculado string
	Detalle         string
}

// InformeIntegridad is the outcome of a chain verification walk.
type InformeIntegridad struct {
	Valido    bool
	Desde     uint64
	Hasta     uint64
	Revisados int
	Anomalias []Anomalia
}
