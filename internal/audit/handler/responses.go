package handler

import (
	"encoding/json"
	"time"

	"sigej/internal/audit"
)

// EventoResponse is the HTTP representation of one chain entry. Hashes are
// included so a caller can re-verify an exported range independently.
type EventoResponse struct {
	Secuencia     uint64          `json:"secuencia"`
	Cadena        string          `json:"cadena"`
	Tipo          string          `json:"tipo"`
	FuncionarioID string          `json:"funcionario_id,omitempty"`
	Correo        string          `json:"correo,omitempty"`
	Modulo        string          `json:"modulo"`
	Descripcion   string          `json:"descripcion"`
	Datos         json.RawMessage `json:"datos,omitempty"`
	IP            string          `json:"ip,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
	CreadoEn      time.Time       `json:"creado_en"`
	HashAnterior  string          `json:"hash_anterior"`
	Hash          string          `json:"hash"`
}

// PaginaResponse is one page of query results with the resume cursor.
type PaginaResponse struct {
	Eventos   []EventoResponse `json:"eventos"`
	Siguiente uint64           `json:"siguiente"`
}

// AnomaliaResponse describes one finding of the verifier.
type AnomaliaResponse struct {
	Secuencia       uint64 `json:"secuencia"`
	Tipo            string `json:"tipo"`
	HashAlmacenado  string `json:"hash_almacenado,omitempty"`
	HashRecalculado string `json:"hash_recalculado,omitempty"`
	Detalle         string `json:"detalle"`
}

// InformeResponse is the HTTP response for GET /auditoria/verificar.
type InformeResponse struct {
	Valido    bool               `json:"valido"`
	Desde     uint64             `json:"desde"`
	Hasta     uint64             `json:"hasta"`
	Revisados int                `json:"revisados"`
	Anomalias []AnomaliaResponse `json:"anomalias"`
}

// FromPagina converts a query page to its HTTP representation.
func FromPagina(pagina audit.Pagina) *PaginaResponse {
	eventos := make([]EventoResponse, 0, len(pagina.Eventos))
	for _, e := range pagina.Eventos {
		resp := EventoResponse{
			Secuencia:    e.Secuencia,
			Cadena:       e.Cadena,
			Tipo:         string(e.Tipo),
			Correo:       e.Correo,
			Modulo:       string(e.Modulo),
			Descripcion:  e.Descripcion,
			Datos:        e.Datos,
			IP:           e.IP,
			UserAgent:    e.UserAgent,
			CreadoEn:     e.CreadoEn,
			HashAnterior: e.HashAnterior,
			Hash:         e.Hash,
		}
		if !e.FuncionarioID.IsNil() {
			resp.FuncionarioID = e.FuncionarioID.String()
		}
		eventos = append(eventos, resp)
	}
	return &PaginaResponse{Eventos: eventos, Siguiente: pagina.Siguiente}
}

// FromInforme converts a verification report.
func FromInforme(informe audit.InformeIntegridad) *InformeResponse {
	anomalias := make([]AnomaliaResponse, 0, len(informe.Anomalias))
	for _, a := range informe.Anomalias {
		anomalias = append(anomalias, AnomaliaResponse{
			Secuencia:       a.Secuencia,
			Tipo:            string(a.Tipo),
			HashAlmacenado:  a.HashAlmacenado,
			HashRecalculado: a.HashRecalculado,
			Detalle:         a.Detalle,
		})
	}
	return &InformeResponse{
		Valido:    informe.Valido,
		Desde:     informe.Desde,
		Hasta:     informe.Hasta,
		Revisados: informe.Revisados,
		Anomalias: anomalias,
	}
}
