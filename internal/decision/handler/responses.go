package handler

import (
	"time"

	"sigej/internal/decision"
)

// DecisionResponse is the HTTP representation of a decision.
type DecisionResponse struct {
	ID            string    `json:"id"`
	CausaID       string    `json:"causa_id"`
	Tipo          string    `json:"tipo"`
	Titulo        string    `json:"titulo"`
	Contenido     string    `json:"contenido"`
	JuezID        string    `json:"juez_id"`
	Estado        string    `json:"estado"`
	CreadoEn      time.Time `json:"creado_en"`
	ActualizadoEn time.Time `json:"actualizado_en"`

	Firma           *FirmaResponse `json:"firma,omitempty"`
	AnuladaEn       *time.Time     `json:"anulada_en,omitempty"`
	MotivoAnulacion string         `json:"motivo_anulacion,omitempty"`
}

// FirmaResponse is the signature portion of the response. ArtefactoRef is a
// reference, never the artifact itself.
type FirmaResponse struct {
	HashIntegridad     string    `json:"hash_integridad"`
	Algoritmo          string    `json:"algoritmo"`
	CertificadoTitular string    `json:"certificado_titular"`
	CertificadoSerie   string    `json:"certificado_serie"`
	FirmadoEn          time.Time `json:"firmado_en"`
	ArtefactoRef       string    `json:"artefacto_ref"`
}

// IntegridadResponse is the HTTP response for GET /decisiones/{id}/integridad.
type IntegridadResponse struct {
	Integro         bool   `json:"integro"`
	HashAlmacenado  string `json:"hash_almacenado"`
	HashRecalculado string `json:"hash_recalculado"`
	Detalles        string `json:"detalles"`
}

// FromDecision converts a domain decision to its HTTP representation.
func FromDecision(d *decision.Decision) *DecisionResponse {
	resp := &DecisionResponse{
		ID:              d.ID.String(),
		CausaID:         d.CausaID.String(),
		Tipo:            string(d.Tipo),
		Titulo:          d.Titulo,
		Contenido:       d.Contenido,
		JuezID:          d.JuezID.String(),
		Estado:          string(d.Estado),
		CreadoEn:        d.CreadoEn,
		ActualizadoEn:   d.ActualizadoEn,
		AnuladaEn:       d.AnuladaEn,
		MotivoAnulacion: d.MotivoAnulacion,
	}
	if d.Firma != nil {
		resp.Firma = &FirmaResponse{
			HashIntegridad:     d.Firma.HashIntegridad,
			Algoritmo:          d.Firma.Algoritmo,
			CertificadoTitular: d.Firma.CertificadoTitular,
			CertificadoSerie:   d.Firma.CertificadoSerie,
			FirmadoEn:          d.Firma.FirmadoEn,
			ArtefactoRef:       d.Firma.ArtefactoRef,
		}
	}
	return resp
}

// FromDecisiones converts a list for GET /decisiones.
func FromDecisiones(decisiones []*decision.Decision) []*DecisionResponse {
	respuestas := make([]*DecisionResponse, 0, len(decisiones))
	for _, d := range decisiones {
		respuestas = append(respuestas, FromDecision(d))
	}
	return respuestas
}

// FromIntegridad converts a verification result.
func FromIntegridad(r decision.ResultadoIntegridad) *IntegridadResponse {
	return &IntegridadResponse{
		Integro:         r.Integro,
		HashAlmacenado:  r.HashAlmacenado,
		HashRecalculado: r.HashRecalculado,
		Detalles:        r.Detalles,
	}
}
