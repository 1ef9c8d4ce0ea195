package handler

import (
	"strings"

	"sigej/internal/decision"
	"sigej/pkg/domain"
	dErrors "sigej/pkg/domain-errors"
)

// CrearRequest is the HTTP request body for POST /decisiones.
type CrearRequest struct {
	CausaID   string `json:"causa_id"`
	Tipo      string `json:"tipo"`
	Titulo    string `json:"titulo"`
	Contenido string `json:"contenido"`

	parsedCausaID domain.CausaID
	parsedTipo    decision.TipoDecision
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CrearRequest) Validate() error {
	r.CausaID = strings.TrimSpace(r.CausaID)
	if r.CausaID == "" {
		return dErrors.New(dErrors.CodeValidation, "causa_id es obligatorio")
	}
	causaID, err := domain.ParseCausaID(r.CausaID)
	if err != nil {
		return err
	}
	r.parsedCausaID = causaID

	tipo := decision.TipoDecision(strings.ToUpper(strings.TrimSpace(r.Tipo)))
	if !tipo.Valido() {
		return dErrors.NewMotivo(dErrors.CodeValidation, dErrors.MotivoTipoInvalido,
			"tipo debe ser AUTO, PROVIDENCIA o SENTENCIA")
	}
	r.parsedTipo = tipo

	r.Titulo = strings.TrimSpace(r.Titulo)
	if !decision.TituloValido(r.Titulo) {
		return dErrors.NewMotivo(dErrors.CodeValidation, dErrors.MotivoTituloInvalido,
			"el título es demasiado corto")
	}
	return nil
}

// Input builds the domain creation input.
func (r *CrearRequest) Input() decision.CrearInput {
	return decision.CrearInput{
		CausaID:   r.parsedCausaID,
		Tipo:      r.parsedTipo,
		Titulo:    r.Titulo,
		Contenido: r.Contenido,
	}
}

// ActualizarRequest is the HTTP request body for PATCH /decisiones/{id}.
// Absent fields are left untouched.
type ActualizarRequest struct {
	Titulo    *string `json:"titulo"`
	Contenido *string `json:"contenido"`
}

func (r *ActualizarRequest) Validate() error {
	if r.Titulo == nil && r.Contenido == nil {
		return dErrors.New(dErrors.CodeValidation, "nada que actualizar")
	}
	if r.Titulo != nil {
		recortado := strings.TrimSpace(*r.Titulo)
		if !decision.TituloValido(recortado) {
			return dErrors.NewMotivo(dErrors.CodeValidation, dErrors.MotivoTituloInvalido,
				"el título es demasiado corto")
		}
		r.Titulo = &recortado
	}
	return nil
}

// Input builds the domain patch.
func (r *ActualizarRequest) Input() decision.ActualizarInput {
	return decision.ActualizarInput{Titulo: r.Titulo, Contenido: r.Contenido}
}

// AnularRequest is the HTTP request body for POST /decisiones/{id}/anular.
type AnularRequest struct {
	Motivo string `json:"motivo"`
}

func (r *AnularRequest) Validate() error {
	r.Motivo = strings.TrimSpace(r.Motivo)
	if r.Motivo == "" {
		return dErrors.New(dErrors.CodeValidation, "motivo es obligatorio")
	}
	return nil
}
