package decision

import (
	"sigej/internal/integrity"
)

// RenderizarDocumento produces the canonical byte serialization of a
// decision's legal content: the exact bytes handed to the external signer and
// covered by the integrity hash. It reads only fields that are frozen at
// signature time, so re-rendering a stored decision reproduces the signed
// bytes exactly, byte for byte.
func RenderizarDocumento(d *Decision) []byte {
	return integrity.NewEncoder().
		Texto("sigej.decision.v1").
		Texto(d.ID.String()).
		Texto(d.CausaID.String()).
		Texto(string(d.Tipo)).
		Texto(d.Titulo).
		Texto(d.Contenido).
		Texto(d.JuezID.String()).
		Instante(d.CreadoEn).
		Encode()
}

// HashDocumento computes the integrity hash over the rendered document.
func HashDocumento(d *Decision) string {
	return integrity.SumBytes(RenderizarDocumento(d))
}
