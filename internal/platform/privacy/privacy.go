// Package privacy derives stable pseudonyms for actor identities in exported
// projections. The derivation is HKDF-SHA256 keyed with a deployment secret:
// the same identity always maps to the same pseudonym, so an export stays
// joinable with itself, but without the secret the mapping cannot be reversed
// or recomputed.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const longitudSeudonimo = 16

// Seudonimizador derives pseudonyms from a fixed secret.
type Seudonimizador struct {
	secreto []byte
}

// NewSeudonimizador requires a non-empty secret. Deployments fail at startup
// rather than export identities under a guessable derivation.
func NewSeudonimizador(secreto []byte) (*Seudonimizador, error) {
	if len(secreto) == 0 {
		return nil, fmt.Errorf("el secreto de seudonimización es obligatorio")
	}
	return &Seudonimizador{secreto: secreto}, nil
}

// Derivar maps an identity to its pseudonym. Empty input stays empty so
// system events without an actor keep their blank column.
func (s *Seudonimizador) Derivar(identidad string) string {
	if identidad == "" {
		return ""
	}
	lector := hkdf.New(sha256.New, s.secreto, nil, []byte("sigej.seudonimo.v1:"+identidad))
	derivado := make([]byte, longitudSeudonimo)
	if _, err := io.ReadFull(lector, derivado); err != nil {
		// hkdf only fails when asked for more output than the hash can
		// produce, which a fixed 16-byte read never does.
		panic(err)
	}
	return hex.EncodeToString(derivado)
}
