// Package errors defines the typed error taxonomy the core exposes. Every
// rejection carries a Code (the category the transport maps to a status) and
// a Motivo (a stable machine-readable reason the caller can branch on without
// string matching). Free-text matching on messages is forbidden by design
// review; add a Motivo instead.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies an error for propagation and HTTP mapping.
type Code string

const (
	// CodeValidation marks malformed input. Caller's fault, never retried.
	CodeValidation Code = "validation"
	// CodeUnauthorized marks a caller without a valid identity.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks a wrong actor or role for the target entity.
	CodeForbidden Code = "forbidden"
	// CodeConflict marks an operation invalid for the current lifecycle state.
	CodeConflict Code = "conflict"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeCertificate marks a missing, invalid or expired signing credential.
	// Surfaced distinctly so the UI can route the user to enrollment.
	CodeCertificate Code = "certificate"
	// CodeUnavailable marks a transient infrastructure failure (store or
	// signer). Safe to retry for reads and for Firmar, whose persistence is
	// idempotent per decision.
	CodeUnavailable Code = "unavailable"
	// CodeTimeout marks an operation aborted by deadline.
	CodeTimeout Code = "timeout"
	// CodeInternal marks an unexpected failure.
	CodeInternal Code = "internal"
)

// Stable machine reasons. These are part of the API contract with callers.
const (
	MotivoNoAutorizado          = "NO_AUTORIZADO"
	MotivoYaFirmada             = "YA_FIRMADA"
	MotivoEstadoInvalido        = "ESTADO_INVALIDO"
	MotivoTituloInvalido        = "TITULO_INVALIDO"
	MotivoTipoInvalido          = "TIPO_INVALIDO"
	MotivoNoEncontrada          = "NO_ENCONTRADA"
	MotivoCertNoEncontrado      = "CERT_NO_ENCONTRADO"
	MotivoCertExpirado          = "CERT_EXPIRADO"
	MotivoCertInvalido          = "CERT_INVALIDO"
	MotivoFirmanteNoDisponible  = "FIRMANTE_NO_DISPONIBLE"
	MotivoVerificacionRequerida = "VERIFICACION_REQUERIDA"
)

// Error is the concrete error type services return across the core boundary.
type Error struct {
	Code    Code
	Motivo  string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an error with a code and a human message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewMotivo builds an error that additionally carries a stable machine reason.
func NewMotivo(code Code, motivo, message string) *Error {
	return &Error{Code: code, Motivo: motivo, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WrapMotivo attaches a code, machine reason and message to an underlying error.
func WrapMotivo(err error, code Code, motivo, message string) *Error {
	return &Error{Code: code, Motivo: motivo, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for foreign
// errors so nothing ever leaks unclassified across the boundary.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// MotivoDe extracts the machine reason from err, or "" when none was set.
func MotivoDe(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Motivo
	}
	return ""
}
