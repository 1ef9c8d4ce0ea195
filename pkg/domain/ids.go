// Package domain holds the typed identifiers and enumerations shared across
// services. IDs are distinct types over uuid.UUID so a FuncionarioID can never
// be passed where a DecisionID is expected.
package domain

import (
	"github.com/google/uuid"

	dErrors "sigej/pkg/domain-errors"
)

type (
	// FuncionarioID identifies a judicial official (juez, secretario, admin).
	FuncionarioID uuid.UUID
	// DecisionID identifies a judicial decision document.
	DecisionID uuid.UUID
	// CausaID references the owning case. The case record itself lives in the
	// relational store outside this core; only the reference crosses in.
	CausaID uuid.UUID
)

func (id FuncionarioID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DecisionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CausaID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

func (id FuncionarioID) String() string { return uuid.UUID(id).String() }
func (id DecisionID) String() string    { return uuid.UUID(id).String() }
func (id CausaID) String() string       { return uuid.UUID(id).String() }

// NewDecisionID mints a fresh decision identifier.
func NewDecisionID() DecisionID { return DecisionID(uuid.New()) }

// NewFuncionarioID mints a fresh official identifier.
func NewFuncionarioID() FuncionarioID { return FuncionarioID(uuid.New()) }

// NewCausaID mints a fresh case reference.
func NewCausaID() CausaID { return CausaID(uuid.New()) }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseFuncionarioID validates and converts a raw string at a trust boundary.
func ParseFuncionarioID(raw string) (FuncionarioID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return FuncionarioID{}, err
	}
	return FuncionarioID(parsed), nil
}

// ParseDecisionID validates and converts a raw string at a trust boundary.
func ParseDecisionID(raw string) (DecisionID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return DecisionID{}, err
	}
	return DecisionID(parsed), nil
}

// ParseCausaID validates and converts a raw string at a trust boundary.
func ParseCausaID(raw string) (CausaID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return CausaID{}, err
	}
	return CausaID(parsed), nil
}
