package audit

import "context"

// Store persists chain entries. Implementations must execute Append's
// construir callback under per-chain serialization: the read of the current
// tail and the insert of the new entry are one critical section, so two
// concurrent appends can never both chain to the same predecessor. Reads run
// concurrently and are never blocked by appends on other ranges.
type Store interface {
	// Append runs construir with the next sequence number and the current
	// tail hash, then durably inserts the returned entry and advances the
	// tail. A failed append is returned to the caller, never dropped.
	Append(ctx context.Context, construir func(secuencia uint64, hashAnterior string) (Evento, error)) (Evento, error)

	// Rango returns the entries with secuencia in [desde, hasta] in sequence
	// order, from a consistent read snapshot. Missing entries are simply
	// absent; the verifier turns absences into anomalies.
	Rango(ctx context.Context, desde, hasta uint64) ([]Evento, error)

	// Consultar returns entries matching the filters in sequence order.
	Consultar(ctx context.Context, filtros Filtros) ([]Evento, error)

	// UltimaSecuencia returns the tail sequence, zero for an empty chain.
	UltimaSecuencia(ctx context.Context) (uint64, error)
}
