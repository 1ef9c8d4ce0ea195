package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Seudonimizador masks an actor identity for public projections. The identity
// function is used for internal exports.
type Seudonimizador func(string) string

// EscribirCSV serializes events as CSV. The payload column carries the raw
// JSON so an exported trail stays re-verifiable against the stored chain.
func EscribirCSV(w io.Writer, eventos []Evento, seudonimo Seudonimizador) error {
	if seudonimo == nil {
		seudonimo = func(s string) string { return s }
	}

	escritor := csv.NewWriter(w)
	encabezado := []string{
		"secuencia", "tipo", "funcionario", "correo", "modulo",
		"descripcion", "datos", "ip", "user_agent", "creado_en",
		"hash_anterior", "hash",
	}
	if err := escritor.Write(encabezado); err != nil {
		return fmt.Errorf("escribir encabezado csv: %w", err)
	}

	for _, e := range eventos {
		funcionario := ""
		if !e.FuncionarioID.IsNil() {
			funcionario = e.FuncionarioID.String()
		}
		fila := []string{
			strconv.FormatUint(e.Secuencia, 10),
			string(e.Tipo),
			seudonimo(funcionario),
			seudonimo(e.Correo),
			string(e.Modulo),
			e.Descripcion,
			string(e.Datos),
			e.IP,
			e.UserAgent,
			e.CreadoEn.UTC().Format(time.RFC3339Nano),
			e.HashAnterior,
			e.Hash,
		}
		if err := escritor.Write(fila); err != nil {
			return fmt.Errorf("escribir fila csv: %w", err)
		}
	}

	escritor.Flush()
	return escritor.Error()
}
