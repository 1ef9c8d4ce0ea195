// Package postgres persists the audit chain in PostgreSQL. The append
// read-modify-write is serialized with a row lock on a single chain-tail row,
// so concurrent appends queue on the tail instead of forking the chain.
// Reads never touch the tail row and run concurrently.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"sigej/internal/audit"
	"sigej/pkg/domain"
	txcontext "sigej/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS auditoria_cadena (
	cadena     TEXT PRIMARY KEY,
	secuencia  BIGINT NOT NULL,
	hash       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS auditoria_eventos (
	secuencia      BIGINT PRIMARY KEY,
	cadena         TEXT NOT NULL,
	tipo           TEXT NOT NULL,
	funcionario_id UUID,
	correo         TEXT NOT NULL DEFAULT '',
	modulo         TEXT NOT NULL,
	descripcion    TEXT NOT NULL DEFAULT '',
	-- TEXT, not JSONB: jsonb normalizes key order and whitespace, which would
	-- change the bytes that were hashed and break re-verification.
	datos          TEXT NOT NULL DEFAULT '',
	ip             TEXT NOT NULL DEFAULT '',
	user_agent     TEXT NOT NULL DEFAULT '',
	creado_en      TIMESTAMPTZ NOT NULL,
	hash_anterior  TEXT NOT NULL,
	hash           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_auditoria_eventos_funcionario
	ON auditoria_eventos (funcionario_id, secuencia);
CREATE INDEX IF NOT EXISTS idx_auditoria_eventos_creado
	ON auditoria_eventos (creado_en);
`

// EnsureSchema creates the chain tables. Deployments with managed migrations
// can skip this; tests and dev wiring call it at startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("crear esquema de auditoría: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, construir func(secuencia uint64, hashAnterior string) (audit.Evento, error)) (audit.Evento, error) {
	if sqlTx, ok := txcontext.From(ctx); ok {
		return s.appendIn(ctx, sqlTx, construir)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return audit.Evento{}, fmt.Errorf("begin append tx: %w", err)
	}
	evento, err := s.appendIn(ctx, sqlTx, construir)
	if err != nil {
		_ = sqlTx.Rollback()
		return audit.Evento{}, err
	}
	if err := sqlTx.Commit(); err != nil {
		return audit.Evento{}, fmt.Errorf("commit append tx: %w", err)
	}
	return evento, nil
}

// appendIn runs the critical section inside the caller's transaction. The
// FOR UPDATE on the tail row is the per-chain serialization point.
func (s *Store) appendIn(ctx context.Context, sqlTx *sql.Tx, construir func(uint64, string) (audit.Evento, error)) (audit.Evento, error) {
	_, err := sqlTx.ExecContext(ctx, `
		INSERT INTO auditoria_cadena (cadena, secuencia, hash)
		VALUES ($1, 0, $2)
		ON CONFLICT (cadena) DO NOTHING
	`, audit.CadenaPrincipal, audit.HashGenesis)
	if err != nil {
		return audit.Evento{}, fmt.Errorf("inicializar cadena: %w", err)
	}

	var (
		secuencia    uint64
		hashAnterior string
	)
	err = sqlTx.QueryRowContext(ctx, `
		SELECT secuencia, hash FROM auditoria_cadena WHERE cadena = $1 FOR UPDATE
	`, audit.CadenaPrincipal).Scan(&secuencia, &hashAnterior)
	if err != nil {
		return audit.Evento{}, fmt.Errorf("bloquear cola de cadena: %w", err)
	}

	evento, err := construir(secuencia+1, hashAnterior)
	if err != nil {
		return audit.Evento{}, err
	}

	var funcionarioID *uuid.UUID
	if !evento.FuncionarioID.IsNil() {
		fid := uuid.UUID(evento.FuncionarioID)
		funcionarioID = &fid
	}
	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO auditoria_eventos (
			secuencia, cadena, tipo, funcionario_id, correo, modulo,
			descripcion, datos, ip, user_agent, creado_en, hash_anterior, hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		evento.Secuencia,
		evento.Cadena,
		string(evento.Tipo),
		funcionarioID,
		evento.Correo,
		string(evento.Modulo),
		evento.Descripcion,
		string(evento.Datos),
		evento.IP,
		evento.UserAgent,
		evento.CreadoEn,
		evento.HashAnterior,
		evento.Hash,
	)
	if err != nil {
		return audit.Evento{}, fmt.Errorf("insertar evento: %w", err)
	}

	_, err = sqlTx.ExecContext(ctx, `
		UPDATE auditoria_cadena SET secuencia = $2, hash = $3 WHERE cadena = $1
	`, audit.CadenaPrincipal, evento.Secuencia, evento.Hash)
	if err != nil {
		return audit.Evento{}, fmt.Errorf("avanzar cola de cadena: %w", err)
	}
	return evento, nil
}

const columnasEvento = `
	secuencia, cadena, tipo, funcionario_id, correo, modulo,
	descripcion, datos, ip, user_agent, creado_en, hash_anterior, hash`

func (s *Store) Rango(ctx context.Context, desde, hasta uint64) ([]audit.Evento, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+columnasEvento+`
		FROM auditoria_eventos
		WHERE secuencia BETWEEN $1 AND $2
		ORDER BY secuencia
	`, desde, hasta)
	if err != nil {
		return nil, fmt.Errorf("leer rango de auditoría: %w", err)
	}
	defer rows.Close()
	return scanEventos(rows)
}

func (s *Store) Consultar(ctx context.Context, filtros audit.Filtros) ([]audit.Evento, error) {
	var (
		condiciones []string
		args        []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	condiciones = append(condiciones, "secuencia > "+arg(filtros.Cursor))
	if !filtros.FuncionarioID.IsNil() {
		condiciones = append(condiciones, "funcionario_id = "+arg(uuid.UUID(filtros.FuncionarioID)))
	}
	if filtros.Tipo != "" {
		condiciones = append(condiciones, "tipo = "+arg(string(filtros.Tipo)))
	}
	if filtros.Modulo != "" {
		condiciones = append(condiciones, "modulo = "+arg(string(filtros.Modulo)))
	}
	if !filtros.Desde.IsZero() {
		condiciones = append(condiciones, "creado_en >= "+arg(filtros.Desde))
	}
	if !filtros.Hasta.IsZero() {
		condiciones = append(condiciones, "creado_en <= "+arg(filtros.Hasta))
	}

	consulta := `SELECT ` + columnasEvento + `
		FROM auditoria_eventos
		WHERE ` + strings.Join(condiciones, " AND ") + `
		ORDER BY secuencia`
	if filtros.Limite > 0 {
		consulta += " LIMIT " + arg(filtros.Limite)
	}

	rows, err := s.db.QueryContext(ctx, consulta, args...)
	if err != nil {
		return nil, fmt.Errorf("consultar auditoría: %w", err)
	}
	defer rows.Close()
	return scanEventos(rows)
}

func (s *Store) UltimaSecuencia(ctx context.Context) (uint64, error) {
	var secuencia uint64
	err := s.db.QueryRowContext(ctx, `
		SELECT secuencia FROM auditoria_cadena WHERE cadena = $1
	`, audit.CadenaPrincipal).Scan(&secuencia)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("leer cola de cadena: %w", err)
	}
	return secuencia, nil
}

func scanEventos(rows *sql.Rows) ([]audit.Evento, error) {
	var eventos []audit.Evento
	for rows.Next() {
		var (
			e             audit.Evento
			funcionarioID *uuid.UUID
			datos         string
		)
		err := rows.Scan(
			&e.Secuencia, &e.Cadena, (*string)(&e.Tipo), &funcionarioID,
			&e.Correo, (*string)(&e.Modulo), &e.Descripcion, &datos,
			&e.IP, &e.UserAgent, &e.CreadoEn, &e.HashAnterior, &e.Hash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan evento: %w", err)
		}
		if funcionarioID != nil {
			e.FuncionarioID = domain.FuncionarioID(*funcionarioID)
		}
		if datos != "" {
			e.Datos = []byte(datos)
		}
		eventos = append(eventos, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterar eventos: %w", err)
	}
	return eventos, nil
}
