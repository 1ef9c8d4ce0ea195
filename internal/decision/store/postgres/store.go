// Package postgres persists decisions in PostgreSQL. Every state-changing
// statement carries the expected current state in its WHERE clause, so a
// transition that lost a race affects zero rows and is reported as an invalid
// state instead of silently overwriting a concurrent winner.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sigej/internal/decision"
	"sigej/pkg/domain"
	"sigej/pkg/platform/sentinel"
	txcontext "sigej/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS decisiones (
	id                  UUID PRIMARY KEY,
	causa_id            UUID NOT NULL,
	tipo                TEXT NOT NULL,
	titulo              TEXT NOT NULL,
	contenido           TEXT NOT NULL DEFAULT '',
	juez_id             UUID NOT NULL,
	estado              TEXT NOT NULL,
	creado_en           TIMESTAMPTZ NOT NULL,
	actualizado_en      TIMESTAMPTZ NOT NULL,

	hash_integridad     TEXT,
	firma_algoritmo     TEXT,
	certificado_titular TEXT,
	certificado_serie   TEXT,
	firmado_en          TIMESTAMPTZ,
	artefacto_ref       TEXT,

	anulada_en          TIMESTAMPTZ,
	motivo_anulacion    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_decisiones_causa ON decisiones (causa_id, creado_en);
CREATE INDEX IF NOT EXISTS idx_decisiones_juez  ON decisiones (juez_id, creado_en);
`

// EnsureSchema creates the decisions table. Tests and dev wiring call it at
// startup; managed deployments migrate out of band.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("crear esquema de decisiones: %w", err)
	}
	return nil
}

// runner returns the transaction from the context when the caller opened one,
// otherwise the pool itself.
func (s *Store) runner(ctx context.Context) interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
} {
	if sqlTx, ok := txcontext.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *Store) Crear(ctx context.Context, d *decision.Decision) error {
	_, err := s.runner(ctx).ExecContext(ctx, `
		INSERT INTO decisiones (
			id, causa_id, tipo, titulo, contenido, juez_id,
			estado, creado_en, actualizado_en
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(d.ID), uuid.UUID(d.CausaID), string(d.Tipo), d.Titulo,
		d.Contenido, uuid.UUID(d.JuezID), string(d.Estado), d.CreadoEn, d.ActualizadoEn,
	)
	if err != nil {
		return fmt.Errorf("insertar decisión: %w", err)
	}
	return nil
}

const columnasDecision = `
	id, causa_id, tipo, titulo, contenido, juez_id, estado,
	creado_en, actualizado_en,
	hash_integridad, firma_algoritmo, certificado_titular, certificado_serie,
	firmado_en, artefacto_ref, anulada_en, motivo_anulacion`

func (s *Store) PorID(ctx context.Context, id domain.DecisionID) (*decision.Decision, error) {
	row := s.runner(ctx).QueryRowContext(ctx, `
		SELECT `+columnasDecision+` FROM decisiones WHERE id = $1
	`, uuid.UUID(id))
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leer decisión: %w", err)
	}
	return d, nil
}

func (s *Store) Listar(ctx context.Context, filtros decision.ListarFiltros) ([]*decision.Decision, error) {
	var (
		condiciones = []string{"TRUE"}
		args        []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if !filtros.CausaID.IsNil() {
		condiciones = append(condiciones, "causa_id = "+arg(uuid.UUID(filtros.CausaID)))
	}
	if !filtros.JuezID.IsNil() {
		condiciones = append(condiciones, "juez_id = "+arg(uuid.UUID(filtros.JuezID)))
	}
	if filtros.Estado != "" {
		condiciones = append(condiciones, "estado = "+arg(string(filtros.Estado)))
	}

	rows, err := s.runner(ctx).QueryContext(ctx, `
		SELECT `+columnasDecision+`
		FROM decisiones
		WHERE `+strings.Join(condiciones, " AND ")+`
		ORDER BY creado_en, id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("listar decisiones: %w", err)
	}
	defer rows.Close()

	var decisiones []*decision.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decisión: %w", err)
		}
		decisiones = append(decisiones, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterar decisiones: %w", err)
	}
	return decisiones, nil
}

func (s *Store) ActualizarBorrador(ctx context.Context, d *decision.Decision) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		UPDATE decisiones
		SET titulo = $2, contenido = $3, actualizado_en = $4
		WHERE id = $1 AND estado = $5
	`, uuid.UUID(d.ID), d.Titulo, d.Contenido, d.ActualizadoEn, string(decision.EstadoBorrador))
	if err != nil {
		return fmt.Errorf("actualizar borrador: %w", err)
	}
	return s.exigirFila(ctx, res, d.ID)
}

func (s *Store) CambiarEstado(ctx context.Context, id domain.DecisionID, desde, hacia decision.Estado, cuando time.Time) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		UPDATE decisiones
		SET estado = $3, actualizado_en = $4
		WHERE id = $1 AND estado = $2
	`, uuid.UUID(id), string(desde), string(hacia), cuando)
	if err != nil {
		return fmt.Errorf("cambiar estado: %w", err)
	}
	return s.exigirFila(ctx, res, id)
}

func (s *Store) GuardarFirma(ctx context.Context, id domain.DecisionID, firma decision.FirmaDecision, cuando time.Time) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		UPDATE decisiones
		SET estado = $2, actualizado_en = $3,
		    hash_integridad = $4, firma_algoritmo = $5,
		    certificado_titular = $6, certificado_serie = $7,
		    firmado_en = $8, artefacto_ref = $9
		WHERE id = $1 AND estado = $10
	`,
		uuid.UUID(id), string(decision.EstadoFirmada), cuando,
		firma.HashIntegridad, firma.Algoritmo,
		firma.CertificadoTitular, firma.CertificadoSerie,
		firma.FirmadoEn, firma.ArtefactoRef,
		string(decision.EstadoListaParaFirma),
	)
	if err != nil {
		return fmt.Errorf("guardar firma: %w", err)
	}
	return s.exigirFila(ctx, res, id)
}

func (s *Store) Anular(ctx context.Context, id domain.DecisionID, motivo string, cuando time.Time) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		UPDATE decisiones
		SET estado = $2, anulada_en = $3, motivo_anulacion = $4, actualizado_en = $3
		WHERE id = $1 AND estado = $5
	`, uuid.UUID(id), string(decision.EstadoAnulada), cuando, motivo, string(decision.EstadoFirmada))
	if err != nil {
		return fmt.Errorf("anular decisión: %w", err)
	}
	return s.exigirFila(ctx, res, id)
}

func (s *Store) Eliminar(ctx context.Context, id domain.DecisionID) error {
	res, err := s.runner(ctx).ExecContext(ctx, `
		DELETE FROM decisiones WHERE id = $1 AND estado = $2
	`, uuid.UUID(id), string(decision.EstadoBorrador))
	if err != nil {
		return fmt.Errorf("eliminar decisión: %w", err)
	}
	return s.exigirFila(ctx, res, id)
}

// exigirFila distinguishes a missing row from a failed state condition after
// a conditional write touched zero rows.
func (s *Store) exigirFila(ctx context.Context, res sql.Result, id domain.DecisionID) error {
	afectadas, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("filas afectadas: %w", err)
	}
	if afectadas > 0 {
		return nil
	}
	var existe bool
	err = s.runner(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM decisiones WHERE id = $1)
	`, uuid.UUID(id)).Scan(&existe)
	if err != nil {
		return fmt.Errorf("comprobar existencia: %w", err)
	}
	if !existe {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDecision(row scanner) (*decision.Decision, error) {
	var (
		d                  decision.Decision
		id, causaID, juez  uuid.UUID
		hashIntegridad     sql.NullString
		firmaAlgoritmo     sql.NullString
		certificadoTitular sql.NullString
		certificadoSerie   sql.NullString
		firmadoEn          sql.NullTime
		artefactoRef       sql.NullString
		anuladaEn          sql.NullTime
	)
	err := row.Scan(
		&id, &causaID, (*string)(&d.Tipo), &d.Titulo, &d.Contenido, &juez,
		(*string)(&d.Estado), &d.CreadoEn, &d.ActualizadoEn,
		&hashIntegridad, &firmaAlgoritmo, &certificadoTitular, &certificadoSerie,
		&firmadoEn, &artefactoRef, &anuladaEn, &d.MotivoAnulacion,
	)
	if err != nil {
		return nil, err
	}
	d.ID = domain.DecisionID(id)
	d.CausaID = domain.CausaID(causaID)
	d.JuezID = domain.FuncionarioID(juez)
	d.CreadoEn = d.CreadoEn.UTC()
	d.ActualizadoEn = d.ActualizadoEn.UTC()
	if hashIntegridad.Valid {
		d.Firma = &decision.FirmaDecision{
			HashIntegridad:     hashIntegridad.String,
			Algoritmo:          firmaAlgoritmo.String,
			CertificadoTitular: certificadoTitular.String,
			CertificadoSerie:   certificadoSerie.String,
			FirmadoEn:          firmadoEn.Time.UTC(),
			ArtefactoRef:       artefactoRef.String,
		}
	}
	if anuladaEn.Valid {
		cuando := anuladaEn.Time.UTC()
		d.AnuladaEn = &cuando
	}
	return &d, nil
}
