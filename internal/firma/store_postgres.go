package firma

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"sigej/pkg/domain"
	"sigej/pkg/platform/sentinel"
)

// PostgresCertificados persists certificate descriptors. One active
// certificate per funcionario; re-enrollment replaces the row.
type PostgresCertificados struct {
	db *sql.DB
}

func NewPostgresCertificados(db *sql.DB) *PostgresCertificados {
	return &PostgresCertificados{db: db}
}

const esquemaCertificados = `
CREATE TABLE IF NOT EXISTS certificados (
	funcionario_id UUID PRIMARY KEY,
	titular        TEXT NOT NULL,
	serie          TEXT NOT NULL,
	algoritmo      TEXT NOT NULL,
	valido_desde   TIMESTAMPTZ NOT NULL,
	valido_hasta   TIMESTAMPTZ NOT NULL
);
`

func (s *PostgresCertificados) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, esquemaCertificados); err != nil {
		return fmt.Errorf("crear esquema de certificados: %w", err)
	}
	return nil
}

func (s *PostgresCertificados) Guardar(ctx context.Context, cert CertificadoDescriptor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO certificados (funcionario_id, titular, serie, algoritmo, valido_desde, valido_hasta)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (funcionario_id) DO UPDATE SET
			titular = EXCLUDED.titular,
			serie = EXCLUDED.serie,
			algoritmo = EXCLUDED.algoritmo,
			valido_desde = EXCLUDED.valido_desde,
			valido_hasta = EXCLUDED.valido_hasta
	`, uuid.UUID(cert.FuncionarioID), cert.Titular, cert.Serie, cert.Algoritmo, cert.ValidoDesde, cert.ValidoHasta)
	if err != nil {
		return fmt.Errorf("guardar certificado: %w", err)
	}
	return nil
}

func (s *PostgresCertificados) PorFuncionario(ctx context.Context, id domain.FuncionarioID) (CertificadoDescriptor, error) {
	var (
		cert CertificadoDescriptor
		fid  uuid.UUID
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT funcionario_id, titular, serie, algoritmo, valido_desde, valido_hasta
		FROM certificados WHERE funcionario_id = $1
	`, uuid.UUID(id)).Scan(&fid, &cert.Titular, &cert.Serie, &cert.Algoritmo, &cert.ValidoDesde, &cert.ValidoHasta)
	if errors.Is(err, sql.ErrNoRows) {
		return CertificadoDescriptor{}, sentinel.ErrNotFound
	}
	if err != nil {
		return CertificadoDescriptor{}, fmt.Errorf("leer certificado: %w", err)
	}
	cert.FuncionarioID = domain.FuncionarioID(fid)
	cert.ValidoDesde = cert.ValidoDesde.UTC()
	cert.ValidoHasta = cert.ValidoHasta.UTC()
	return cert, nil
}
