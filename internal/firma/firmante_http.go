package firma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sigej/pkg/platform/sentinel"
)

// Error codes the remote signer reports in its JSON body.
const (
	codigoCertInvalido = "CERT_INVALID"
	codigoCertExpirado = "CERT_EXPIRED"
	codigoNoDisponible = "SIGNER_UNAVAILABLE"
)

// FirmanteHTTP calls the institutional signing service. Every call is bounded
// by the configured timeout; a timeout or 5xx maps to sentinel.ErrUnavailable
// so the lifecycle can leave the decision retryable.
type FirmanteHTTP struct {
	baseURL string
	client  *http.Client
}

func NewFirmanteHTTP(baseURL string, timeout time.Duration) *FirmanteHTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FirmanteHTTP{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type solicitudFirma struct {
	Serie     string `json:"serie"`
	Algoritmo string `json:"algoritmo"`
	Contenido []byte `json:"contenido"`
}

type respuestaFirma struct {
	Algoritmo    string    `json:"algoritmo"`
	ArtefactoRef string    `json:"artefacto_ref"`
	Serie        string    `json:"serie"`
	FirmadoEn    time.Time `json:"firmado_en"`
	Codigo       string    `json:"codigo,omitempty"`
	Mensaje      string    `json:"mensaje,omitempty"`
}

func (f *FirmanteHTTP) Firmar(ctx context.Context, cert CertificadoDescriptor, contenido []byte) (Firma, error) {
	cuerpo, err := json.Marshal(solicitudFirma{
		Serie:     cert.Serie,
		Algoritmo: cert.Algoritmo,
		Contenido: contenido,
	})
	if err != nil {
		return Firma{}, fmt.Errorf("serializar solicitud de firma: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/v1/firmas", bytes.NewReader(cuerpo))
	if err != nil {
		return Firma{}, fmt.Errorf("construir solicitud de firma: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Firma{}, fmt.Errorf("firmante excedió el plazo: %w", sentinel.ErrUnavailable)
		}
		return Firma{}, fmt.Errorf("llamar al firmante: %w", sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()

	var decodificada respuestaFirma
	if err := json.NewDecoder(resp.Body).Decode(&decodificada); err != nil {
		return Firma{}, fmt.Errorf("decodificar respuesta del firmante: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return Firma{}, fmt.Errorf("firmante respondió %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		switch decodificada.Codigo {
		case codigoCertExpirado:
			return Firma{}, fmt.Errorf("%s: %w", decodificada.Mensaje, sentinel.ErrExpired)
		case codigoCertInvalido:
			return Firma{}, fmt.Errorf("%s: %w", decodificada.Mensaje, sentinel.ErrInvalidState)
		case codigoNoDisponible:
			return Firma{}, fmt.Errorf("%s: %w", decodificada.Mensaje, sentinel.ErrUnavailable)
		default:
			return Firma{}, fmt.Errorf("firmante rechazó la solicitud (%d): %s", resp.StatusCode, decodificada.Mensaje)
		}
	}

	return Firma{
		Algoritmo:    decodificada.Algoritmo,
		ArtefactoRef: decodificada.ArtefactoRef,
		Serie:        decodificada.Serie,
		FirmadoEn:    decodificada.FirmadoEn,
	}, nil
}
