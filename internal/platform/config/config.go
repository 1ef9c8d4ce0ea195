// Package config builds the process configuration from environment variables
// so main stays lean. Secrets have no defaults: a deployment without the JWT
// signing key or the pseudonymization secret refuses to start instead of
// running with a guessable value.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Addr     string
	LogLevel string

	// PostgresURL empty means memory-backed stores.
	PostgresURL string
	// RedisURL empty means in-process keyed facts.
	RedisURL string
	// KafkaBrokers empty disables the audit event fanout.
	KafkaBrokers []string

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// PseudonymSecret keys the export pseudonym derivation.
	PseudonymSecret []byte

	// FirmanteURL empty selects the local deterministic signer.
	FirmanteURL     string
	TimeoutFirma    time.Duration
	TimeoutShutdown time.Duration
}

// FromEnv reads the SIGEJ_* environment. Missing secrets are startup errors.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:            valorODefecto("SIGEJ_ADDR", ":8080"),
		LogLevel:        valorODefecto("SIGEJ_LOG_LEVEL", "info"),
		PostgresURL:     os.Getenv("SIGEJ_POSTGRES_URL"),
		RedisURL:        os.Getenv("SIGEJ_REDIS_URL"),
		JWTIssuer:       valorODefecto("SIGEJ_JWT_ISSUER", "sigej"),
		JWTAudience:     valorODefecto("SIGEJ_JWT_AUDIENCE", "sigej-api"),
		FirmanteURL:     os.Getenv("SIGEJ_FIRMANTE_URL"),
		TimeoutFirma:    duracionODefecto("SIGEJ_TIMEOUT_FIRMA_SEGUNDOS", 10*time.Second),
		TimeoutShutdown: duracionODefecto("SIGEJ_TIMEOUT_SHUTDOWN_SEGUNDOS", 10*time.Second),
	}

	cfg.JWTSigningKey = os.Getenv("SIGEJ_JWT_SIGNING_KEY")
	if cfg.JWTSigningKey == "" {
		return Config{}, fmt.Errorf("SIGEJ_JWT_SIGNING_KEY es obligatorio")
	}

	secreto := os.Getenv("SIGEJ_PSEUDONYM_SECRET")
	if secreto == "" {
		return Config{}, fmt.Errorf("SIGEJ_PSEUDONYM_SECRET es obligatorio")
	}
	cfg.PseudonymSecret = []byte(secreto)

	if brokers := os.Getenv("SIGEJ_KAFKA_BROKERS"); brokers != "" {
		for _, broker := range strings.Split(brokers, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}
	return cfg, nil
}

func valorODefecto(clave, defecto string) string {
	if v := os.Getenv(clave); v != "" {
		return v
	}
	return defecto
}

func duracionODefecto(clave string, defecto time.Duration) time.Duration {
	v := os.Getenv(clave)
	if v == "" {
		return defecto
	}
	segundos, err := strconv.Atoi(v)
	if err != nil || segundos <= 0 {
		return defecto
	}
	return time.Duration(segundos) * time.Second
}
