// main wires the dependencies and owns the process lifecycle. Business rules
// live in the internal services; this file only chooses implementations from
// configuration and connects them.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"sigej/internal/audit"
	audithandler "sigej/internal/audit/handler"
	"sigej/internal/audit/publisher"
	auditpg "sigej/internal/audit/store/postgres"
	"sigej/internal/decision"
	decisionhandler "sigej/internal/decision/handler"
	decisionpg "sigej/internal/decision/store/postgres"
	"sigej/internal/firma"
	jwttoken "sigej/internal/jwt_token"
	"sigej/internal/platform/config"
	"sigej/internal/platform/httpserver"
	"sigej/internal/platform/keyedstore"
	"sigej/internal/platform/logger"
	"sigej/internal/platform/metrics"
	"sigej/internal/platform/postgres"
	"sigej/internal/platform/privacy"
	redisclient "sigej/internal/platform/redis"
	httptransport "sigej/internal/transport/http"
	"sigej/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New("error").Error("configuración inválida", "error", err)
		return err
	}
	log := logger.New(cfg.LogLevel)

	ctx, parar := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer parar()

	m := metrics.New()

	seudonimo, err := privacy.NewSeudonimizador(cfg.PseudonymSecret)
	if err != nil {
		log.Error("secreto de seudonimización inválido", "error", err)
		return err
	}

	// Stores: postgres when configured, memory otherwise.
	var (
		auditStore    audit.Store
		decisionStore decision.Store
		certificados  firma.CertificadoStore
		runner        tx.Runner = tx.NoopRunner{}
		health        func() error
	)
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("no se pudo conectar a postgres", "error", err)
			return err
		}
		defer db.Close()

		auditPG := auditpg.New(db)
		decisionPG := decisionpg.New(db)
		certificadosPG := firma.NewPostgresCertificados(db)
		for _, ensure := range []func(context.Context) error{
			auditPG.EnsureSchema, decisionPG.EnsureSchema, certificadosPG.EnsureSchema,
		} {
			if err := ensure(ctx); err != nil {
				log.Error("no se pudo preparar el esquema", "error", err)
				return err
			}
		}
		auditStore = auditPG
		decisionStore = decisionPG
		certificados = certificadosPG
		runner = tx.NewSQLRunner(db)
		health = db.Ping
	} else {
		log.Warn("sin SIGEJ_POSTGRES_URL; usando almacenamiento en memoria")
		auditStore = audit.NewInMemoryStore()
		decisionStore = decision.NewInMemoryStore()
		certificados = firma.NewInMemoryCertificados()
	}

	// Step-up facts: shared in Redis when configured so every instance sees
	// the same verification state.
	var stepUp keyedstore.Store = keyedstore.NewMemory()
	if cfg.RedisURL != "" {
		cliente, err := redisclient.New(ctx, cfg.RedisURL)
		if err != nil {
			log.Error("no se pudo conectar a redis", "error", err)
			return err
		}
		defer cliente.Close()
		stepUp = keyedstore.NewRedis(cliente.Client)
	}

	opciones := []audit.Option{audit.WithMetrics(m)}

	grupo, ctx := errgroup.WithContext(ctx)

	if cfg.KafkaBrokers != nil {
		fanout, err := publisher.New(cfg.KafkaBrokers, log, m)
		if err != nil {
			log.Error("no se pudo conectar el fanout de auditoría", "error", err)
			return err
		}
		defer fanout.Close()
		opciones = append(opciones, audit.WithFanout(fanout))
		grupo.Go(func() error { return fanout.Run(ctx) })
	}

	auditoria, err := audit.NewService(auditStore, opciones...)
	if err != nil {
		return err
	}

	var firmante firma.Firmante = firma.NewFirmanteLocal()
	if cfg.FirmanteURL != "" {
		firmante = firma.NewFirmanteHTTP(cfg.FirmanteURL, cfg.TimeoutFirma)
	}

	decisiones, err := decision.NewService(decisionStore, auditoria, certificados, firmante, runner,
		decision.WithMetrics(m),
		decision.WithTimeoutFirma(cfg.TimeoutFirma),
	)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:       log,
		Metrics:      m,
		JWTValidator: jwtService,
		Decisiones:   decisionhandler.New(decisiones, log),
		Auditoria:    audithandler.New(auditoria, log, stepUp, seudonimo),
		Health:       health,
	})

	servidor := httpserver.New(cfg.Addr, router)
	grupo.Go(func() error {
		log.Info("servidor iniciado", "addr", cfg.Addr)
		if err := servidor.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	grupo.Go(func() error {
		<-ctx.Done()
		apagado, cancelar := context.WithTimeout(context.Background(), cfg.TimeoutShutdown)
		defer cancelar()
		return servidor.Shutdown(apagado)
	})

	if err := grupo.Wait(); err != nil {
		log.Error("el servidor terminó con error", "error", err)
		return err
	}
	log.Info("servidor detenido")
	return nil
}
