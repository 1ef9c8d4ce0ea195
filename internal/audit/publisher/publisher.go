// Package publisher mirrors appended audit events to Kafka for SIEM
// consumption. Delivery is best effort: the chain in the primary store is the
// source of truth, so this path buffers, drops oldest on overflow and never
// blocks an append.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"sigej/internal/audit"
	"sigej/internal/platform/metrics"
)

// TopicEventos is the topic appended events are mirrored to.
const TopicEventos = "sigej.auditoria.eventos"

const tamanoBuffer = 1024

// Publisher implements audit.Fanout over a franz-go client.
type Publisher struct {
	client  *kgo.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	topic   string
	inbox   chan audit.Evento
}

func New(brokers []string, logger *slog.Logger, m *metrics.Metrics) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("crear cliente kafka: %w", err)
	}
	return &Publisher{
		client:  client,
		logger:  logger,
		metrics: m,
		topic:   TopicEventos,
		inbox:   make(chan audit.Evento, tamanoBuffer),
	}, nil
}

// Publicar enqueues an event without blocking. On a full buffer the oldest
// buffered event is dropped and counted; the chain entry itself is already
// durable.
func (p *Publisher) Publicar(evento audit.Evento) {
	for {
		select {
		case p.inbox <- evento:
			return
		default:
		}
		select {
		case <-p.inbox:
			if p.metrics != nil {
				p.metrics.FanoutDescartados.Inc()
			}
		default:
		}
	}
}

// mensaje is the wire shape published to Kafka.
type mensaje struct {
	Secuencia    uint64          `json:"secuencia"`
	Cadena       string          `json:"cadena"`
	Tipo         string          `json:"tipo"`
	Funcionario  string          `json:"funcionario,omitempty"`
	Correo       string          `json:"correo,omitempty"`
	Modulo       string          `json:"modulo"`
	Descripcion  string          `json:"descripcion,omitempty"`
	Datos        json.RawMessage `json:"datos,omitempty"`
	IP           string          `json:"ip,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	CreadoEn     time.Time       `json:"creado_en"`
	HashAnterior string          `json:"hash_anterior"`
	Hash         string          `json:"hash"`
}

// Run drains the inbox and produces to Kafka until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evento := <-p.inbox:
			p.producir(ctx, evento)
		}
	}
}

func (p *Publisher) producir(ctx context.Context, evento audit.Evento) {
	var funcionario string
	if !evento.FuncionarioID.IsNil() {
		funcionario = evento.FuncionarioID.String()
	}
	cuerpo, err := json.Marshal(mensaje{
		Secuencia:    evento.Secuencia,
		Cadena:       evento.Cadena,
		Tipo:         string(evento.Tipo),
		Funcionario:  funcionario,
		Correo:       evento.Correo,
		Modulo:       string(evento.Modulo),
		Descripcion:  evento.Descripcion,
		Datos:        evento.Datos,
		IP:           evento.IP,
		UserAgent:    evento.UserAgent,
		CreadoEn:     evento.CreadoEn,
		HashAnterior: evento.HashAnterior,
		Hash:         evento.Hash,
	})
	if err != nil {
		p.logger.Error("serializar evento para kafka", "error", err, "secuencia", evento.Secuencia)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(evento.Cadena),
		Value: cuerpo,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && p.logger != nil {
			p.logger.Warn("fanout de auditoría a kafka falló",
				"error", err,
				"secuencia", evento.Secuencia,
			)
			if p.metrics != nil {
				p.metrics.FanoutDescartados.Inc()
			}
		}
	})
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
