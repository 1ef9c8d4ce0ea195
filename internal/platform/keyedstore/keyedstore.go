// Package keyedstore holds short-lived boolean facts keyed by string, with a
// TTL. The audit export endpoint uses it to record that a funcionario passed
// a recent step-up verification; key existence is the fact, the value is a
// marker. Memory backs tests and single-instance wiring, Redis backs
// deployments where instances must share the facts.
package keyedstore

import (
	"context"
	"sync"
	"time"
)

type Store interface {
	// Marcar records the fact under clave for ttl.
	Marcar(ctx context.Context, clave string, ttl time.Duration) error
	// Vigente reports whether the fact exists and has not expired.
	Vigente(ctx context.Context, clave string) (bool, error)
}

type entrada struct {
	expira time.Time
}

// Memory is the in-process implementation. Expired entries are dropped
// lazily on read.
type Memory struct {
	mu       sync.Mutex
	entradas map[string]entrada
	ahora    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entradas: make(map[string]entrada),
		ahora:    time.Now,
	}
}

// NewMemoryConReloj injects the clock for expiry tests.
func NewMemoryConReloj(ahora func() time.Time) *Memory {
	m := NewMemory()
	m.ahora = ahora
	return m
}

func (m *Memory) Marcar(_ context.Context, clave string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entradas[clave] = entrada{expira: m.ahora().Add(ttl)}
	return nil
}

func (m *Memory) Vigente(_ context.Context, clave string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entradas[clave]
	if !ok {
		return false, nil
	}
	if m.ahora().After(e.expira) {
		delete(m.entradas, clave)
		return false, nil
	}
	return true, nil
}
