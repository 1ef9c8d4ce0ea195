// Package integrity implements the canonical hasher shared by the audit chain
// and the decision lifecycle.
//
// Content is serialized deterministically: fields are appended in a fixed
// order and each field is length-prefixed (uvarint) before being fed to
// SHA-256, so no field value can forge a field boundary. Timestamps are
// serialized as fixed-format UTC; the digest never depends on ambient locale
// or timezone. Same logical content always yields the same hash.
package integrity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"time"
)

// timeLayout is the only timestamp encoding that enters a digest.
const timeLayout = time.RFC3339Nano

// Digest accumulates canonical fields and produces a SHA-256 hex sum.
// The zero value is not usable; call NewDigest.
type Digest struct {
	h       hash.Hash
	scratch [binary.MaxVarintLen64]byte
}

func NewDigest() *Digest {
	return &Digest{h: sha256.New()}
}

func (d *Digest) writeFrame(b []byte) {
	n := binary.PutUvarint(d.scratch[:], uint64(len(b)))
	d.h.Write(d.scratch[:n])
	d.h.Write(b)
}

// Texto appends a UTF-8 string field.
func (d *Digest) Texto(s string) *Digest {
	d.writeFrame([]byte(s))
	return d
}

// Bytes appends a raw byte field (opaque payloads, rendered documents).
func (d *Digest) Bytes(b []byte) *Digest {
	d.writeFrame(b)
	return d
}

// Entero appends an unsigned integer field.
func (d *Digest) Entero(v uint64) *Digest {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	d.writeFrame(buf[:n])
	return d
}

// Instante appends a timestamp field, normalized to UTC RFC3339Nano.
func (d *Digest) Instante(t time.Time) *Digest {
	d.writeFrame([]byte(t.UTC().Format(timeLayout)))
	return d
}

// Sum finalizes the digest as lowercase hex. The Digest must not be reused.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// SumBytes is a convenience for hashing a single byte field, used for
// rendered decision documents.
func SumBytes(content []byte) string {
	return NewDigest().Bytes(content).Sum()
}
