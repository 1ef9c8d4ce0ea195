package integrity

import (
	"bytes"
	"encoding/binary"
	"time"
)

// Encoder builds the canonical byte serialization the Digest hashes: fields
// in fixed order, each length-prefixed with a uvarint. Use it when the
// serialized form itself must be persisted or sent to a collaborator (the
// rendered decision document handed to the external signer).
type Encoder struct {
	buf bytes.Buffer
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) writeFrame(b []byte) {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], uint64(len(b)))
	e.buf.Write(scratch[:n])
	e.buf.Write(b)
}

// Texto appends a UTF-8 string field.
func (e *Encoder) Texto(s string) *Encoder {
	e.writeFrame([]byte(s))
	return e
}

// Bytes appends a raw byte field.
func (e *Encoder) Bytes(b []byte) *Encoder {
	e.writeFrame(b)
	return e
}

// Instante appends a timestamp field, normalized to UTC RFC3339Nano.
func (e *Encoder) Instante(t time.Time) *Encoder {
	e.writeFrame([]byte(t.UTC().Format(timeLayout)))
	return e
}

// Encode returns the canonical bytes. The Encoder must not be reused.
func (e *Encoder) Encode() []byte {
	return e.buf.Bytes()
}
