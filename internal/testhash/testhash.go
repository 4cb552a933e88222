// Package testhash provides the fixed-width hash and object types used by
// this module's own tests: a 20-byte Hash20 implementing cqdb.Hash, and a
// msgpack-encoded Record implementing cqdb.Object. Neither is part of the
// core: per spec.md §1 the concrete hash primitive and object body codec
// are application-supplied collaborators, not core responsibilities.
package testhash

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack"

	cqdb "github.com/kallewoof/cqdb"
)

// Hash20 is a 20-byte fixed-width content hash, the size of a SHA-1 or a
// RIPEMD-160 digest.
type Hash20 [20]byte

// NewHash20 returns a zeroed Hash20 as a cqdb.Hash.
func NewHash20() cqdb.Hash { return &Hash20{} }

func (h *Hash20) Bytes() []byte { return h[:] }

func (h *Hash20) SetBytes(b []byte) error {
	if len(b) != 20 {
		return fmt.Errorf("testhash: Hash20 wants 20 bytes, got %d", len(b))
	}
	copy(h[:], b)
	return nil
}

func (h *Hash20) Size() int { return 20 }

func (h *Hash20) New() cqdb.Hash { return &Hash20{} }

// Record is a minimal object body used by this module's tests: a hash and
// an application-defined payload, msgpack-encoded.
type Record struct {
	sid     cqdb.ID
	HashVal Hash20
	Payload string `msgpack:"payload"`
}

// NewRecord returns a blank Record, suitable as a decode target.
func NewRecord() cqdb.Object { return &Record{sid: cqdb.UnknownID} }

func (r *Record) SID() cqdb.ID     { return r.sid }
func (r *Record) SetSID(id cqdb.ID) { r.sid = id }
func (r *Record) Hash() cqdb.Hash  { return &r.HashVal }

func (r *Record) Encode(w cqdb.Writer) error {
	body, err := msgpack.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("testhash: encode record: %w", err)
	}
	if _, err := w.Write(r.HashVal[:]); err != nil {
		return err
	}
	lenBuf := []byte{byte(len(body)), byte(len(body) >> 8)}
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

func (r *Record) Decode(rd cqdb.Reader) error {
	if _, err := io.ReadFull(rd, r.HashVal[:]); err != nil {
		return err
	}
	lenBuf := make([]byte, 2)
	if _, err := io.ReadFull(rd, lenBuf); err != nil {
		return err
	}
	n := int(lenBuf[0]) | int(lenBuf[1])<<8
	body := make([]byte, n)
	if _, err := io.ReadFull(rd, body); err != nil {
		return err
	}
	return msgpack.Unmarshal(body, &r.Payload)
}
