// Package codec implements the byte-level primitives CQDB serializes its
// durable state with: varints, conditional varints, delta-encoded ordered
// maps/sets, bitfields, and content-hash reference compression.
//
// The package has no dependency on stream, cluster, registry, or the
// database itself — it operates purely over io.Reader/io.Writer, mirroring
// the teacher's utils/io primitives (utils/io/byteconversions.go), which
// are likewise dependency-free leaf helpers.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// ErrOverflow is returned by DecodeVarint when the encoded value would
// overflow uint64, per spec: a value of 2^64-1 is a fatal codec error on
// decode.
var ErrOverflow = fmt.Errorf("codec: varint overflow")

// EncodeVarint writes v using the bitcoin-core-style base-128
// "continuation carry" scheme: each byte carries 7 bits, big-endian, all
// but the last byte have the high bit set, and the accumulator is bumped
// by one after every non-terminal byte so that each length class covers a
// disjoint range of values (0..127 in 1 byte, 128..16511 in 2, ...).
func EncodeVarint(w io.Writer, v uint64) (int, error) {
	var tmp [10]byte
	n := len(tmp)
	marker := n
	for {
		n--
		b := byte(v & 0x7f)
		if marker != n+1 {
			b |= 0x80
		}
		tmp[n] = b
		if v <= 0x7f {
			break
		}
		v = (v >> 7) - 1
	}
	return w.Write(tmp[n:marker])
}

// DecodeVarint reads a varint written by EncodeVarint.
func DecodeVarint(r io.Reader) (uint64, error) {
	var v uint64
	var b [1]byte
	for {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		if v > math.MaxUint64>>7 {
			return 0, ErrOverflow
		}
		v = (v << 7) | uint64(b[0]&0x7f)
		if b[0]&0x80 != 0 {
			if v == math.MaxUint64 {
				return 0, ErrOverflow
			}
			v++
		} else {
			return v, nil
		}
	}
}

// VarintLen returns the number of bytes EncodeVarint would write for v,
// without allocating. Used by tests asserting the exact boundary lengths
// (1 byte up to 127, 2 bytes up to 16511, 3 up to 2113663, ...).
func VarintLen(v uint64) int {
	n := 1
	for v > 0x7f {
		v = (v >> 7) - 1
		n++
	}
	return n
}

// The fixed-width helpers below mirror the original source's
// serializer::w/r for the u32 cluster size; Go's encoding/binary covers
// the other fixed-width integers directly.

// WriteFixedU32 writes a fixed-width unsigned integer in little-endian form.
func WriteFixedU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadFixedU32 reads a fixed-width unsigned integer in little-endian form.
func ReadFixedU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
