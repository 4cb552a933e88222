package chronology

import (
	"fmt"
	"io"

	"github.com/kallewoof/cqdb/codec"
)

// ErrTimeOrder is returned by PushEvent when ts is behind the current
// clock.
var ErrTimeOrder = fmt.Errorf("chronology: event timestamp precedes current time")

// EncodeTimeCode computes the 2-bit time-relative code for the delta
// between prev and ts (ts must be >= prev). A pure function, independently
// testable from the header-byte and varint plumbing around it.
func EncodeTimeCode(prev, ts uint64) (code uint8, delta uint64, err error) {
	if ts < prev {
		return 0, 0, ErrTimeOrder
	}
	delta = ts - prev
	if delta >= 3 {
		return 3, delta, nil
	}
	return uint8(delta), delta, nil
}

// WriteTimeExtra writes the overflow varint for code==3 (Δ-3); a no-op for
// code<3, where the delta is carried entirely in the header byte's 2 bits.
func WriteTimeExtra(w io.Writer, code uint8, delta uint64) error {
	if code != 3 {
		return nil
	}
	_, err := codec.EncodeVarint(w, delta-3)
	return err
}

// DecodeTime reconstructs ts from prev, the 2-bit code read from the
// header byte, and (for code==3) an overflow varint read from r.
func DecodeTime(r io.Reader, prev uint64, code uint8) (ts uint64, err error) {
	if code < 3 {
		return prev + uint64(code), nil
	}
	extra, err := codec.DecodeVarint(r)
	if err != nil {
		return 0, err
	}
	return prev + 3 + extra, nil
}
