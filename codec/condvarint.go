package codec

import "io"

// CondCap returns (1<<bits) - 1, the threshold at and above which a
// conditional varint's shared field can no longer hold the value directly
// and an overflow varint follows.
func CondCap(bits uint) uint64 {
	return (uint64(1) << bits) - 1
}

// EncodeCondValue splits v into the field value that belongs in the shared
// N-bit slot and, if v >= cap, the remainder that must follow as a varint.
// hasOverflow is false when no overflow varint is required.
func EncodeCondValue(bits uint, v uint64) (field uint64, overflow uint64, hasOverflow bool) {
	cap := CondCap(bits)
	if v < cap {
		return v, 0, false
	}
	return cap, v - cap, true
}

// WriteCondOverflow writes the overflow varint for a conditional varint
// field, given the field was populated with CondCap(bits). Call only when
// EncodeCondValue reported hasOverflow.
func WriteCondOverflow(w io.Writer, v uint64) (int, error) {
	return EncodeVarint(w, v)
}

// DecodeCondValue reconstructs the full value given the N-bit field read
// from the shared byte, reading the overflow varint from r when needed.
func DecodeCondValue(r io.Reader, bits uint, field uint64) (uint64, error) {
	cap := CondCap(bits)
	if field < cap {
		return field, nil
	}
	extra, err := DecodeVarint(r)
	if err != nil {
		return 0, err
	}
	return cap + extra, nil
}
