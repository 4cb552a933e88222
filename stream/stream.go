// Package stream implements the byte-oriented Stream abstraction CQDB
// reads and writes through: an in-memory buffer (MemStream) and an
// OS-file-backed implementation (FileStream), mirroring spec.md §4.2.
package stream

import (
	"fmt"
	"io"
)

// Whence mirrors io.Seeker's constants; kept as distinct names so callers
// reading this package don't need to reach for the os package for simple
// seeks.
const (
	SeekSet = io.SeekStart
	SeekCur = io.SeekCurrent
	SeekEnd = io.SeekEnd
)

// ErrEndOfStream is returned by Read when a read would pass the last byte.
// An "empty" readable stream must return this on Read rather than a short
// read (spec.md §4.2).
var ErrEndOfStream = fmt.Errorf("stream: end of stream")

// ErrReadOnly is returned by Write on a stream opened read-only.
var ErrReadOnly = fmt.Errorf("stream: read-only")

// ErrSeek is returned by Seek on a stream that does not support seeking.
var ErrSeek = fmt.Errorf("stream: seek not supported")

// Stream is the core byte-level I/O contract every CQDB layer above it
// (cluster, registry, database, chronology) is built on.
type Stream interface {
	// Read fills p entirely or returns ErrEndOfStream; it never returns a
	// short read without error, matching spec.md §4.2's "no silent short
	// read" requirement.
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Tell() int64
	EOF() bool
	Flush() error
	// Empty reports tell()==0 && eof().
	Empty() bool
	ReadByte() (byte, error)
}

// Empty is a helper usable by Stream implementations satisfying the
// spec.md definition: tell()==0 && eof().
func Empty(s Stream) bool {
	return s.Tell() == 0 && s.EOF()
}
