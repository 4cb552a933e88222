package cqdb

import "fmt"

// Errors raised by Database operations, named per spec.md §7's error
// taxonomy. ChronologyError-kind errors (TimeOrderError, ReflectionMismatch)
// live in the chronology subpackage since they only arise there.

// ErrNotReady is returned by Store when no segment has been begun. The
// reference writers (ReferSID, ReferObject, ReferHash, ReferSet) and writes
// through Raw do not check for a begun segment.
var ErrNotReady = fmt.Errorf("cqdb: not ready: no segment begun")

// ErrReadOnly is returned by a write operation on a database opened
// read-only.
var ErrReadOnly = fmt.Errorf("cqdb: read-only")

// ErrOrdering is returned by BeginSegment(s) when s < tip, or by ReferSID(sid)
// when sid is not strictly behind the current write offset.
var ErrOrdering = fmt.Errorf("cqdb: ordering violation")

// ErrCorruption wraps a cq.registry blob that fails to decode at Open (a
// cluster-size mismatch, a varint overflow, a bad delta, or truncated
// data). A cluster-file header with wrong magic, or a bad varint or delta
// inside a cluster file, is reported with the registry or codec package's
// own error and is not wrapped in ErrCorruption.
var ErrCorruption = fmt.Errorf("cqdb: corruption")

// ErrFS wraps an underlying filesystem error (directory creation,
// permissions) encountered at open time.
var ErrFS = fmt.Errorf("cqdb: filesystem error")

// ErrTooManyReferences is returned by ReferSet when asked to write 65536
// or more references in one unordered reference-set.
var ErrTooManyReferences = fmt.Errorf("cqdb: too many references in one set")
