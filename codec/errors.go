package codec

import "fmt"

// ErrTooManyReferences is returned by EncodeReferenceSet when the caller
// attempts to pack 65536 or more references into a single unordered
// reference-set record, the hard cap Design Note 4.9 #4 preserves from the
// original source's refer(object**, size_t) assertion.
var ErrTooManyReferences = fmt.Errorf("codec: reference set has 65536 or more entries")
