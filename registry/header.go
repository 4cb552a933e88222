// Package registry implements the segment registry (spec.md C4): the
// durable mapping from segment id to cluster id and file offset, and the
// set of cluster files that make up a database.
package registry

import (
	"fmt"
	"io"

	"github.com/kallewoof/cqdb/codec"
)

// HeaderVersion is the wire version byte written into every Header.
const HeaderVersion uint8 = 1

// ID is a segment or cluster identifier.
type ID = uint64

// NullID marks "no cluster/segment".
const NullID ID = ^ID(0)

var magic = [2]byte{'C', 'Q'}

// Header is the forward/back index persisted at the head of a cluster
// file: a segment id -> file offset map, scoped to one cluster.
type Header struct {
	version  uint8
	cluster  ID
	segments *codec.Incmap
}

// NewHeader returns an empty header scoped to cluster.
func NewHeader(cluster ID) *Header {
	return &Header{version: HeaderVersion, cluster: cluster, segments: codec.NewIncmap()}
}

// Reset reinitializes h in place, scoped to a new cluster.
func (h *Header) Reset(cluster ID) {
	h.version = HeaderVersion
	h.cluster = cluster
	h.segments = codec.NewIncmap()
}

// Adopt copies other's contents into h, mirroring the original's
// header::adopt used to clone registry state for the reflection handle
// without re-parsing from disk.
func (h *Header) Adopt(other *Header) {
	h.version = other.version
	h.cluster = other.cluster
	segs := codec.NewIncmap()
	for i, k := range other.segments.Items() {
		_ = i
		v, _ := other.segments.Get(k)
		segs.Mark(k, v)
	}
	h.segments = segs
}

// MarkSegment records that segment begins at file position.
func (h *Header) MarkSegment(segment, position ID) {
	h.segments.Mark(segment, position)
}

// GetSegmentPosition returns the file offset segment begins at.
func (h *Header) GetSegmentPosition(segment ID) (ID, bool) {
	return h.segments.Get(segment)
}

// HasSegment reports whether segment is recorded in this header.
func (h *Header) HasSegment(segment ID) bool {
	_, ok := h.segments.Get(segment)
	return ok
}

// GetFirstSegment returns the smallest recorded segment id.
func (h *Header) GetFirstSegment() ID { return h.segments.First() }

// GetLastSegment returns the largest recorded segment id.
func (h *Header) GetLastSegment() ID { return h.segments.Last() }

// GetSegmentCount returns the number of recorded segments.
func (h *Header) GetSegmentCount() int { return h.segments.Len() }

// Cluster returns the cluster id this header is scoped to.
func (h *Header) Cluster() ID { return h.cluster }

// String renders the header for debugging, mirroring header::to_string.
func (h *Header) String() string {
	s := fmt.Sprintf("<cluster=%d>(\n", h.cluster)
	for _, k := range h.segments.Items() {
		v, _ := h.segments.Get(k)
		s += fmt.Sprintf("   %d = %d\n", k, v)
	}
	return s + ")"
}

// Encode writes 'C' 'Q' version incmap(segments).
func (h *Header) Encode(w io.Writer) error {
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{h.version}); err != nil {
		return err
	}
	return h.segments.Encode(w)
}

// Decode reads a header written by Encode, scoped to cluster.
func Decode(r io.Reader, cluster ID) (*Header, error) {
	var buf [3]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, fmt.Errorf("registry: header magic/version: %w", err)
	}
	if buf[0] != magic[0] || buf[1] != magic[1] {
		return nil, fmt.Errorf("registry: bad header magic")
	}
	h := &Header{version: buf[2], cluster: cluster, segments: codec.NewIncmap()}
	if err := h.segments.Decode(r); err != nil {
		return nil, fmt.Errorf("registry: header segments: %w", err)
	}
	return h, nil
}
