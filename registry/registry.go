package registry

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/kallewoof/cqdb/cluster"
	"github.com/kallewoof/cqdb/codec"
	"github.com/kallewoof/cqdb/stream"
)

// Delegate receives registry-level lifecycle callbacks, implemented by the
// root database type.
type Delegate interface {
	// ClosingCluster is called right before the registry moves off cluster.
	ClosingCluster(cluster ID)
	// OpenedCluster is called right after cluster's file is opened.
	OpenedCluster(cluster ID, f *stream.FileStream)
	// Iterate consumes one record from f during a read-write resume's
	// catch-up pass, returning false when nothing remains to replay.
	Iterate(f *stream.FileStream) (bool, error)
}

// Registry is the durable cluster-set and segment-to-position index for a
// database directory, binding ClusterSize/tip/cluster-membership together
// with the forward/back Header pair for the cluster currently being
// written or read.
type Registry struct {
	dbpath      string
	prefix      string
	ClusterSize uint32
	Tip         ID

	clusters *codec.UnorderedSet
	delegate Delegate

	ForwardIndex *Header // header for the cluster currently being written
	BackIndex    *Header // header for the cluster immediately prior
	current      ID
}

// New returns a Registry rooted at dbpath/prefix with the given cluster
// size. It does not touch disk; call Decode to read any existing cq.registry.
func New(delegate Delegate, dbpath, prefix string, clusterSize uint32) *Registry {
	return &Registry{
		dbpath:       dbpath,
		prefix:       prefix,
		ClusterSize:  clusterSize,
		clusters:     codec.NewUnorderedSet(),
		delegate:     delegate,
		ForwardIndex: NewHeader(NullID),
		BackIndex:    NewHeader(NullID),
		current:      NullID,
	}
}

// Adopt copies other's mutable state into r, for driving a read-only
// reflection registry in lockstep with a writer without re-parsing disk.
func (r *Registry) Adopt(other *Registry) {
	clusters := codec.NewUnorderedSet()
	for _, c := range other.clusters.Items() {
		clusters.Insert(c)
	}
	r.clusters = clusters
	r.Tip = other.Tip
	r.ForwardIndex.Adopt(other.ForwardIndex)
	r.BackIndex.Adopt(other.BackIndex)
	r.current = other.current
}

// Clusters returns the known cluster ids, sorted ascending. Do not mutate.
func (r *Registry) Clusters() []ID { return r.clusters.Items() }

// PrepareClusterForSegment computes the cluster segment belongs to,
// registering it and advancing Tip as needed. Segments equal to Tip are
// allowed (re-entering the current tip); the caller is responsible for
// rejecting segments strictly less than Tip before calling this.
func (r *Registry) PrepareClusterForSegment(segment ID) ID {
	c := segment / ID(r.ClusterSize)
	r.clusters.Insert(c)
	if segment > r.Tip {
		r.Tip = segment
	}
	return c
}

// --- cluster.Delegate / cluster.IndexedDelegate ---

func (r *Registry) ClusterNext(c ID) ID {
	next, ok := r.clusters.Next(c)
	if !ok {
		return cluster.NullID
	}
	return next
}

func (r *Registry) ClusterLast(openForWriting bool) ID {
	max, ok := r.clusters.Max()
	if !ok {
		if openForWriting {
			r.clusters.Insert(0)
			return 0
		}
		return cluster.NullID
	}
	return max
}

func (r *Registry) ClusterPath(c ID) string {
	return filepath.Join(r.dbpath, fmt.Sprintf("%s%05d.cq", r.prefix, c))
}

func (r *Registry) ClusterOpened(c ID, f *stream.FileStream) {
	r.current = c
	r.delegate.OpenedCluster(c, f)
}

func (r *Registry) ClusterWillClose(c ID) {
	r.delegate.ClosingCluster(c)
}

func (r *Registry) WriteForwardIndex(c ID, f *stream.FileStream) error {
	return r.ForwardIndex.Encode(f)
}

func (r *Registry) ReadForwardIndex(c ID, f *stream.FileStream) error {
	h, err := Decode(f, c)
	if err != nil {
		return err
	}
	r.ForwardIndex = h
	return nil
}

func (r *Registry) ClearForwardIndex(c ID) {
	r.ForwardIndex = NewHeader(c)
}

func (r *Registry) ReadBackIndex(c ID, f *stream.FileStream) error {
	if f.Empty() {
		r.BackIndex = NewHeader(NullID)
		return nil
	}
	h, err := Decode(f, c-1)
	if err != nil {
		return err
	}
	r.BackIndex = h
	return nil
}

func (r *Registry) ClearAndWriteBackIndex(c ID, f *stream.FileStream) error {
	r.BackIndex = NewHeader(NullID)
	return r.BackIndex.Encode(f)
}

func (r *Registry) Iterate(c ID, f *stream.FileStream) (bool, error) {
	return r.delegate.Iterate(f)
}

// Equal reports whether two registries have identical cluster-size,
// cluster membership and tip.
func (r *Registry) Equal(other *Registry) bool {
	return r.ClusterSize == other.ClusterSize && r.clusters.Equal(other.clusters) && r.Tip == other.Tip
}

// Encode writes the persisted cq.registry blob: cluster_size(u32) ·
// clusters(unordered_set) · varint(tip - cluster_size*max(clusters)).
func (r *Registry) Encode(w io.Writer) error {
	if err := codec.WriteFixedU32(w, r.ClusterSize); err != nil {
		return err
	}
	if err := r.clusters.Encode(w); err != nil {
		return err
	}
	max, _ := r.clusters.Max()
	base := ID(r.ClusterSize) * max
	if r.Tip < base {
		return fmt.Errorf("registry: tip %d below base %d", r.Tip, base)
	}
	_, err := codec.EncodeVarint(w, r.Tip-base)
	return err
}

// Decode reads a cq.registry blob written by Encode into r, verifying
// ClusterSize matches if r.ClusterSize is already set to a nonzero value.
func (r *Registry) Decode(rd io.Reader) error {
	size, err := codec.ReadFixedU32(rd)
	if err != nil {
		return fmt.Errorf("registry: cluster size: %w", err)
	}
	if r.ClusterSize != 0 && r.ClusterSize != size {
		return fmt.Errorf("registry: cluster size mismatch: have %d, on disk %d", r.ClusterSize, size)
	}
	r.ClusterSize = size
	clusters := codec.NewUnorderedSet()
	if err := clusters.Decode(rd); err != nil {
		return fmt.Errorf("registry: clusters: %w", err)
	}
	r.clusters = clusters
	delta, err := codec.DecodeVarint(rd)
	if err != nil {
		return fmt.Errorf("registry: tip delta: %w", err)
	}
	max, _ := clusters.Max()
	r.Tip = ID(r.ClusterSize)*max + delta
	return nil
}

// RegistryPath returns the path to the cq.registry file for dbpath.
func RegistryPath(dbpath string) string {
	return filepath.Join(dbpath, "cq.registry")
}
