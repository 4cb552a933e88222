package cluster

import (
	"fmt"

	"github.com/kallewoof/cqdb/stream"
)

// IndexedDelegate extends Delegate with the index read/write callbacks
// needed to maintain the header-in-next-file layout documented in
// spec.md §4.3: cluster C's file begins with C's back index (== C-1's
// forward index), and C's forward index is written at the head of
// cluster C+1's file on flush or close.
type IndexedDelegate interface {
	Delegate

	// WriteForwardIndex writes the in-memory index for the data just
	// written in cluster-1 into f, which is positioned at the head of
	// `cluster`'s own file (IndexedCluster passes the id of the file being
	// written into, one past the indexed cluster). May be called repeatedly
	// for the same index. ReadForwardIndex and ClearForwardIndex receive the
	// same file id.
	WriteForwardIndex(cluster ID, f *stream.FileStream) error
	ReadForwardIndex(cluster ID, f *stream.FileStream) error
	ClearForwardIndex(cluster ID)

	// ReadBackIndex reads the header at the start of cluster's own file,
	// which is cluster-1's forward index (or empty for the first cluster).
	ReadBackIndex(cluster ID, f *stream.FileStream) error
	ClearAndWriteBackIndex(cluster ID, f *stream.FileStream) error

	// Iterate consumes one indexed record from f for bookkeeping purposes
	// (e.g. rebuilding cross-cluster reference dictionaries on resume). It
	// returns false once there is nothing left to iterate in this cluster.
	Iterate(cluster ID, f *stream.FileStream) (bool, error)
}

// IndexedCluster is a Cluster whose consecutive files carry an index
// between them, per the layout diagram in spec.md §4.3.
type IndexedCluster struct {
	*Cluster
	delegate IndexedDelegate
}

// NewIndexed returns an IndexedCluster bound to delegate.
func NewIndexed(delegate IndexedDelegate, readonly bool) *IndexedCluster {
	base := New(delegate, readonly)
	ic := &IndexedCluster{Cluster: base, delegate: delegate}
	base.self = ic
	return ic
}

// Close flushes the forward index for the currently open cluster, if any,
// and marks it as closing.
func (ic *IndexedCluster) Close() error {
	if ic.cur == NullID {
		return nil
	}
	ic.delegate.ClusterWillClose(ic.cur)
	if ic.file != nil && !ic.file.ReadOnly() {
		if err := ic.writeForwardIndex(ic.cur); err != nil {
			return err
		}
	}
	return ic.Cluster.Close()
}

// Flush persists data and the forward index for the currently open cluster
// without closing it.
func (ic *IndexedCluster) Flush() error {
	if err := ic.Cluster.Flush(); err != nil {
		return err
	}
	if ic.cur != NullID && ic.file != nil && !ic.file.ReadOnly() {
		return ic.writeForwardIndex(ic.cur)
	}
	return nil
}

func (ic *IndexedCluster) writeForwardIndex(cluster ID) error {
	path := ic.delegate.ClusterPath(cluster + 1)
	f, err := stream.Open(path, false, false)
	if err != nil {
		return err
	}
	defer f.Close()
	return ic.delegate.WriteForwardIndex(cluster+1, f)
}

// Open opens the given cluster id, performing the full read or read-write
// index dance from spec.md §4.3.
func (ic *IndexedCluster) Open(id ID, readonly bool, clear bool) error {
	if !readonly && ic.readonly {
		return ErrReadOnly
	}
	if id == NullID {
		return fmt.Errorf("cluster: attempt to open null cluster id")
	}

	// Step 0: flush/close out the previously open cluster (write its
	// forward index if it was being written to).
	if err := ic.Close(); err != nil {
		return err
	}
	if ic.file != nil {
		ic.file.Close()
		ic.file = nil
	}

	if readonly {
		if err := ic.loadForwardIndex(id); err != nil {
			return err
		}
		ic.cur = id
		f, err := stream.Open(ic.delegate.ClusterPath(ic.cur), true, false)
		if err != nil {
			return err
		}
		ic.file = f
		if err := ic.delegate.ReadBackIndex(ic.cur, ic.file); err != nil {
			return err
		}
		ic.delegate.ClusterOpened(ic.cur, ic.file)
		return nil
	}

	// Read-write open.
	if err := ic.loadForwardIndex(id); err != nil {
		return err
	}

	ic.cur = id
	f, err := stream.Open(ic.delegate.ClusterPath(ic.cur), false, clear)
	if err != nil {
		return err
	}
	ic.file = f

	if !ic.file.EOF() {
		if err := ic.delegate.ReadBackIndex(ic.cur, ic.file); err != nil {
			return err
		}
		ic.delegate.ClusterOpened(ic.cur, ic.file)
		for {
			more, err := ic.delegate.Iterate(ic.cur, ic.file)
			if err != nil {
				return err
			}
			if !more {
				break
			}
		}
		return nil
	}

	if err := ic.delegate.ClearAndWriteBackIndex(ic.cur, ic.file); err != nil {
		return err
	}
	ic.delegate.ClusterOpened(ic.cur, ic.file)
	return nil
}

func (ic *IndexedCluster) loadForwardIndex(cluster ID) error {
	path := ic.delegate.ClusterPath(cluster + 1)
	if stream.Accessible(path) {
		f, err := stream.Open(path, true, false)
		if err != nil {
			return err
		}
		defer f.Close()
		return ic.delegate.ReadForwardIndex(cluster+1, f)
	}
	ic.delegate.ClearForwardIndex(cluster + 1)
	return nil
}
