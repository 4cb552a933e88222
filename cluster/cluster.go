// Package cluster implements the segmented on-disk layout CQDB stores its
// data in: a sequence of numbered cluster files, each opened, iterated and
// closed through a caller-supplied Delegate. IndexedCluster additionally
// threads an index between consecutive cluster files, matching spec.md
// §4.3's cluster-crossing rules.
package cluster

import (
	"fmt"

	"github.com/kallewoof/cqdb/stream"
)

// ID identifies a cluster. NullID marks "no cluster yet".
type ID = uint64

// NullID is the sentinel value for "no cluster".
const NullID ID = ^ID(0)

// ErrReadOnly is returned when a write-mode operation is attempted against
// a cluster opened read-only.
var ErrReadOnly = fmt.Errorf("cluster: read-only")

// Delegate supplies cluster naming and lifecycle callbacks. Implemented by
// registry.Registry in this module.
type Delegate interface {
	// ClusterNext returns the next known cluster id after the given one, or
	// NullID if there is none.
	ClusterNext(cluster ID) ID
	// ClusterLast returns the last (tip) cluster id, creating one if
	// openForWriting is true and none exists yet.
	ClusterLast(openForWriting bool) ID
	// ClusterPath returns the filesystem path for a cluster id.
	ClusterPath(cluster ID) string
	// ClusterOpened is called right after a cluster's file is opened.
	ClusterOpened(cluster ID, f *stream.FileStream)
	// ClusterWillClose is called right before switching away from a cluster.
	ClusterWillClose(cluster ID)
}

// Cluster sequences reads and writes across a chain of cluster files,
// transparently advancing to the next cluster on EOF during reads.
type Cluster struct {
	delegate Delegate
	cur      ID
	file     *stream.FileStream
	readonly bool

	// self lets a subtype (IndexedCluster) plug itself in so that internal
	// auto-advance logic (EOF, Resume) dispatches to the subtype's Open
	// instead of Cluster's own — Go has no virtual methods through
	// embedding, so this stands in for the original's open() override.
	self opener
}

type opener interface {
	Open(id ID, readonly bool, clear bool) error
}

// New returns a Cluster bound to delegate, opened read-only or read-write.
func New(delegate Delegate, readonly bool) *Cluster {
	c := &Cluster{delegate: delegate, cur: NullID, readonly: readonly}
	c.self = c
	return c
}

// Current returns the currently open cluster id, or NullID.
func (c *Cluster) Current() ID { return c.cur }

// File returns the currently open backing stream, or nil.
func (c *Cluster) File() *stream.FileStream { return c.file }

// Open switches to the given cluster id.
func (c *Cluster) Open(id ID, readonly bool, clear bool) error {
	if !readonly && c.readonly {
		return ErrReadOnly
	}
	if c.cur != NullID {
		c.delegate.ClusterWillClose(c.cur)
	}
	requireReadonly := !clear && c.cur != NullID && id < c.cur
	if requireReadonly && !readonly {
		return fmt.Errorf("cluster: readonly mode required to open cluster %d out of sequence (currently at %d)", id, c.cur)
	}
	c.cur = id
	if c.file != nil {
		c.file.Close()
	}
	f, err := stream.Open(c.delegate.ClusterPath(c.cur), readonly, clear)
	if err != nil {
		return err
	}
	c.file = f
	c.delegate.ClusterOpened(c.cur, c.file)
	return nil
}

// Resume reopens the tip cluster for continued writing.
func (c *Cluster) Resume(clear bool) error {
	return c.self.Open(c.delegate.ClusterLast(!c.readonly), c.readonly, clear)
}

// EOF reports whether the cluster chain has no more data, advancing through
// subsequent clusters transparently as the original does.
func (c *Cluster) EOF() bool {
	if c.cur == NullID {
		return true
	}
	for {
		next := c.delegate.ClusterNext(c.cur)
		if c.file != nil && !c.file.EOF() {
			return false
		}
		if next == NullID {
			break
		}
		ro := c.readonly
		if c.file != nil {
			ro = c.file.ReadOnly()
		}
		if err := c.self.Open(next, ro, false); err != nil {
			return true
		}
	}
	return c.file == nil || c.file.EOF()
}

// Read reads len(p) bytes, transparently crossing into subsequent clusters
// on EOF the same way the original cluster::read retries after probing eof.
func (c *Cluster) Read(p []byte) (int, error) {
	for {
		n, err := c.file.Read(p)
		if err == nil {
			return n, nil
		}
		if c.EOF() {
			return n, err
		}
	}
}

func (c *Cluster) Write(p []byte) (int, error) { return c.file.Write(p) }

func (c *Cluster) Seek(offset int64, whence int) (int64, error) {
	return c.file.Seek(offset, whence)
}

func (c *Cluster) Tell() int64 { return c.file.Tell() }

func (c *Cluster) Flush() error {
	if c.file == nil {
		return nil
	}
	return c.file.Flush()
}

func (c *Cluster) Close() error {
	if c.file == nil {
		return nil
	}
	return c.file.Close()
}
