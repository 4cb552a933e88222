package cqdb

import (
	"fmt"
	"os"

	"github.com/kallewoof/cqdb/cluster"
	"github.com/kallewoof/cqdb/codec"
	"github.com/kallewoof/cqdb/internal/log"
	"github.com/kallewoof/cqdb/registry"
	"github.com/kallewoof/cqdb/stream"
)

// Replayer is notified of every record a read-write cluster open must walk
// over to rebuild in-memory state (the chronology layer implements this to
// reconstruct its dictionary/references on resume).
type Replayer interface {
	// Replay consumes exactly one record from f, returning false once the
	// cluster body is exhausted.
	Replay(f *stream.FileStream) (bool, error)
}

// Database binds a segment Registry and the currently open IndexedCluster,
// offering typed object store/fetch and reference compression over them
// (spec.md C5). Chronology layers an event stream on top of a Database.
type Database struct {
	dbpath   string
	prefix   string
	readonly bool

	reg *registry.Registry
	ic  *cluster.IndexedCluster

	segmentBegun bool
	replayer     Replayer
	observer     Observer
}

// Open opens (or creates) a database rooted at dbpath with the given file
// prefix and cluster size, reading any existing cq.registry. A mismatched
// cluster size against an existing registry is a fatal error.
func Open(dbpath, prefix string, clusterSize uint32, readonly bool) (*Database, error) {
	if !readonly {
		if err := os.MkdirAll(dbpath, 0o755); err != nil {
			return nil, fmt.Errorf("%w: mkdir %s: %v", ErrFS, dbpath, err)
		}
	}

	db := &Database{dbpath: dbpath, prefix: prefix, readonly: readonly}
	db.reg = registry.New(db, dbpath, prefix, clusterSize)

	regPath := registry.RegistryPath(dbpath)
	if stream.Accessible(regPath) {
		f, err := stream.Open(regPath, true, false)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFS, err)
		}
		err = db.reg.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: registry: %v", ErrCorruption, err)
		}
		log.Infof("cqdb: loaded registry at %s, tip=%d clusters=%d", regPath, db.reg.Tip, len(db.reg.Clusters()))
	} else {
		log.Infof("cqdb: starting fresh database at %s", dbpath)
	}

	db.ic = cluster.NewIndexed(db.reg, readonly)
	return db, nil
}

// Load, called with no argument, opens (or resumes) the most recently
// written cluster, if any, iterating its body through the attached
// Replayer to rebuild in-memory state. Call SetReplayer before Load if a
// replayer is needed. It is safe to call Load with no replayer attached;
// the cluster's tail is simply seeked to without replay.
//
// Load, called with an Object argument, instead reads that object's body
// from the current position, assigning its sid to the pre-read offset.
func (db *Database) Load(ob ...Object) error {
	if len(ob) == 0 {
		last := db.reg.ClusterLast(!db.readonly)
		if last == cluster.NullID {
			return nil
		}
		return db.ic.Open(last, db.readonly, false)
	}
	sid := ID(db.ic.Tell())
	if err := ob[0].Decode(db.ic); err != nil {
		return err
	}
	ob[0].SetSID(sid)
	return nil
}

// SetReplayer attaches the record replayer used to catch up in-memory
// state when resuming a non-empty cluster for writing.
func (db *Database) SetReplayer(r Replayer) { db.replayer = r }

// ReadOnly reports whether this handle was opened read-only.
func (db *Database) ReadOnly() bool { return db.readonly }

// Registry exposes the underlying segment registry.
func (db *Database) Registry() *registry.Registry { return db.reg }

// Cluster returns the id of the currently open cluster, or NullID.
func (db *Database) Cluster() ID { return db.ic.Current() }

// Tell returns the current byte offset in the open cluster's file, or -1
// if no cluster is open.
func (db *Database) Tell() int64 {
	if db.ic.File() == nil {
		return -1
	}
	return db.ic.Tell()
}

// Seek repositions within the currently open cluster's file.
func (db *Database) Seek(offset int64) (int64, error) {
	return db.ic.Seek(offset, stream.SeekSet)
}

// String renders "<cluster>:<offset>" for debugging, mirroring the
// original db::stell.
func (db *Database) String() string {
	return fmt.Sprintf("%d:%d", db.Cluster(), db.Tell())
}

// Observer receives a notification immediately before the database closes
// out a cluster (e.g. to clear state scoped to that cluster's lifetime).
type Observer interface {
	ClusterClosing(cluster ID)
}

// SetObserver attaches the cluster-lifecycle observer (the chronology
// layer uses this to clear its dictionary/references/current_time on
// cluster transitions, per spec.md §4.6).
func (db *Database) SetObserver(o Observer) { db.observer = o }

// --- registry.Delegate ---

func (db *Database) ClosingCluster(c ID) {
	if db.observer != nil {
		db.observer.ClusterClosing(c)
	}
}

func (db *Database) OpenedCluster(c ID, f *stream.FileStream) {
	size := "?"
	if fi, err := os.Stat(f.Path()); err == nil {
		size = log.ByteSize(uint64(fi.Size()))
	}
	log.Debugf("cqdb: opened cluster %d (%s, %s)", c, f.Path(), size)
}

func (db *Database) Iterate(f *stream.FileStream) (bool, error) {
	if db.replayer == nil {
		if _, err := f.Seek(0, stream.SeekEnd); err != nil {
			return false, err
		}
		return false, nil
	}
	return db.replayer.Replay(f)
}

// BeginSegment marks the start of segment s. If s lands in a different
// cluster than the one currently open, the current cluster's forward index
// is flushed and the new cluster opened for writing (the indexed-cluster
// open protocol, which also writes the outgoing back index).
func (db *Database) BeginSegment(s ID) error {
	if db.readonly {
		return ErrReadOnly
	}
	if s < db.reg.Tip {
		return ErrOrdering
	}

	c := db.reg.PrepareClusterForSegment(s)
	if db.ic.Current() != c {
		if err := db.ic.Open(c, false, false); err != nil {
			return err
		}
	}
	db.segmentBegun = true
	db.reg.ForwardIndex.MarkSegment(s, ID(db.ic.Tell()))

	if err := db.persistRegistry(); err != nil {
		return err
	}
	return nil
}

// GotoSegment positions the database read-only at segment s: opens s's
// cluster if different from the currently open one, then seeks to s's
// recorded offset, falling back to the first recorded segment's offset if
// s itself was never marked (the "closest floor fallback" spec.md §9
// preserves without endorsing).
func (db *Database) GotoSegment(s ID) error {
	c := s / ID(db.reg.ClusterSize)
	if db.ic.Current() != c {
		if err := db.ic.Open(c, true, false); err != nil {
			return err
		}
	}
	if db.reg.ForwardIndex.GetSegmentCount() == 0 {
		return nil
	}
	pos, ok := db.reg.ForwardIndex.GetSegmentPosition(s)
	if !ok {
		pos = db.reg.ForwardIndex.GetFirstSegment()
		pos, ok = db.reg.ForwardIndex.GetSegmentPosition(pos)
		if !ok {
			return nil
		}
	}
	_, err := db.ic.Seek(int64(pos), stream.SeekSet)
	return err
}

// Flush persists the current cluster's forward index and the registry
// blob. Forbidden on a read-only handle.
func (db *Database) Flush() error {
	if db.readonly {
		return ErrReadOnly
	}
	if err := db.ic.Flush(); err != nil {
		return err
	}
	return db.persistRegistry()
}

// Close flushes and releases the underlying cluster file.
func (db *Database) Close() error {
	if !db.readonly {
		if err := db.ic.Close(); err != nil {
			return err
		}
		return db.persistRegistry()
	}
	return db.ic.Close()
}

// Rewind repositions the current cluster file to its start (after its back
// index), for callers that want to replay a cluster's body from scratch.
func (db *Database) Rewind() error {
	m := stream.NewMemStream()
	if err := db.reg.BackIndex.Encode(m); err != nil {
		return err
	}
	_, err := db.ic.Seek(m.Tell(), stream.SeekSet)
	return err
}

func (db *Database) persistRegistry() error {
	f, err := stream.Open(registry.RegistryPath(db.dbpath), false, true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFS, err)
	}
	defer f.Close()
	if err := db.reg.Encode(f); err != nil {
		return err
	}
	return f.Flush()
}

// RawStream is the minimal byte-level surface the chronology layer needs
// directly (for its header byte and time varint, which have no object
// schema of their own to go through Store/Load).
type RawStream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Tell() int64
	Seek(offset int64, whence int) (int64, error)
}

// Raw exposes the current cluster's byte stream for the chronology layer.
func (db *Database) Raw() RawStream { return db.ic }

// --- object store / fetch ---

// Store writes ob's body at the current position, sets ob's sid to the
// pre-write offset, and returns that sid. Requires a segment to have been
// begun on a writable handle.
func (db *Database) Store(ob Object) (ID, error) {
	if db.readonly {
		return 0, ErrReadOnly
	}
	if !db.segmentBegun {
		return 0, ErrNotReady
	}
	sid := ID(db.ic.Tell())
	if err := ob.Encode(db.ic); err != nil {
		return 0, err
	}
	ob.SetSID(sid)
	return sid, nil
}

// Fetch reads the object at absolute offset sid into ob, restoring the
// prior file position afterwards.
func (db *Database) Fetch(ob Object, sid ID) error {
	saved := db.ic.Tell()
	if _, err := db.ic.Seek(int64(sid), stream.SeekSet); err != nil {
		return err
	}
	if err := ob.Decode(db.ic); err != nil {
		return err
	}
	ob.SetSID(sid)
	_, err := db.ic.Seek(saved, stream.SeekSet)
	return err
}

// --- references ---

// ReferSID writes a backpointer to sid, the distance from the offset at
// which this backpointer's own bytes begin back to sid. sid must be
// strictly behind the current write offset.
func (db *Database) ReferSID(sid ID) error {
	if ID(db.ic.Tell()) <= sid {
		return ErrOrdering
	}
	return codec.EncodeBackpointer(db.ic, sid)
}

// ReferObject writes a backpointer to ob (ob must already have a known
// sid from a prior Store).
func (db *Database) ReferObject(ob Object) error {
	return db.ReferSID(ob.SID())
}

// ReferHash writes h's raw bytes as an unknown reference.
func (db *Database) ReferHash(h Hash) error {
	_, err := db.ic.Write(h.Bytes())
	return err
}

// DereferSID reads a backpointer and resolves it to the absolute sid it
// points at.
func (db *Database) DereferSID() (ID, error) {
	return codec.DecodeBackpointer(db.ic)
}

// DereferHash reads hashSize raw bytes into a freshly allocated hash of
// h's concrete type.
func (db *Database) DereferHash(h Hash) (Hash, error) {
	buf := make([]byte, h.Size())
	if _, err := db.ic.Read(buf); err != nil {
		return nil, err
	}
	out := h.New()
	if err := out.SetBytes(buf); err != nil {
		return nil, err
	}
	return out, nil
}

// objectResolver adapts a slice of Objects (some with known sids, some
// without) into a codec.Resolver for ReferSet/DereferSet's mixed encoding.
type objectResolver struct {
	byHash map[string]ID
}

func newObjectResolver(objs []Object) *objectResolver {
	r := &objectResolver{byHash: make(map[string]ID, len(objs))}
	for _, o := range objs {
		if o.SID() != UnknownID {
			r.byHash[string(o.Hash().Bytes())] = o.SID()
		}
	}
	return r
}

func (r *objectResolver) Lookup(hash []byte) (uint64, bool) {
	sid, ok := r.byHash[string(hash)]
	return sid, ok
}

func (r *objectResolver) Materialize(sid uint64) ([]byte, bool) { return nil, false }

// ReferSet writes an unordered reference-set for objs (spec.md §4.1's
// "mixed" scheme): objects with a known sid become backpointers, the rest
// raw hashes. len(objs) must be below 65536.
func (db *Database) ReferSet(objs []Object) error {
	if len(objs) >= 65536 {
		return ErrTooManyReferences
	}
	hashes := make([][]byte, len(objs))
	for i, o := range objs {
		hashes[i] = o.Hash().Bytes()
	}
	return codec.EncodeReferenceSet(db.ic, hashes, newObjectResolver(objs))
}

// DereferSet reads an unordered reference-set written by ReferSet.
func (db *Database) DereferSet(hashSize int) (*codec.ReferenceSet, error) {
	return codec.DecodeReferenceSet(db.ic, hashSize)
}
