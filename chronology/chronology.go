// Package chronology layers an event log on top of cqdb.Database (spec.md
// C6): a time-delta-compressed command byte, an in-memory object
// dictionary, and known/unknown reference resolution that collapses
// repeated references into backpointers.
package chronology

import (
	"fmt"

	cqdb "github.com/kallewoof/cqdb"
	"github.com/kallewoof/cqdb/stream"
)

// ErrNotReady is returned by PushEvent before any segment has been begun
// when the event stores its subject's body (referOnly false, subject not
// yet known). Events with no subject, with a known subject, or with
// referOnly true are written without this check.
var ErrNotReady = cqdb.ErrNotReady

// ID is a segment id, cluster id, or object sid.
type ID = cqdb.ID

// dictEntry pairs a stored object with its hash for fast reverse lookup.
type dictEntry struct {
	ob   cqdb.Object
	hash cqdb.Hash
}

// Chronology wraps a *cqdb.Database with event-log semantics.
type Chronology struct {
	db *cqdb.Database

	currentTime uint64
	dictionary  map[ID]dictEntry    // sid -> object
	references  map[string]ID       // hash bytes -> sid
	newHash     func() cqdb.Hash    // factory for decoding unknown hashes
	newObject   func() cqdb.Object  // factory for decoding object bodies
	reflection  *Reflection
}

// Open opens (or creates) a chronology-backed database at dbpath/prefix.
// newHash and newObject construct blank instances for decode paths.
func Open(dbpath, prefix string, clusterSize uint32, readonly bool, newHash func() cqdb.Hash, newObject func() cqdb.Object) (*Chronology, error) {
	db, err := cqdb.Open(dbpath, prefix, clusterSize, readonly)
	if err != nil {
		return nil, err
	}
	c := &Chronology{
		db:         db,
		dictionary: make(map[ID]dictEntry),
		references: make(map[string]ID),
		newHash:    newHash,
		newObject:  newObject,
	}
	db.SetObserver(c)
	db.SetReplayer(c)
	if err := db.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Database exposes the bound database for callers that need lower-level
// access (registry inspection, Flush/Close, etc).
func (c *Chronology) Database() *cqdb.Database { return c.db }

// CurrentTime returns the clock value events are delta-encoded against.
func (c *Chronology) CurrentTime() uint64 { return c.currentTime }

// ClusterClosing implements cqdb.Observer: clears all cluster-scoped state.
func (c *Chronology) ClusterClosing(cluster ID) {
	for sid := range c.dictionary {
		delete(c.dictionary, sid)
	}
	for h := range c.references {
		delete(c.references, h)
	}
	c.currentTime = 0
}

// Replay implements cqdb.Replayer: consumes one record to rebuild the
// dictionary/references while resuming a non-empty cluster for writing.
func (c *Chronology) Replay(f *stream.FileStream) (bool, error) {
	if f.EOF() {
		return false, nil
	}
	if _, _, _, err := c.popEventFrom(f); err != nil {
		if err == stream.ErrEndOfStream {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// --- writing ---

// BeginSegment delegates to the database, clearing cluster-scoped state
// first if the segment lands in a new cluster (time resets with it).
func (c *Chronology) BeginSegment(s ID) error {
	if c.crossesCluster(s) {
		c.currentTime = 0
	}
	if err := c.db.BeginSegment(s); err != nil {
		return err
	}
	if c.reflection != nil {
		if err := c.db.Flush(); err != nil {
			return err
		}
		// The reflection handle is read-only: it never begins its own
		// segments, it just keeps popping events from wherever it already
		// is, catching up with whatever the writer just flushed.
		return c.reflection.compare(c)
	}
	return nil
}

// GotoSegment delegates to the database, resetting the clock if the
// segment lands in a new cluster. spec.md §9 notes the resulting clock
// value may be wrong when s is not cluster-aligned; this is preserved
// rather than silently "fixed".
func (c *Chronology) GotoSegment(s ID) error {
	if c.crossesCluster(s) {
		c.currentTime = 0
	}
	return c.db.GotoSegment(s)
}

func (c *Chronology) crossesCluster(s ID) bool {
	target := s / ID(c.db.Registry().ClusterSize)
	return target != c.db.Cluster()
}

// PushEvent writes one event. When referOnly is false and subject is not
// already known, the subject's body is stored and it becomes known for
// the remainder of the current cluster's lifetime.
func (c *Chronology) PushEvent(ts uint64, cmd uint8, subject cqdb.Object, referOnly bool) error {
	code, delta, err := EncodeTimeCode(c.currentTime, ts)
	if err != nil {
		return err
	}

	known := false
	if subject != nil {
		_, known = c.references[string(subject.Hash().Bytes())]
	}

	header := cmd&0x1f | boolBit(known, 5) | code<<6
	if _, err := c.db.Raw().Write([]byte{header}); err != nil {
		return err
	}
	if err := WriteTimeExtra(c.db.Raw(), code, delta); err != nil {
		return err
	}
	c.currentTime = ts

	if subject == nil {
		return nil
	}
	if known {
		return c.db.ReferObject(c.resolveKnown(subject))
	}
	if referOnly {
		return c.db.ReferHash(subject.Hash())
	}
	sid, err := c.db.Store(subject)
	if err != nil {
		return err
	}
	c.remember(sid, subject)
	return nil
}

// resolveKnown returns the dictionary's own object for subject's hash so
// ReferObject sees the dictionary-assigned sid (subject itself may be a
// caller-local value without its sid populated).
func (c *Chronology) resolveKnown(subject cqdb.Object) cqdb.Object {
	if sid, ok := c.references[string(subject.Hash().Bytes())]; ok {
		if e, ok := c.dictionary[sid]; ok {
			return e.ob
		}
	}
	return subject
}

func (c *Chronology) remember(sid ID, ob cqdb.Object) {
	ob.SetSID(sid)
	c.dictionary[sid] = dictEntry{ob: ob, hash: ob.Hash()}
	c.references[string(ob.Hash().Bytes())] = sid
}

// PushEventSet writes a headerless-subject event followed by an unordered
// reference-set over subjects, upgrading any hash already known in the
// dictionary to a known reference transparently.
func (c *Chronology) PushEventSet(ts uint64, cmd uint8, subjects []cqdb.Object) error {
	if err := c.PushEvent(ts, cmd, nil, true); err != nil {
		return err
	}
	resolved := make([]cqdb.Object, len(subjects))
	for i, s := range subjects {
		resolved[i] = c.resolveKnown(s)
	}
	return c.db.ReferSet(resolved)
}

// --- reading ---

// PopEvent reads the next event's command and known bit, returning
// ok=false at a clean end of stream (including a transparent cluster
// boundary with nothing further to read).
func (c *Chronology) PopEvent() (cmd uint8, known bool, ok bool, err error) {
	cmd, known, ts, err := c.popEventFrom(c.db.Raw())
	if err != nil {
		if err == stream.ErrEndOfStream {
			return 0, false, false, nil
		}
		return 0, false, false, err
	}
	c.currentTime = ts
	return cmd, known, true, nil
}

// PeekTime reads the next event's timestamp without consuming it.
func (c *Chronology) PeekTime() (t uint64, ok bool, err error) {
	pos := c.db.Raw().Tell()
	_, _, ts, err := c.popEventFrom(c.db.Raw())
	if err != nil {
		if err == stream.ErrEndOfStream {
			return 0, false, nil
		}
		return 0, false, err
	}
	if _, serr := c.db.Raw().Seek(pos, stream.SeekSet); serr != nil {
		return 0, false, serr
	}
	return ts, true, nil
}

type rawReader interface {
	Read(p []byte) (int, error)
	Tell() int64
}

func (c *Chronology) popEventFrom(r rawReader) (cmd uint8, known bool, ts uint64, err error) {
	var b [1]byte
	if _, err = r.Read(b[:]); err != nil {
		return 0, false, 0, err
	}
	cmd = b[0] & 0x1f
	known = b[0]&0x20 != 0
	code := b[0] >> 6
	ts, err = DecodeTime(r, c.currentTime, code)
	return cmd, known, ts, err
}

// PopObject reads an object body from the current position, assigning its
// sid and recording it in the dictionary/references.
func (c *Chronology) PopObject() (cqdb.Object, error) {
	ob := c.newObject()
	if err := c.db.Load(ob); err != nil {
		return nil, err
	}
	c.remember(ob.SID(), ob)
	return ob, nil
}

// PopReference reads a single backpointer, returning the sid it resolves
// to.
func (c *Chronology) PopReference() (ID, error) {
	return c.db.DereferSID()
}

// PopReferenceHash reads a single raw (unknown) hash reference.
func (c *Chronology) PopReferenceHash() (cqdb.Hash, error) {
	return c.db.DereferHash(c.newHash())
}

// PopReferences decodes an unordered reference-set into known sids and
// unknown hashes.
func (c *Chronology) PopReferences() (known []ID, unknown []cqdb.Hash, err error) {
	rs, err := c.db.DereferSet(c.newHash().Size())
	if err != nil {
		return nil, nil, err
	}
	unknown = make([]cqdb.Hash, len(rs.Unknown))
	for i, raw := range rs.Unknown {
		h := c.newHash()
		if err := h.SetBytes(raw); err != nil {
			return nil, nil, err
		}
		unknown[i] = h
	}
	known = make([]ID, len(rs.Known))
	copy(known, rs.Known)
	return known, unknown, nil
}

// PopReferenceHashes is PopReferences with known sids resolved to hashes
// via the dictionary and merged into the returned slice.
func (c *Chronology) PopReferenceHashes() ([]cqdb.Hash, error) {
	known, mixed, err := c.PopReferences()
	if err != nil {
		return nil, err
	}
	for _, sid := range known {
		e, ok := c.dictionary[sid]
		if !ok {
			return nil, fmt.Errorf("chronology: pop_reference_hashes: unknown dictionary key %d", sid)
		}
		mixed = append(mixed, e.hash)
	}
	return mixed, nil
}

func boolBit(b bool, shift uint) uint8 {
	if b {
		return 1 << shift
	}
	return 0
}
