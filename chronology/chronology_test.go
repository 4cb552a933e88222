package chronology_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	cqdb "github.com/kallewoof/cqdb"
	"github.com/kallewoof/cqdb/chronology"
	"github.com/kallewoof/cqdb/internal/testhash"
)

func open(t *testing.T, dir string, clusterSize uint32, readonly bool) *chronology.Chronology {
	t.Helper()
	c, err := chronology.Open(dir, "cluster", clusterSize, readonly, testhash.NewHash20, testhash.NewRecord)
	require.NoError(t, err)
	return c
}

// S1: single no-subject event.
func TestSingleNoSubjectEvent(t *testing.T) {
	dir := t.TempDir()
	c := open(t, dir, 1008, false)
	require.NoError(t, c.BeginSegment(1))
	require.NoError(t, c.PushEvent(1557974775, 0x05, nil, false))
	require.NoError(t, c.Database().Close())

	r := open(t, dir, 1008, true)
	require.NoError(t, r.GotoSegment(1))

	ts, ok, err := r.PeekTime()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1557974775, ts)

	cmd, _, ok, err := r.PopEvent()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0x05, cmd)

	_, _, ok, err = r.PopEvent()
	require.NoError(t, err)
	require.False(t, ok)
}

// S2: two events with monotone time, one byte apart.
func TestTwoEventsMonotoneTime(t *testing.T) {
	dir := t.TempDir()
	c := open(t, dir, 1008, false)
	require.NoError(t, c.BeginSegment(1))
	require.NoError(t, c.PushEvent(1557974775, 0x05, nil, false))
	require.NoError(t, c.PushEvent(1557974776, 0x05, nil, false))
	require.NoError(t, c.Database().Close())

	r := open(t, dir, 1008, true)
	require.NoError(t, r.GotoSegment(1))

	_, _, ok, err := r.PopEvent()
	require.NoError(t, err)
	require.True(t, ok)

	ts, ok, err := r.PeekTime()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1557974776, ts)

	cmd, _, ok, err := r.PopEvent()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0x05, cmd)

	_, _, ok, err = r.PopEvent()
	require.NoError(t, err)
	require.False(t, ok)
}

// S3: unknown->known dedup.
func TestUnknownToKnownDedup(t *testing.T) {
	dir := t.TempDir()
	c := open(t, dir, 1008, false)
	require.NoError(t, c.BeginSegment(1))

	o1 := newRecord(t, "o1")
	require.NoError(t, c.PushEvent(1557974775, 0x00, o1, false))
	s1 := o1.SID()

	o1ref := newRecord(t, "o1")
	require.NoError(t, c.PushEvent(1557974776, 0x02, o1ref, false))
	require.NoError(t, c.Database().Close())

	r := open(t, dir, 1008, true)
	require.NoError(t, r.GotoSegment(1))

	cmd, known, ok, err := r.PopEvent()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0x00, cmd)
	require.False(t, known)
	obj, err := r.PopObject()
	require.NoError(t, err)
	require.EqualValues(t, s1, obj.SID())

	cmd, known, ok, err = r.PopEvent()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0x02, cmd)
	require.True(t, known)
	gotSID, err := r.PopReference()
	require.NoError(t, err)
	require.EqualValues(t, s1, gotSID)
}

// S4: mass reference with 1 known + 1 unknown.
func TestMassReferenceKnownAndUnknown(t *testing.T) {
	dir := t.TempDir()
	c := open(t, dir, 1008, false)
	require.NoError(t, c.BeginSegment(1))

	o1 := newRecord(t, "o1")
	require.NoError(t, c.PushEvent(1557974775, 0x00, o1, false))
	s1 := o1.SID()

	o2 := newRecord(t, "o2")
	require.NoError(t, c.PushEventSet(1557974776, 0x03, []cqdb.Object{o1, o2}))
	require.NoError(t, c.Database().Close())

	r := open(t, dir, 1008, true)
	require.NoError(t, r.GotoSegment(1))

	cmd, _, ok, err := r.PopEvent()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0x00, cmd)
	_, err = r.PopObject()
	require.NoError(t, err)

	cmd, _, ok, err = r.PopEvent()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0x03, cmd)

	known, unknown, err := r.PopReferences()
	require.NoError(t, err)
	require.Equal(t, []chronology.ID{s1}, known)
	require.Len(t, unknown, 1)
	require.Equal(t, o2.Hash().Bytes(), unknown[0].Bytes())
}

// Testable Property 6: chronology idempotence across a close/reopen cycle.
func TestChronologyIdempotenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	c := open(t, dir, 1008, false)
	require.NoError(t, c.BeginSegment(1))
	require.NoError(t, c.PushEvent(1557974775, 0x05, nil, false))
	o1 := newRecord(t, "o1")
	require.NoError(t, c.PushEvent(1557974776, 0x00, o1, false))
	require.NoError(t, c.Database().Close())

	r := open(t, dir, 1008, true)
	require.NoError(t, r.GotoSegment(1))

	cmd, _, ok, err := r.PopEvent()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0x05, cmd)

	cmd, known, ok, err := r.PopEvent()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0x00, cmd)
	require.False(t, known)
	obj, err := r.PopObject()
	require.NoError(t, err)
	require.EqualValues(t, o1.SID(), obj.SID())

	_, _, ok, err = r.PopEvent()
	require.NoError(t, err)
	require.False(t, ok)
}

// Cluster transitions clear the in-memory dictionary/references and reset
// current_time (spec.md §4.6).
func TestClusterCrossingClearsDictionaryAndTime(t *testing.T) {
	dir := t.TempDir()
	c := open(t, dir, 1008, false)
	require.NoError(t, c.BeginSegment(1))
	o1 := newRecord(t, "o1")
	require.NoError(t, c.PushEvent(1557974775, 0x00, o1, false))
	require.EqualValues(t, 1557974775, c.CurrentTime())

	require.NoError(t, c.BeginSegment(1024))
	require.EqualValues(t, 0, c.CurrentTime())

	o1dup := newRecord(t, "o1")
	require.NoError(t, c.PushEvent(100, 0x02, o1dup, false))
	require.NoError(t, c.Database().Close())

	r := open(t, dir, 1008, true)
	require.NoError(t, r.GotoSegment(1024))
	cmd, known, ok, err := r.PopEvent()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0x02, cmd)
	require.False(t, known, "dictionary must have been cleared on cluster crossing")
}

// Testable Property 9: a reflection handle compares equal after every flush.
func TestReflectionTracksWriter(t *testing.T) {
	dir := t.TempDir()
	c := open(t, dir, 1008, false)
	require.NoError(t, c.BeginSegment(1))

	refDir := dir
	secondary := open(t, refDir, 1008, true)
	require.NoError(t, secondary.GotoSegment(1))
	require.NoError(t, c.AttachReflection(secondary, func(r *chronology.Chronology, cmd uint8, known bool) error {
		if !known {
			if cmd == 0x00 {
				_, err := r.PopObject()
				return err
			}
		}
		return nil
	}))

	o1 := newRecord(t, "o1")
	require.NoError(t, c.PushEvent(1557974775, 0x00, o1, false))
	require.NoError(t, c.BeginSegment(2))
}

// newRecord builds a Record whose hash is derived from payload's last byte,
// so two records built from the same payload string collide (the "same
// object" referenced twice) while payloads ending in different bytes, such
// as "o1" and "o2", get distinct hashes.
func newRecord(t *testing.T, payload string) *testhash.Record {
	t.Helper()
	r := testhash.NewRecord().(*testhash.Record)
	r.Payload = payload
	for i := range r.HashVal {
		r.HashVal[i] = payload[len(payload)-1] + byte(i)%7
	}
	return r
}
