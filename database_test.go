package cqdb_test

import (
	"path/filepath"
	"testing"

	cqdb "github.com/kallewoof/cqdb"
	"github.com/kallewoof/cqdb/internal/testhash"
	"github.com/stretchr/testify/require"
)

func newRecord(payload string) *testhash.Record {
	r := testhash.NewRecord().(*testhash.Record)
	r.Payload = payload
	return r
}

func TestOpenFreshDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := cqdb.Open(dir, "cluster", 1024, false)
	require.NoError(t, err)
	require.NoError(t, db.Load())
	require.False(t, db.ReadOnly())
}

func TestBeginSegmentAndStoreFetch(t *testing.T) {
	dir := t.TempDir()
	db, err := cqdb.Open(dir, "cluster", 1024, false)
	require.NoError(t, err)
	require.NoError(t, db.Load())

	require.NoError(t, db.BeginSegment(1))

	rec := newRecord("hello")
	sid, err := db.Store(rec)
	require.NoError(t, err)
	require.EqualValues(t, sid, rec.SID())

	got := testhash.NewRecord().(*testhash.Record)
	require.NoError(t, db.Fetch(got, sid))
	require.Equal(t, "hello", got.Payload)
}

func TestStoreBeforeBeginSegmentFails(t *testing.T) {
	dir := t.TempDir()
	db, err := cqdb.Open(dir, "cluster", 1024, false)
	require.NoError(t, err)
	require.NoError(t, db.Load())

	_, err = db.Store(newRecord("x"))
	require.ErrorIs(t, err, cqdb.ErrNotReady)
}

func TestReferDereferSID(t *testing.T) {
	dir := t.TempDir()
	db, err := cqdb.Open(dir, "cluster", 1024, false)
	require.NoError(t, err)
	require.NoError(t, db.Load())
	require.NoError(t, db.BeginSegment(1))

	rec := newRecord("a")
	sid, err := db.Store(rec)
	require.NoError(t, err)

	backpointerAt := db.Tell()
	require.NoError(t, db.ReferSID(sid))
	require.NoError(t, db.Flush())

	_, err = db.Seek(backpointerAt)
	require.NoError(t, err)
	got, err := db.DereferSID()
	require.NoError(t, err)
	require.EqualValues(t, sid, got)
}

func TestOrderingErrorOnBeginSegmentRegression(t *testing.T) {
	dir := t.TempDir()
	db, err := cqdb.Open(dir, "cluster", 1024, false)
	require.NoError(t, err)
	require.NoError(t, db.Load())

	require.NoError(t, db.BeginSegment(2))
	err = db.BeginSegment(1)
	require.ErrorIs(t, err, cqdb.ErrOrdering)
	require.EqualValues(t, 2, db.Registry().Tip)
}

func TestClusterCrossingOpensNewFile(t *testing.T) {
	dir := t.TempDir()
	db, err := cqdb.Open(dir, "cluster", 1008, false)
	require.NoError(t, err)
	require.NoError(t, db.Load())

	require.NoError(t, db.BeginSegment(1))
	_, err = db.Store(newRecord("first"))
	require.NoError(t, err)

	require.NoError(t, db.BeginSegment(1024))
	_, err = db.Store(newRecord("second"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.FileExists(t, filepath.Join(dir, "cluster00000.cq"))
	require.FileExists(t, filepath.Join(dir, "cluster00001.cq"))
}

func TestGotoSegmentReadsBackFirstObject(t *testing.T) {
	dir := t.TempDir()
	db, err := cqdb.Open(dir, "cluster", 1008, false)
	require.NoError(t, err)
	require.NoError(t, db.Load())

	require.NoError(t, db.BeginSegment(1))
	_, err = db.Store(newRecord("first"))
	require.NoError(t, err)
	require.NoError(t, db.BeginSegment(1024))
	_, err = db.Store(newRecord("second"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	rdb, err := cqdb.Open(dir, "cluster", 1008, true)
	require.NoError(t, err)
	require.NoError(t, rdb.Load())
	require.NoError(t, rdb.GotoSegment(1))

	got := testhash.NewRecord().(*testhash.Record)
	require.NoError(t, rdb.Load(got))
	require.Equal(t, "first", got.Payload)
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	dir := t.TempDir()
	db, err := cqdb.Open(dir, "cluster", 1024, false)
	require.NoError(t, err)
	require.NoError(t, db.Load())
	require.NoError(t, db.Close())

	rdb, err := cqdb.Open(dir, "cluster", 1024, true)
	require.NoError(t, err)
	require.NoError(t, rdb.Load())

	err = rdb.BeginSegment(1)
	require.ErrorIs(t, err, cqdb.ErrReadOnly)
}
