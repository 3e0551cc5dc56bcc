package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRunIDIsDeterministicAndSixteenHex(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	a := MakeRunID("0xAAA", "claude-3", ts)
	b := MakeRunID("0xAAA", "claude-3", ts)
	assert.Equal(t, a, b, "expected deterministic runId")
	assert.Len(t, a, 16)

	c := MakeRunID("0xBBB", "claude-3", ts)
	assert.NotEqual(t, a, c, "expected different targets to produce different runIds")
}

func TestAppendAndListRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	now := time.Now()
	rec := RunRecord{
		RunID:     "abc123",
		Target:    "0xAAA",
		ChainID:   1,
		ModelName: "claude-3",
		OK:        true,
		Turns:     2,
		Timestamp: now,
	}
	require.NoError(t, s.Append(rec))

	got := s.List(Filter{})
	require.Len(t, got, 1)
	assert.Equal(t, "abc123", got[0].RunID)

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Len(t, reopened.All(), 1, "expected the reopened store to load the persisted record")
}

func TestListFiltersByTargetAndOK(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.Append(RunRecord{RunID: "r1", Target: "0xAAA", OK: true, Timestamp: time.Now()}))
	require.NoError(t, s.Append(RunRecord{RunID: "r2", Target: "0xBBB", OK: false, Timestamp: time.Now()}))

	onlyOK := s.List(Filter{OKOnly: true})
	require.Len(t, onlyOK, 1)
	assert.Equal(t, "r1", onlyOK[0].RunID)

	byTarget := s.List(Filter{Target: "0xBBB"})
	require.Len(t, byTarget, 1)
	assert.Equal(t, "r2", byTarget[0].RunID)
}

func TestExportThenImportIsIdempotent(t *testing.T) {
	srcDir := t.TempDir()
	src, err := Open(srcDir)
	require.NoError(t, err)
	require.NoError(t, src.Append(RunRecord{RunID: "r1", Target: "0xAAA", Timestamp: time.Now()}))
	require.NoError(t, src.Append(RunRecord{RunID: "r2", Target: "0xBBB", Timestamp: time.Now()}))

	exportPath := filepath.Join(t.TempDir(), "export.jsonl")
	require.NoError(t, src.Export(exportPath, Filter{}))

	dstDir := t.TempDir()
	dst, err := Open(dstDir)
	require.NoError(t, err)
	n, err := dst.Import(exportPath)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n2, err := dst.Import(exportPath)
	require.NoError(t, err)
	assert.Zero(t, n2, "expected re-import to add nothing")
	assert.Len(t, dst.All(), 2, "expected store to still hold exactly 2 records")
}
