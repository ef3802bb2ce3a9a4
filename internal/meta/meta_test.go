package meta

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMeta(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const condsDoc = `{
  "analysis_version": "v1",
  "conditions": [
    {"id": 0, "file": "calc.cc", "line": 4, "cond_norm": "a < b", "kind": "IF", "hash": "c1"},
    {"id": 1, "file": "calc.cc", "line": 9, "cond_norm": "i < n", "kind": "LOOP", "hash": "c2"}
  ]
}`

const chainsDocV1 = `{
  "analysis_version": "v1",
  "chains": [
    {"func_hash": "f1", "sequence": [{"cond_id": 0, "value": true}, {"cond_id": 1, "value": false}]},
    {"func_hash": "f1", "sequence": [{"cond_id": 0, "value": false}]}
  ]
}`

const funcsDocV1 = `{
  "analysis_version": "v1",
  "functions": [
    {"hash": "f1", "name": "add", "signature": "int add(int, int)", "file": "calc.cc"}
  ]
}`

func TestLoadBuildsIndexes(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, "conditions.meta.json", condsDoc)
	writeMeta(t, dir, "chains.meta.json", chainsDocV1)
	writeMeta(t, dir, "functions.meta.json", funcsDocV1)

	idx := Load(dir, testLogger(nil))
	require.NotNil(t, idx)
	assert.False(t, idx.Empty())

	require.Contains(t, idx.ConditionsByHash, "c1")
	assert.Equal(t, "IF", idx.ConditionsByHash["c1"].Kind)
	require.Contains(t, idx.ConditionsByID, 1)
	assert.Equal(t, "c2", idx.ConditionsByID[1].Hash)

	chains := idx.ChainsByFunc["f1"]
	require.Len(t, chains, 2)
	assert.Equal(t, 0, chains[0].ChainID)
	assert.Equal(t, 1, chains[1].ChainID)
	require.Len(t, chains[0].Steps, 2)
	assert.Equal(t, ChainStep{Hash: "c1", Value: true}, chains[0].Steps[0])
	assert.Equal(t, ChainStep{Hash: "c2", Value: false}, chains[0].Steps[1])

	sig, ok := idx.Signature("f1")
	require.True(t, ok)
	assert.Equal(t, "int add(int, int)", sig)
	_, ok = idx.Signature("missing")
	assert.False(t, ok)
}

func TestLoadWarnsOnVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, "conditions.meta.json", condsDoc)
	writeMeta(t, dir, "chains.meta.json", chainsDocV1)
	writeMeta(t, dir, "functions.meta.json",
		`{"analysis_version": "v2", "functions": []}`)

	var buf bytes.Buffer
	Load(dir, testLogger(&buf))
	assert.Contains(t, buf.String(), "analysis_version mismatch")
}

func TestLoadMissingDocumentsDegrades(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, "conditions.meta.json", condsDoc)

	var buf bytes.Buffer
	idx := Load(dir, testLogger(&buf))
	require.NotNil(t, idx)
	assert.True(t, idx.Empty())
	assert.NotEmpty(t, idx.ConditionsByHash)
	// Incomplete meta is a warning, never a failure.
	assert.Contains(t, buf.String(), "chains meta unavailable")
	assert.Contains(t, buf.String(), "functions meta unavailable")
}

func TestLoadSkipsUnresolvableChainSteps(t *testing.T) {
	dir := t.TempDir()
	writeMeta(t, dir, "conditions.meta.json", condsDoc)
	writeMeta(t, dir, "chains.meta.json", `{
	  "analysis_version": "v1",
	  "chains": [
	    {"func_hash": "f9", "sequence": [{"cond_id": 42, "value": true}, {"cond_id": 0, "value": true}]}
	  ]
	}`)

	idx := Load(dir, testLogger(nil))
	chains := idx.ChainsByFunc["f9"]
	require.Len(t, chains, 1)
	// The unresolvable step is dropped, the resolvable one kept.
	require.Len(t, chains[0].Steps, 1)
	assert.Equal(t, "c1", chains[0].Steps[0].Hash)
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	return slog.New(slog.NewTextHandler(buf, nil))
}
