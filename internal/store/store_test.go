package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condtrace/condtrace/internal/report"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "report.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRecord(suite, name string, assertID uint64) report.Record {
	return report.Record{
		Test: report.TestBlock{Suite: suite, Name: name, Full: suite + "." + name},
		Assertion: report.AssertionBlock{
			AssertID: assertID, Macro: "EXPECT_EQ", File: "calc_test.cc", Line: 12,
		},
		Prefix: []report.Call{{InvocationID: 1, CallFile: "calc_test.cc", CallLine: 10}},
		OracleCalls: []report.Call{
			{InvocationID: 2, CallFile: "calc_test.cc", CallLine: 12, CallExpr: "Add(1,2)"},
		},
		CondChains: map[string][]report.CondEntry{
			"2": {{CondHash: "h1", CondKind: "IF", CondNorm: "a < b", Val: 1}},
		},
		Invocations: map[string]report.InvocationInfo{
			"2": {FuncHash: "f1", Signature: "int add(int, int)"},
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	st := openTestStore(t)

	runID, err := st.BeginRun("run.ndjson", "meta/")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, st.InsertTriple(runID, sampleRecord("Calc", "Add", 0)))
	require.NoError(t, st.InsertTriple(runID, sampleRecord("Calc", "Mul", 1)))

	triples, err := st.ListTriples(runID, "", "")
	require.NoError(t, err)
	require.Len(t, triples, 2)
	assert.Equal(t, "Add", triples[0].TestName)
	assert.Equal(t, uint64(1), triples[1].AssertID)

	rec := triples[0].Record
	assert.Equal(t, "Calc.Add", rec.Test.Full)
	require.Len(t, rec.OracleCalls, 1)
	assert.Equal(t, "Add(1,2)", rec.OracleCalls[0].CallExpr)
	assert.Equal(t, "f1", rec.Invocations["2"].FuncHash)
}

func TestStoreFiltersTriples(t *testing.T) {
	st := openTestStore(t)

	runID, err := st.BeginRun("run.ndjson", "")
	require.NoError(t, err)
	require.NoError(t, st.InsertTriple(runID, sampleRecord("Calc", "Add", 0)))
	require.NoError(t, st.InsertTriple(runID, sampleRecord("Parser", "Tokens", 0)))

	out, err := st.ListTriples(runID, "Calc", "")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Calc", out[0].Suite)

	out, err = st.ListTriples(runID, "", "Tok")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Tokens", out[0].TestName)
}

func TestStoreListRunsNewestFirst(t *testing.T) {
	st := openTestStore(t)

	first, err := st.BeginRun("a.ndjson", "")
	require.NoError(t, err)
	second, err := st.BeginRun("b.ndjson", "")
	require.NoError(t, err)

	runs, err := st.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].RunID, runs[1].RunID}
	assert.Contains(t, ids, first)
	assert.Contains(t, ids, second)
}
