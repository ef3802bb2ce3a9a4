package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condtrace/condtrace/internal/chain"
	"github.com/condtrace/condtrace/internal/meta"
)

func testIndex() *meta.Index {
	return &meta.Index{
		ConditionsByHash: map[string]meta.Condition{
			"h1": {ID: 0, Hash: "h1", Norm: "i < n", Kind: "LOOP"},
			"h2": {ID: 1, Hash: "h2", Norm: "a == b", Kind: "IF"},
		},
		ChainsByFunc: map[string][]meta.Chain{
			"f1": {
				{FuncHash: "f1", ChainID: 0, Source: "chains.meta.json", Steps: []meta.ChainStep{
					{Hash: "h1", Value: true}, {Hash: "h2", Value: true},
				}},
				{FuncHash: "f1", ChainID: 1, Source: "chains.meta.json", Steps: []meta.ChainStep{
					{Hash: "h1", Value: true}, {Hash: "h2", Value: false},
				}},
			},
		},
		FunctionsByHash: map[string]meta.Function{
			"f1": {Hash: "f1", Signature: "bool check(int)"},
		},
	}
}

func TestFindExactMatchesCompressedChain(t *testing.T) {
	idx := testIndex()
	// The compressed form of LOOP(h1,true) IF(h2,true) LOOP(h1,false).
	steps := []chain.Step{{Hash: "h1", Value: true}, {Hash: "h2", Value: true}}

	got := FindExact("f1", steps, idx)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].ChainID)
}

func TestFindExactRejectsValueMismatch(t *testing.T) {
	idx := testIndex()
	steps := []chain.Step{{Hash: "h1", Value: true}, {Hash: "h2", Value: true}}

	for _, ch := range FindExact("f1", steps, idx) {
		assert.NotEqual(t, 1, ch.ChainID, "chain with flipped h2 must not match")
	}
}

func TestFindExactRejectsLengthMismatch(t *testing.T) {
	idx := testIndex()
	assert.Empty(t, FindExact("f1", []chain.Step{{Hash: "h1", Value: true}}, idx))
	assert.Empty(t, FindExact("f1", []chain.Step{
		{Hash: "h1", Value: true}, {Hash: "h2", Value: true}, {Hash: "h2", Value: true},
	}, idx))
}

func TestFindExactReportsAllEqualChains(t *testing.T) {
	idx := testIndex()
	dup := idx.ChainsByFunc["f1"][0]
	dup.ChainID = 2
	idx.ChainsByFunc["f1"] = append(idx.ChainsByFunc["f1"], dup)

	got := FindExact("f1", []chain.Step{{Hash: "h1", Value: true}, {Hash: "h2", Value: true}}, idx)
	require.Len(t, got, 2)
}

func TestFindExactIneligibleWithoutFuncHash(t *testing.T) {
	idx := testIndex()
	assert.Nil(t, FindExact("", []chain.Step{{Hash: "h1", Value: true}}, idx))
	assert.Nil(t, FindExact("unknown", []chain.Step{{Hash: "h1", Value: true}}, idx))
	assert.Nil(t, FindExact("f1", nil, nil))
}
