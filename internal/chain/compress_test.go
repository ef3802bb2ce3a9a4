package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condtrace/condtrace/internal/event"
)

func cond(hash, kind string, val bool) event.Cond {
	return event.Cond{CondHash: hash, CondKind: kind, CondNorm: "n_" + hash, Val: val}
}

func steps(conds []event.Cond) []Step {
	return Steps(conds)
}

func TestCompressDropsLoopExit(t *testing.T) {
	// Loop entered once: keep the entry marker and the body, drop the exit.
	in := []event.Cond{
		cond("h1", "LOOP", true),
		cond("h2", "IF", true),
		cond("h1", "LOOP", false),
	}
	got := Compress(in)
	require.Equal(t, []Step{
		{Hash: "h1", Value: true},
		{Hash: "h2", Value: true},
	}, steps(got))
}

func TestCompressKeepsNeverEnteredLoop(t *testing.T) {
	in := []event.Cond{
		cond("h0", "IF", true),
		cond("h1", "LOOP", false),
		cond("h2", "IF", false),
	}
	got := Compress(in)
	require.Equal(t, []Step{
		{Hash: "h0", Value: true},
		{Hash: "h1", Value: false},
		{Hash: "h2", Value: false},
	}, steps(got))
}

func TestCompressDiscardsLaterIterations(t *testing.T) {
	// Three iterations with diverging bodies: only the first survives.
	in := []event.Cond{
		cond("h1", "LOOP", true),
		cond("h2", "IF", true),
		cond("h1", "LOOP", true),
		cond("h2", "IF", false),
		cond("h1", "LOOP", true),
		cond("h2", "IF", true),
		cond("h1", "LOOP", false),
	}
	got := Compress(in)
	require.Equal(t, []Step{
		{Hash: "h1", Value: true},
		{Hash: "h2", Value: true},
	}, steps(got))
}

func TestCompressNestedLoops(t *testing.T) {
	in := []event.Cond{
		cond("outer", "LOOP", true),
		cond("inner", "LOOP", true),
		cond("br", "IF", true),
		cond("inner", "LOOP", true),
		cond("br", "IF", false),
		cond("inner", "LOOP", false),
		cond("outer", "LOOP", true),
		cond("inner", "LOOP", false),
		cond("outer", "LOOP", false),
	}
	got := Compress(in)
	require.Equal(t, []Step{
		{Hash: "outer", Value: true},
		{Hash: "inner", Value: true},
		{Hash: "br", Value: true},
	}, steps(got))
}

func TestCompressLeavesNonLoopSequencesAlone(t *testing.T) {
	in := []event.Cond{
		cond("a", "IF", true),
		cond("b", "CASE", false),
		cond("a", "IF", true),
		cond("c", "TRY", true),
	}
	got := Compress(in)
	assert.Equal(t, steps(in), steps(got))
}

func TestCompressIdempotent(t *testing.T) {
	sequences := map[string][]event.Cond{
		"empty":   {},
		"single":  {cond("h1", "LOOP", true)},
		"example": {cond("h1", "LOOP", true), cond("h2", "IF", true), cond("h1", "LOOP", false)},
		"nested": {
			cond("outer", "LOOP", true),
			cond("x", "IF", false),
			cond("inner", "LOOP", true),
			cond("y", "IF", true),
			cond("inner", "LOOP", false),
			cond("outer", "LOOP", true),
			cond("x", "IF", true),
			cond("outer", "LOOP", false),
		},
		"not-entered": {cond("h1", "LOOP", false), cond("h2", "IF", true)},
		"plain":       {cond("a", "IF", true), cond("b", "CASE", false), cond("c", "DEFAULT", true)},
	}
	for name, seq := range sequences {
		t.Run(name, func(t *testing.T) {
			once := Compress(seq)
			twice := Compress(once)
			assert.Equal(t, steps(once), steps(twice))
		})
	}
}

func TestCompressDoesNotMutateInput(t *testing.T) {
	in := []event.Cond{
		cond("h1", "LOOP", true),
		cond("h2", "IF", true),
		cond("h1", "LOOP", false),
	}
	before := steps(in)
	Compress(in)
	assert.Equal(t, before, steps(in))
}

func TestStepsUseEffectiveValue(t *testing.T) {
	flipped := event.Cond{CondHash: "h1", CondKind: "IF", Val: true, NormFlip: true}
	plain := event.Cond{CondHash: "h2", CondKind: "IF", Val: true}
	got := Steps([]event.Cond{flipped, plain})
	require.Equal(t, []Step{
		{Hash: "h1", Value: false},
		{Hash: "h2", Value: true},
	}, got)
}
