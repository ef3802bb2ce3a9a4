// Package match compares compressed runtime condition chains against the
// statically enumerated chains of the same function, exactly first and
// approximately on demand.
package match

import (
	"github.com/condtrace/condtrace/internal/chain"
	"github.com/condtrace/condtrace/internal/meta"
)

// #region exact

// Exact is one bit-exact static chain match.
type Exact struct {
	Source  string           `json:"source"`
	ChainID int              `json:"chain_id"`
	Steps   []meta.ChainStep `json:"steps"`
}

// FindExact reports every static chain under funcHash whose step sequence
// equals the compressed runtime sequence in length, order, and value.
// An empty funcHash makes the invocation ineligible and yields nothing.
func FindExact(funcHash string, steps []chain.Step, idx *meta.Index) []Exact {
	if funcHash == "" || idx == nil {
		return nil
	}
	var out []Exact
	for _, ch := range idx.ChainsByFunc[funcHash] {
		if equalSteps(steps, ch.Steps) {
			out = append(out, Exact{Source: ch.Source, ChainID: ch.ChainID, Steps: ch.Steps})
		}
	}
	return out
}

func equalSteps(run []chain.Step, static []meta.ChainStep) bool {
	if len(run) != len(static) {
		return false
	}
	for i := range run {
		if run[i].Hash != static[i].Hash || run[i].Value != static[i].Value {
			return false
		}
	}
	return true
}

// #endregion exact
