package chain

import "github.com/condtrace/condtrace/internal/event"

// #region compress

// Compress collapses repeated loop iterations in a condition sequence into
// one canonical representative per loop header, so runtime chains line up
// with the loop-free static enumerations.
//
// For a loop header whose first recorded raw value is true, the first true
// marker and the first iteration's body (recursively compressed) are kept;
// every later iteration and the terminal raw-false exit marker are dropped.
// A header whose first raw value is false is kept unchanged with no body.
// Raw values drive entry/exit detection here; effective values matter only
// to the matchers. The transform is idempotent.
//
// When nested loops share one condition hash, the next occurrence of that
// hash delimits the first iteration's body, folding the inner loop into the
// outer loop's iteration structure.
func Compress(conds []event.Cond) []event.Cond {
	n := len(conds)
	if n <= 1 {
		out := make([]event.Cond, n)
		copy(out, conds)
		return out
	}
	out := make([]event.Cond, 0, n)
	i := 0
	for i < n {
		ev := conds[i]
		if !ev.IsLoop() {
			out = append(out, ev)
			i++
			continue
		}
		if !ev.Val {
			// Never entered: the single false marker stands.
			out = append(out, ev)
			i++
			continue
		}
		out = append(out, ev)
		loopHash := ev.CondHash
		// The next marker for the same header delimits the first iteration.
		j := i + 1
		for j < n {
			ej := conds[j]
			if ej.IsLoop() && ej.CondHash == loopHash {
				break
			}
			j++
		}
		if j > i+1 {
			out = append(out, Compress(conds[i+1:j])...)
		}
		// Resume after the last raw-false exit marker for this header,
		// dropping the marker itself and all intermediate iterations.
		exit := -1
		for p := j; p < n; p++ {
			ep := conds[p]
			if ep.IsLoop() && ep.CondHash == loopHash && !ep.Val {
				exit = p
			}
		}
		if exit >= 0 {
			i = exit + 1
		} else {
			i = j
		}
	}
	return out
}

// #endregion compress

// #region steps

// Step is one (condition hash, effective value) pair of a runtime chain in
// the canonical form the matchers compare against static chains.
type Step struct {
	Hash  string
	Value bool
}

// Steps projects a compressed sequence onto its matching form.
func Steps(conds []event.Cond) []Step {
	steps := make([]Step, len(conds))
	for i, ev := range conds {
		steps[i] = Step{Hash: ev.CondHash, Value: ev.EffectiveVal()}
	}
	return steps
}

// #endregion steps
