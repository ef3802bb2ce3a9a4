// Package chain builds per-invocation condition chains and applies the
// structural loop compression that aligns runtime sequences with the
// statically enumerated decision paths.
package chain

import "github.com/condtrace/condtrace/internal/event"

// #region aggregate

// Aggregate groups condition events by owning invocation, preserving
// arrival order. Events without an owning invocation are unattributed and
// are returned via the second value instead of joining any chain.
func Aggregate(conds []event.Cond) (map[uint64][]event.Cond, int) {
	byInv := map[uint64][]event.Cond{}
	unattributed := 0
	for _, ev := range conds {
		if ev.InvocationID == nil {
			unattributed++
			continue
		}
		byInv[*ev.InvocationID] = append(byInv[*ev.InvocationID], ev)
	}
	return byInv, unattributed
}

// #endregion aggregate

// #region dedup

// Dedup retains the first occurrence of each distinct condition hash. The
// result is for display only and must never feed the matchers.
func Dedup(conds []event.Cond) []event.Cond {
	seen := map[string]bool{}
	out := make([]event.Cond, 0, len(conds))
	for _, ev := range conds {
		if seen[ev.CondHash] {
			continue
		}
		seen[ev.CondHash] = true
		out = append(out, ev)
	}
	return out
}

// #endregion dedup

// #region func-hash

// FuncHash resolves the function hash owning a chain: the first non-empty
// func field on its condition events, falling back to the invocation's
// recorded target function. An empty result makes the invocation
// ineligible for matching.
func FuncHash(conds []event.Cond, targetFunc string) string {
	for _, ev := range conds {
		if ev.Func != "" {
			return ev.Func
		}
	}
	return targetFunc
}

// #endregion func-hash
