// Package session partitions the event stream into per-test sessions and
// per-assertion windows with prefix/oracle invocation sets.
package session

import (
	"strings"

	"github.com/condtrace/condtrace/internal/chain"
	"github.com/condtrace/condtrace/internal/event"
)

// #region types

// TestInfo identifies one test, from its test_start record.
type TestInfo struct {
	TestID uint64
	Suite  string
	Name   string
	Full   string
	File   string
	Line   int
	Status string
}

// Invocation is one tracked call with everything the report needs about it.
type Invocation struct {
	ID         uint64
	Index      uint64
	SegmentID  uint64
	InOracle   *bool
	CallFile   string
	CallLine   int
	CallExpr   string
	TargetFunc string
	Status     string
	DurationMS uint64
}

// Window is the span between the previous assertion boundary and the given
// assertion, owning the invocations it classified. Every invocation in a
// window is exactly one of prefix or oracle.
type Window struct {
	Assertion event.Assertion
	Prefix    []*Invocation
	Oracle    []*Invocation
	// Conds holds the arrival-order condition events of each invocation the
	// window claims.
	Conds map[uint64][]event.Cond
}

// Session is one test's complete partition.
type Session struct {
	Info    TestInfo
	Windows []Window
	// Unattributed counts cond events that named this test but no invocation.
	Unattributed int
}

// #endregion types

// #region split

// Split groups events by test identity in first-seen order. Events carrying
// no test identity are dropped; the count of dropped events is returned.
func Split(events []event.Event) ([][]event.Event, int) {
	var order []uint64
	byTest := map[uint64][]event.Event{}
	dropped := 0
	for _, ev := range events {
		id, ok := ev.Test()
		if !ok {
			dropped++
			continue
		}
		if _, seen := byTest[id]; !seen {
			order = append(order, id)
		}
		byTest[id] = append(byTest[id], ev)
	}
	out := make([][]event.Event, len(order))
	for i, id := range order {
		out[i] = byTest[id]
	}
	return out, dropped
}

// #endregion split

// #region partition

type partitionState struct {
	info       TestInfo
	bufPrefix  []*Invocation
	currPrefix []*Invocation
	openAssert *event.Assertion
	inOracle   bool // an assertion is open and assertion_end has not arrived
	oracle     []*Invocation
	conds      []event.Cond
	invByID    map[uint64]*Invocation
	windows    []Window
}

// Partition scans one test's events in arrival order and produces its
// assertion windows. An assertion window closes when the next assertion
// arrives, at test_end, or at stream end; invocations never claimed by an
// assertion are dropped.
func Partition(events []event.Event) Session {
	st := &partitionState{
		invByID: map[uint64]*Invocation{},
	}

	for _, ev := range events {
		switch e := ev.(type) {
		case event.TestStart:
			st.reset()
			st.info = TestInfo{
				TestID: e.TestID,
				Suite:  e.Suite,
				Name:   e.Name,
				Full:   e.Full,
				File:   e.File,
				Line:   e.Line,
			}

		case event.InvocationStart:
			inv := &Invocation{
				ID:         e.InvocationID,
				Index:      e.Index,
				SegmentID:  e.SegmentID,
				InOracle:   e.InOracle,
				CallFile:   e.CallFile,
				CallLine:   e.CallLine,
				CallExpr:   e.CallExpr,
				TargetFunc: e.TargetFunc,
			}
			st.invByID[inv.ID] = inv
			if st.openAssert != nil && st.isOracle(inv) {
				st.oracle = append(st.oracle, inv)
			} else {
				// Before the first assertion, or outside the oracle region:
				// part of the next assertion's prefix.
				st.bufPrefix = append(st.bufPrefix, inv)
			}

		case event.InvocationEnd:
			if inv, ok := st.invByID[e.InvocationID]; ok {
				inv.Status = e.Status
				inv.DurationMS = e.DurationMS
			}

		case event.Cond:
			st.conds = append(st.conds, e)

		case event.Assertion:
			st.closeWindow()
			a := e
			st.openAssert = &a
			st.inOracle = true
			st.currPrefix = st.bufPrefix
			st.bufPrefix = nil
			st.oracle = nil

		case event.AssertionEnd:
			st.inOracle = false

		case event.TestEnd:
			st.info.Status = e.Status
			st.closeWindow()
			st.openAssert = nil
			st.currPrefix = nil
			st.bufPrefix = nil
			st.oracle = nil
		}
	}

	// Flush a window left open by a truncated stream.
	st.closeWindow()

	// Condition events attach to invocations only at the end: an invocation's
	// conditions all arrive before the window claiming it closes, so the
	// complete grouping fills every window.
	byInv, unattributed := chain.Aggregate(st.conds)
	for i := range st.windows {
		w := &st.windows[i]
		w.Conds = map[uint64][]event.Cond{}
		for _, inv := range w.Prefix {
			w.Conds[inv.ID] = byInv[inv.ID]
		}
		for _, inv := range w.Oracle {
			w.Conds[inv.ID] = byInv[inv.ID]
		}
	}

	return Session{Info: st.info, Windows: st.windows, Unattributed: unattributed}
}

func (st *partitionState) reset() {
	st.bufPrefix = nil
	st.currPrefix = nil
	st.openAssert = nil
	st.inOracle = false
	st.oracle = nil
	st.conds = nil
	st.invByID = map[uint64]*Invocation{}
}

// isOracle classifies an invocation seen while an assertion is open. The
// explicit in-oracle flag wins when present; otherwise the call site must
// sit on the assertion's own file/line while its oracle region is open.
func (st *partitionState) isOracle(inv *Invocation) bool {
	if inv.InOracle != nil {
		return *inv.InOracle
	}
	if !st.inOracle {
		return false
	}
	return inv.CallFile == st.openAssert.File && inv.CallLine == st.openAssert.Line
}

// closeWindow snapshots the open assertion with its claimed invocations.
// Condition maps are filled once the whole stream is grouped.
func (st *partitionState) closeWindow() {
	if st.openAssert == nil {
		return
	}
	st.windows = append(st.windows, Window{
		Assertion: *st.openAssert,
		Prefix:    st.currPrefix,
		Oracle:    st.oracle,
	})
	st.openAssert = nil
	st.inOracle = false
}

// #endregion partition

// #region filter

// Matches applies substring filters on suite and test name. An empty filter
// always matches; the name filter accepts either the short or full name.
func (info TestInfo) Matches(suiteFilter, nameFilter string) bool {
	if suiteFilter != "" && !strings.Contains(info.Suite, suiteFilter) {
		return false
	}
	if nameFilter != "" && !strings.Contains(info.Name, nameFilter) && !strings.Contains(info.Full, nameFilter) {
		return false
	}
	return true
}

// #endregion filter
