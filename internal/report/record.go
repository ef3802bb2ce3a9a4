// Package report assembles per-assertion triples and drives the batch
// pipeline from decoded events to emitted JSONL records.
package report

import (
	"github.com/condtrace/condtrace/internal/event"
	"github.com/condtrace/condtrace/internal/match"
	"github.com/condtrace/condtrace/internal/session"
)

// #region record

// TestBlock identifies the owning test of a triple.
type TestBlock struct {
	Suite string `json:"suite"`
	Name  string `json:"name"`
	Full  string `json:"full"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

// AssertionBlock identifies the assertion a triple describes.
type AssertionBlock struct {
	AssertID uint64 `json:"assert_id"`
	Macro    string `json:"macro"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Raw      string `json:"raw,omitempty"`
}

// Call is the slim projection of one invocation in a prefix or oracle list.
type Call struct {
	InvocationID uint64 `json:"invocation_id"`
	CallFile     string `json:"call_file"`
	CallLine     int    `json:"call_line"`
	CallExpr     string `json:"call_expr"`
	Status       string `json:"status,omitempty"`
	DurationMS   uint64 `json:"duration_ms,omitempty"`
}

// CondEntry is one displayed element of an invocation's condition chain.
// Val and Flip stay 0/1 integers to match the capture wire format.
type CondEntry struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	CondNorm string `json:"cond_norm"`
	CondHash string `json:"cond_hash"`
	CondKind string `json:"cond_kind"`
	Val      int    `json:"val"`
	Flip     int    `json:"flip"`
}

// InvocationInfo carries per-invocation matching results.
type InvocationInfo struct {
	FuncHash      string         `json:"func_hash,omitempty"`
	Signature     string         `json:"signature,omitempty"`
	MatchedStatic []match.Exact  `json:"matched_static,omitempty"`
	ApproxStatic  []match.Approx `json:"approx_static,omitempty"`
}

// Record is one emitted triple: everything known about one assertion window.
type Record struct {
	Test        TestBlock                 `json:"test"`
	Assertion   AssertionBlock            `json:"assertion"`
	Prefix      []Call                    `json:"prefix"`
	OracleCalls []Call                    `json:"oracle_calls"`
	CondChains  map[string][]CondEntry    `json:"cond_chains"`
	Invocations map[string]InvocationInfo `json:"invocations"`
}

// #endregion record

// #region projection

func slimCall(inv *session.Invocation) Call {
	return Call{
		InvocationID: inv.ID,
		CallFile:     inv.CallFile,
		CallLine:     inv.CallLine,
		CallExpr:     inv.CallExpr,
		Status:       inv.Status,
		DurationMS:   inv.DurationMS,
	}
}

func slimCond(ev event.Cond) CondEntry {
	return CondEntry{
		File:     ev.File,
		Line:     ev.Line,
		CondNorm: ev.CondNorm,
		CondHash: ev.CondHash,
		CondKind: ev.CondKind,
		Val:      boolToInt(ev.Val),
		Flip:     boolToInt(ev.NormFlip),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion projection
