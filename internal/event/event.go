package event

// #region kinds

// Kind tags a runtime log record.
type Kind string

const (
	KindTestStart       Kind = "test_start"
	KindTestEnd         Kind = "test_end"
	KindAssertion       Kind = "assertion"
	KindAssertionBegin  Kind = "assertion_begin"
	KindAssertionEnd    Kind = "assertion_end"
	KindInvocationStart Kind = "invocation_start"
	KindInvocationEnd   Kind = "invocation_end"
	KindCond            Kind = "cond"
)

// #endregion kinds

// #region interface

// Event is one parsed runtime log record. Events are immutable once decoded.
type Event interface {
	EventKind() Kind
	// Test returns the owning test identity and whether the record carried one.
	// A zero test id is valid; absence is signaled by ok=false, never by zero.
	Test() (id uint64, ok bool)
}

// #endregion interface

// #region variants

// TestStart opens a test session.
type TestStart struct {
	TestID uint64
	Suite  string
	Name   string
	Full   string
	File   string
	Line   int
	Hash   string
}

// TestEnd closes a test session.
type TestEnd struct {
	TestID uint64
	Status string
}

// Assertion marks an assertion boundary. Both "assertion" and
// "assertion_begin" records decode to this variant.
type Assertion struct {
	TestID   uint64
	AssertID uint64
	Macro    string
	File     string
	Line     int
	Raw      string
}

// AssertionEnd closes the oracle region of the current assertion. Only
// emitted by capture tooling that wraps assertion arguments.
type AssertionEnd struct {
	TestID   uint64
	AssertID *uint64
}

// InvocationStart records a tracked call entering its target.
type InvocationStart struct {
	TestID       uint64
	InvocationID uint64
	Index        uint64
	SegmentID    uint64
	// InOracle is nil when the record did not carry the flag; classification
	// then falls back to the call-site heuristic.
	InOracle   *bool
	CallFile   string
	CallLine   int
	CallExpr   string
	TargetFunc string
}

// InvocationEnd records a tracked call returning.
type InvocationEnd struct {
	TestID       uint64
	InvocationID uint64
	Status       string
	DurationMS   uint64
}

// Cond records one boolean decision taken inside an invocation.
type Cond struct {
	// TestID is nil for records captured outside any test.
	TestID *uint64
	// InvocationID is nil for unattributed decisions; those never join a chain.
	InvocationID *uint64
	Func         string
	CondHash     string
	File         string
	Line         int
	CondNorm     string
	CondKind     string
	Val          bool
	NormFlip     bool
}

// #endregion variants

// #region interface-impl

func (TestStart) EventKind() Kind       { return KindTestStart }
func (TestEnd) EventKind() Kind         { return KindTestEnd }
func (Assertion) EventKind() Kind       { return KindAssertion }
func (AssertionEnd) EventKind() Kind    { return KindAssertionEnd }
func (InvocationStart) EventKind() Kind { return KindInvocationStart }
func (InvocationEnd) EventKind() Kind   { return KindInvocationEnd }
func (Cond) EventKind() Kind            { return KindCond }

func (e TestStart) Test() (uint64, bool)       { return e.TestID, true }
func (e TestEnd) Test() (uint64, bool)         { return e.TestID, true }
func (e Assertion) Test() (uint64, bool)       { return e.TestID, true }
func (e AssertionEnd) Test() (uint64, bool)    { return e.TestID, true }
func (e InvocationStart) Test() (uint64, bool) { return e.TestID, true }
func (e InvocationEnd) Test() (uint64, bool)   { return e.TestID, true }

func (e Cond) Test() (uint64, bool) {
	if e.TestID == nil {
		return 0, false
	}
	return *e.TestID, true
}

// #endregion interface-impl

// EffectiveVal is the canonical truth value used for matching: the raw
// recorded value XOR the normalization flip flag.
func (e Cond) EffectiveVal() bool {
	return e.Val != e.NormFlip
}

// IsLoop reports whether the decision belongs to a loop header.
func (e Cond) IsLoop() bool {
	return e.CondKind == "LOOP"
}
