package event

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// #region raw

// rawRecord mirrors the on-disk NDJSON shape. Optional identifiers decode to
// pointers so key presence is distinguishable from a zero value; boolean-ish
// fields are written as 0/1 integers by the capture runtime.
type rawRecord struct {
	Type         string  `json:"type"`
	TestID       *uint64 `json:"test_id"`
	Suite        string  `json:"suite"`
	Name         string  `json:"name"`
	Full         string  `json:"full"`
	File         string  `json:"file"`
	Line         int     `json:"line"`
	Hash         string  `json:"hash"`
	Status       string  `json:"status"`
	AssertID     *uint64 `json:"assert_id"`
	Macro        string  `json:"macro"`
	Raw          string  `json:"raw"`
	InvocationID *uint64 `json:"invocation_id"`
	Index        uint64  `json:"index"`
	SegmentID    uint64  `json:"segment_id"`
	InOracle     *int    `json:"in_oracle"`
	CallFile     string  `json:"call_file"`
	CallLine     int     `json:"call_line"`
	CallExpr     string  `json:"call_expr"`
	TargetFunc   string  `json:"target_func"`
	DurationMS   uint64  `json:"duration_ms"`
	Func         string  `json:"func"`
	CondHash     string  `json:"cond_hash"`
	CondNorm     string  `json:"cond_norm"`
	CondKind     string  `json:"cond_kind"`
	Val          *int    `json:"val"`
	NormFlip     *int    `json:"norm_flip"`
}

// #endregion raw

// #region decoder

// Decoder reads an NDJSON event stream line by line. Malformed and unknown
// lines are skipped with a warning rather than failing the run.
type Decoder struct {
	log     *slog.Logger
	Skipped int
}

// NewDecoder returns a Decoder that reports skipped lines on log.
func NewDecoder(log *slog.Logger) *Decoder {
	if log == nil {
		log = slog.Default()
	}
	return &Decoder{log: log}
}

// DecodeAll reads every event from r in arrival order.
func (d *Decoder) DecodeAll(r io.Reader) ([]Event, error) {
	var events []Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		ev, err := decodeLine(line)
		if err != nil {
			d.Skipped++
			d.log.Warn("skipping malformed event line", "line", lineNo, "err", err)
			continue
		}
		if ev == nil {
			d.Skipped++
			d.log.Warn("skipping unrecognized event kind", "line", lineNo)
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return events, fmt.Errorf("read event stream: %w", err)
	}
	return events, nil
}

func decodeLine(line string) (Event, error) {
	var raw rawRecord
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, err
	}
	switch Kind(raw.Type) {
	case KindTestStart:
		if raw.TestID == nil {
			return nil, fmt.Errorf("test_start without test_id")
		}
		return TestStart{
			TestID: *raw.TestID,
			Suite:  raw.Suite,
			Name:   raw.Name,
			Full:   raw.Full,
			File:   raw.File,
			Line:   raw.Line,
			Hash:   raw.Hash,
		}, nil
	case KindTestEnd:
		if raw.TestID == nil {
			return nil, fmt.Errorf("test_end without test_id")
		}
		return TestEnd{TestID: *raw.TestID, Status: raw.Status}, nil
	case KindAssertion, KindAssertionBegin:
		if raw.TestID == nil || raw.AssertID == nil {
			return nil, fmt.Errorf("assertion without test_id or assert_id")
		}
		return Assertion{
			TestID:   *raw.TestID,
			AssertID: *raw.AssertID,
			Macro:    raw.Macro,
			File:     raw.File,
			Line:     raw.Line,
			Raw:      raw.Raw,
		}, nil
	case KindAssertionEnd:
		if raw.TestID == nil {
			return nil, fmt.Errorf("assertion_end without test_id")
		}
		return AssertionEnd{TestID: *raw.TestID, AssertID: raw.AssertID}, nil
	case KindInvocationStart:
		if raw.TestID == nil || raw.InvocationID == nil {
			return nil, fmt.Errorf("invocation_start without test_id or invocation_id")
		}
		var inOracle *bool
		if raw.InOracle != nil {
			v := *raw.InOracle != 0
			inOracle = &v
		}
		return InvocationStart{
			TestID:       *raw.TestID,
			InvocationID: *raw.InvocationID,
			Index:        raw.Index,
			SegmentID:    raw.SegmentID,
			InOracle:     inOracle,
			CallFile:     raw.CallFile,
			CallLine:     raw.CallLine,
			CallExpr:     raw.CallExpr,
			TargetFunc:   raw.TargetFunc,
		}, nil
	case KindInvocationEnd:
		if raw.TestID == nil || raw.InvocationID == nil {
			return nil, fmt.Errorf("invocation_end without test_id or invocation_id")
		}
		return InvocationEnd{
			TestID:       *raw.TestID,
			InvocationID: *raw.InvocationID,
			Status:       raw.Status,
			DurationMS:   raw.DurationMS,
		}, nil
	case KindCond:
		if raw.Val == nil {
			return nil, fmt.Errorf("cond without val")
		}
		flip := false
		if raw.NormFlip != nil {
			flip = *raw.NormFlip != 0
		}
		return Cond{
			TestID:       raw.TestID,
			InvocationID: raw.InvocationID,
			Func:         raw.Func,
			CondHash:     raw.CondHash,
			File:         raw.File,
			Line:         raw.Line,
			CondNorm:     raw.CondNorm,
			CondKind:     raw.CondKind,
			Val:          *raw.Val != 0,
			NormFlip:     flip,
		}, nil
	}
	return nil, nil
}

// #endregion decoder

// #region open

// Open opens an event log, transparently decompressing by .gz suffix.
// The returned closer releases both the gzip reader and the file.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open gzip event log: %w", err)
	}
	return &gzipReadCloser{gz: gz, f: f}, nil
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return gzErr
}

// #endregion open
