package report

import (
	"log/slog"
	"strconv"

	"github.com/sourcegraph/conc/pool"

	"github.com/condtrace/condtrace/internal/chain"
	"github.com/condtrace/condtrace/internal/event"
	"github.com/condtrace/condtrace/internal/match"
	"github.com/condtrace/condtrace/internal/meta"
	"github.com/condtrace/condtrace/internal/session"
)

// #region config

// Config selects the pipeline's optional behavior.
type Config struct {
	// DedupeConds switches the displayed chains to first-occurrence form.
	// It never influences matching.
	DedupeConds bool
	// SuiteFilter and NameFilter are emission-time substring filters.
	SuiteFilter string
	NameFilter  string
	// Approx enables the approximate matcher for invocations with no exact
	// match.
	Approx    bool
	ApproxCfg match.ApproxConfig
	// Workers bounds per-test concurrency. Sessions share no mutable state,
	// so they process independently; output order stays deterministic.
	Workers int
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{ApproxCfg: match.DefaultApproxConfig(), Workers: 1}
}

// #endregion config

// #region summary

// Summary aggregates one run's counters for the final log line.
type Summary struct {
	Tests         int
	Windows       int
	Invocations   int
	Unattributed  int
	DroppedNoTest int
	ExactMatched  int
	ApproxMatched int
}

// #endregion summary

// #region pipeline

// Pipeline turns a decoded event stream into assertion triples. The static
// index is read-only and shared across sessions.
type Pipeline struct {
	idx      *meta.Index
	approxer *match.Approxer
	cfg      Config
	log      *slog.Logger
}

// New builds a pipeline over the given static index; idx may be nil, in
// which case matching degrades to no matches.
func New(idx *meta.Index, cfg Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	var approxer *match.Approxer
	if cfg.Approx {
		approxer = match.NewApproxer(idx, cfg.ApproxCfg)
	}
	return &Pipeline{idx: idx, approxer: approxer, cfg: cfg, log: log}
}

// Run partitions events into per-test sessions, processes sessions on a
// bounded worker pool, and returns records in first-seen test order with
// arrival order preserved inside each test.
func (p *Pipeline) Run(events []event.Event) ([]Record, Summary) {
	streams, dropped := session.Split(events)

	results := make([]sessionResult, len(streams))

	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	pl := pool.New().WithMaxGoroutines(workers)
	for i, stream := range streams {
		i, stream := i, stream
		pl.Go(func() {
			sess := session.Partition(stream)
			results[i] = p.processSession(sess)
		})
	}
	pl.Wait()

	var records []Record
	summary := Summary{DroppedNoTest: dropped}
	for _, r := range results {
		records = append(records, r.records...)
		summary.Tests += r.summary.Tests
		summary.Windows += r.summary.Windows
		summary.Invocations += r.summary.Invocations
		summary.Unattributed += r.summary.Unattributed
		summary.ExactMatched += r.summary.ExactMatched
		summary.ApproxMatched += r.summary.ApproxMatched
	}
	return records, summary
}

type sessionResult struct {
	records []Record
	summary Summary
}

func (p *Pipeline) processSession(sess session.Session) (res sessionResult) {
	res.summary.Tests = 1
	res.summary.Unattributed = sess.Unattributed
	if sess.Unattributed > 0 {
		p.log.Warn("unattributed condition events",
			"test", sess.Info.Full, "count", sess.Unattributed)
	}
	if !sess.Info.Matches(p.cfg.SuiteFilter, p.cfg.NameFilter) {
		return res
	}
	for _, w := range sess.Windows {
		rec, ws := p.buildRecord(sess.Info, w)
		res.records = append(res.records, rec)
		res.summary.Windows++
		res.summary.Invocations += ws.Invocations
		res.summary.ExactMatched += ws.ExactMatched
		res.summary.ApproxMatched += ws.ApproxMatched
	}
	return res
}

// buildRecord assembles one triple. The displayed chain is the full
// arrival-order sequence (optionally first-occurrence deduplicated);
// compression feeds matching only.
func (p *Pipeline) buildRecord(info session.TestInfo, w session.Window) (Record, Summary) {
	rec := Record{
		Test: TestBlock{
			Suite: info.Suite,
			Name:  info.Name,
			Full:  info.Full,
			File:  info.File,
			Line:  info.Line,
		},
		Assertion: AssertionBlock{
			AssertID: w.Assertion.AssertID,
			Macro:    w.Assertion.Macro,
			File:     w.Assertion.File,
			Line:     w.Assertion.Line,
			Raw:      w.Assertion.Raw,
		},
		Prefix:      make([]Call, 0, len(w.Prefix)),
		OracleCalls: make([]Call, 0, len(w.Oracle)),
		CondChains:  map[string][]CondEntry{},
		Invocations: map[string]InvocationInfo{},
	}
	for _, inv := range w.Prefix {
		rec.Prefix = append(rec.Prefix, slimCall(inv))
	}
	for _, inv := range w.Oracle {
		rec.OracleCalls = append(rec.OracleCalls, slimCall(inv))
	}

	var ws Summary
	for _, inv := range append(append([]*session.Invocation{}, w.Prefix...), w.Oracle...) {
		ws.Invocations++
		key := strconv.FormatUint(inv.ID, 10)
		full := w.Conds[inv.ID]
		comp := chain.Compress(full)

		display := full
		if p.cfg.DedupeConds {
			display = chain.Dedup(full)
		}
		entries := make([]CondEntry, 0, len(display))
		for _, ev := range display {
			entries = append(entries, slimCond(ev))
		}
		rec.CondChains[key] = entries

		funcHash := chain.FuncHash(full, inv.TargetFunc)
		if funcHash == "" {
			continue
		}
		entry := InvocationInfo{FuncHash: funcHash}
		if p.idx != nil {
			if sig, ok := p.idx.Signature(funcHash); ok {
				entry.Signature = sig
			}
		}
		entry.MatchedStatic = match.FindExact(funcHash, chain.Steps(comp), p.idx)
		if len(entry.MatchedStatic) > 0 {
			ws.ExactMatched++
		} else if p.approxer != nil {
			entry.ApproxStatic = p.approxer.Match(funcHash, comp)
			if len(entry.ApproxStatic) > 0 {
				ws.ApproxMatched++
			}
		}
		rec.Invocations[key] = entry
	}
	return rec, ws
}

// #endregion pipeline
