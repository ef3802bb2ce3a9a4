package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/condtrace/condtrace/internal/event"
	"github.com/condtrace/condtrace/internal/logging"
	"github.com/condtrace/condtrace/internal/match"
	"github.com/condtrace/condtrace/internal/meta"
	"github.com/condtrace/condtrace/internal/report"
	"github.com/condtrace/condtrace/internal/store"
)

// #region options

type options struct {
	Logs      string  `short:"l" long:"logs" required:"true" description:"NDJSON runtime log, optionally .gz"`
	Meta      string  `short:"m" long:"meta" description:"static meta directory (conditions/chains/functions)"`
	Out       string  `short:"o" long:"out" default:"-" description:"output JSONL path, '-' for stdout"`
	DB        string  `long:"db" description:"optional SQLite report store to persist triples"`
	Dedupe    bool    `long:"dedupe-conds" description:"show first occurrence per condition hash in displayed chains"`
	Approx    bool    `long:"approx-match" description:"rank near-miss static chains when exact matching is empty"`
	TopK      int     `long:"approx-topk" default:"3" description:"approximate matches kept per invocation"`
	Threshold float64 `long:"approx-threshold" default:"0.6" description:"minimum approximate match score"`
	Prefilter int     `long:"approx-prefilter" default:"20" description:"candidate pool size for alignment"`
	Suite     string  `long:"suite" description:"substring filter on suite name"`
	Test      string  `long:"test" description:"substring filter on test name"`
	Workers   int     `long:"workers" default:"1" description:"concurrent test sessions"`
	Debug     bool    `short:"d" long:"debug" description:"debug logging"`
}

// #endregion options

// #region main

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = "--logs run.ndjson [OPTIONS]"
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	os.Exit(run(opts))
}

func run(opts options) int {
	log := logging.New(opts.Debug)

	in, err := event.Open(opts.Logs)
	if err != nil {
		log.Error("cannot open event log", "path", opts.Logs, "err", err)
		return 1
	}
	defer in.Close()

	dec := event.NewDecoder(log)
	events, err := dec.DecodeAll(in)
	if err != nil {
		log.Error("cannot read event log", "path", opts.Logs, "err", err)
		return 1
	}

	var idx *meta.Index
	if opts.Meta != "" {
		idx = meta.Load(opts.Meta, log)
	} else {
		log.Warn("no meta directory given; static matching disabled")
	}

	cfg := report.Config{
		DedupeConds: opts.Dedupe,
		SuiteFilter: opts.Suite,
		NameFilter:  opts.Test,
		Approx:      opts.Approx,
		ApproxCfg: match.ApproxConfig{
			TopK:          opts.TopK,
			Threshold:     opts.Threshold,
			PrefilterSize: opts.Prefilter,
		},
		Workers: opts.Workers,
	}
	records, summary := report.New(idx, cfg, log).Run(events)

	out, closeOut, err := openOutput(opts.Out)
	if err != nil {
		log.Error("cannot open output", "path", opts.Out, "err", err)
		return 1
	}
	defer closeOut()

	emitter := report.NewEmitter(out)
	for _, rec := range records {
		if err := emitter.Emit(rec); err != nil {
			log.Error("emit failed", "err", err)
			return 1
		}
	}
	if err := emitter.Flush(); err != nil {
		log.Error("flush output", "err", err)
		return 1
	}

	if opts.DB != "" {
		if err := persist(opts, records); err != nil {
			log.Warn("report store unavailable", "path", opts.DB, "err", err)
		}
	}

	log.Info("run complete",
		"tests", summary.Tests,
		"windows", summary.Windows,
		"invocations", summary.Invocations,
		"skipped_lines", dec.Skipped,
		"unattributed_conds", summary.Unattributed,
		"dropped_no_test", summary.DroppedNoTest,
		"exact_matched", summary.ExactMatched,
		"approx_matched", summary.ApproxMatched)
	return 0
}

// #endregion main

// #region output

func openOutput(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func persist(opts options, records []report.Record) error {
	st, err := store.Open(opts.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	runID, err := st.BeginRun(opts.Logs, opts.Meta)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := st.InsertTriple(runID, rec); err != nil {
			return err
		}
	}
	return nil
}

// #endregion output
