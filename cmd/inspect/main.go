package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/condtrace/condtrace/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to report store (SQLite)")
	reportPath := flag.String("report", "", "path to raw JSONL report (file mode)")
	runID := flag.String("run", "", "run to browse (default: most recent)")
	suite := flag.String("suite", "", "substring filter on suite")
	test := flag.String("test", "", "substring filter on test name")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if (*dbPath == "" && *reportPath == "") || (*dbPath != "" && *reportPath != "") {
		fmt.Fprintln(os.Stderr, "usage: inspect --db report.db [--run id] [--suite s] [--test t] [--json]")
		fmt.Fprintln(os.Stderr, "       inspect --report out.jsonl [--suite s] [--test t]")
		os.Exit(2)
	}

	var err error
	if *reportPath != "" {
		err = runFileMode(*reportPath, *suite, *test)
	} else {
		err = runDBMode(*dbPath, *runID, *suite, *test, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region db-mode

func runDBMode(dbPath, runID, suite, test string, jsonOut bool) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if runID == "" {
		runs, err := st.ListRuns(1)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "no runs found")
			return nil
		}
		runID = runs[0].RunID
	}

	triples, err := st.ListTriples(runID, suite, test)
	if err != nil {
		return err
	}
	if len(triples) == 0 {
		fmt.Fprintln(os.Stderr, "no triples found for run", runID)
		return nil
	}

	if jsonOut {
		recs := make([]any, len(triples))
		for i, t := range triples {
			recs[i] = t.Record
		}
		return printJSON(recs)
	}

	fmt.Printf("Run %s\n\n", runID)
	printHeader()
	for _, t := range triples {
		rec := t.Record
		exact, approx := 0, 0
		for _, inv := range rec.Invocations {
			exact += len(inv.MatchedStatic)
			approx += len(inv.ApproxStatic)
		}
		printRow(rec.Test.Full, t.AssertID, rec.Assertion.Macro,
			len(rec.Prefix), len(rec.OracleCalls), exact, approx)
	}
	return nil
}

// #endregion db-mode

// #region file-mode

// runFileMode summarizes a raw JSONL report without decoding full records.
func runFileMode(path, suite, test string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	printHeader()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !gjson.Valid(line) {
			continue
		}
		rec := gjson.Parse(line)
		if suite != "" && !strings.Contains(rec.Get("test.suite").String(), suite) {
			continue
		}
		if test != "" && !strings.Contains(rec.Get("test.name").String(), test) &&
			!strings.Contains(rec.Get("test.full").String(), test) {
			continue
		}
		exact, approx := 0, 0
		rec.Get("invocations").ForEach(func(_, inv gjson.Result) bool {
			exact += int(inv.Get("matched_static.#").Int())
			approx += int(inv.Get("approx_static.#").Int())
			return true
		})
		printRow(
			rec.Get("test.full").String(),
			rec.Get("assertion.assert_id").Uint(),
			rec.Get("assertion.macro").String(),
			int(rec.Get("prefix.#").Int()),
			int(rec.Get("oracle_calls.#").Int()),
			exact, approx,
		)
	}
	return sc.Err()
}

// #endregion file-mode

// #region output

func printHeader() {
	fmt.Printf("%-40s  %8s  %-14s  %6s  %6s  %5s  %6s\n",
		"Test", "Assert", "Macro", "Prefix", "Oracle", "Exact", "Approx")
	fmt.Printf("%-40s  %8s  %-14s  %6s  %6s  %5s  %6s\n",
		"----------------------------------------", "--------", "--------------",
		"------", "------", "-----", "------")
}

func printRow(full string, assertID uint64, macro string, prefix, oracle, exact, approx int) {
	if len(full) > 40 {
		full = full[:40]
	}
	fmt.Printf("%-40s  %8d  %-14s  %6d  %6d  %5d  %6d\n",
		full, assertID, macro, prefix, oracle, exact, approx)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output
