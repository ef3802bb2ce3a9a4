// Package meta loads the static analysis documents (conditions, chains,
// functions) into immutable lookup tables shared read-only by the matchers.
package meta

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// #region types

// Condition is one statically discovered boolean decision point.
type Condition struct {
	ID   int    `json:"id"`
	File string `json:"file"`
	Line int    `json:"line"`
	Norm string `json:"cond_norm"`
	Kind string `json:"kind"`
	Hash string `json:"hash"`
}

// ChainStep is one decision along a static chain, resolved to the
// condition's hash.
type ChainStep struct {
	Hash  string `json:"hash"`
	Value bool   `json:"value"`
}

// Chain is one statically enumerated decision path through a function.
type Chain struct {
	FuncHash string
	ChainID  int
	Source   string
	Steps    []ChainStep
}

// Function describes an instrumented function, keyed by its stable hash.
type Function struct {
	Hash      string `json:"hash"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	File      string `json:"file"`
}

// Index holds every static table for one run. Built once by Load and
// read-only afterwards; safe to share across concurrent sessions.
type Index struct {
	ConditionsByHash map[string]Condition
	ConditionsByID   map[int]Condition
	ChainsByFunc     map[string][]Chain
	FunctionsByHash  map[string]Function
}

// #endregion types

// #region documents

type conditionsDoc struct {
	AnalysisVersion string      `json:"analysis_version"`
	Conditions      []Condition `json:"conditions"`
}

type chainsDoc struct {
	AnalysisVersion string     `json:"analysis_version"`
	Chains          []chainDoc `json:"chains"`
}

type chainDoc struct {
	FuncHash string    `json:"func_hash"`
	Func     string    `json:"func"`
	Sequence []stepDoc `json:"sequence"`
}

type stepDoc struct {
	CondID *int `json:"cond_id"`
	Value  bool `json:"value"`
}

type functionsDoc struct {
	AnalysisVersion string     `json:"analysis_version"`
	Functions       []Function `json:"functions"`
}

// #endregion documents

// #region load

// Load reads the three meta documents from dir. A missing or unreadable
// document degrades matching for the tables it would fill; it is never
// fatal. Version markers across the documents are cross-checked and a
// mismatch is reported as a warning only.
func Load(dir string, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	idx := &Index{
		ConditionsByHash: map[string]Condition{},
		ConditionsByID:   map[int]Condition{},
		ChainsByFunc:     map[string][]Chain{},
		FunctionsByHash:  map[string]Function{},
	}

	var condsVersion, chainsVersion, funcsVersion string

	condsPath := filepath.Join(dir, "conditions.meta.json")
	var conds conditionsDoc
	if err := readDoc(condsPath, &conds); err != nil {
		log.Warn("conditions meta unavailable", "path", condsPath, "err", err)
	} else {
		condsVersion = conds.AnalysisVersion
		for _, c := range conds.Conditions {
			idx.ConditionsByID[c.ID] = c
			if c.Hash != "" {
				idx.ConditionsByHash[c.Hash] = c
			}
		}
	}

	chainsPath := filepath.Join(dir, "chains.meta.json")
	var chains chainsDoc
	if err := readDoc(chainsPath, &chains); err != nil {
		log.Warn("chains meta unavailable", "path", chainsPath, "err", err)
	} else {
		chainsVersion = chains.AnalysisVersion
		for _, ch := range chains.Chains {
			fh := ch.FuncHash
			if fh == "" {
				fh = ch.Func
			}
			if fh == "" {
				continue
			}
			steps := make([]ChainStep, 0, len(ch.Sequence))
			for _, s := range ch.Sequence {
				if s.CondID == nil {
					continue
				}
				info, ok := idx.ConditionsByID[*s.CondID]
				if !ok || info.Hash == "" {
					continue
				}
				steps = append(steps, ChainStep{Hash: info.Hash, Value: s.Value})
			}
			idx.ChainsByFunc[fh] = append(idx.ChainsByFunc[fh], Chain{
				FuncHash: fh,
				ChainID:  len(idx.ChainsByFunc[fh]),
				Source:   chainsPath,
				Steps:    steps,
			})
		}
	}

	funcsPath := filepath.Join(dir, "functions.meta.json")
	var funcs functionsDoc
	if err := readDoc(funcsPath, &funcs); err != nil {
		log.Warn("functions meta unavailable", "path", funcsPath, "err", err)
	} else {
		funcsVersion = funcs.AnalysisVersion
		for _, f := range funcs.Functions {
			if f.Hash != "" {
				idx.FunctionsByHash[f.Hash] = f
			}
		}
	}

	if condsVersion != "" && chainsVersion != "" && funcsVersion != "" {
		if condsVersion != chainsVersion || chainsVersion != funcsVersion {
			log.Warn("meta analysis_version mismatch",
				"conditions", condsVersion,
				"chains", chainsVersion,
				"functions", funcsVersion)
		}
	}

	log.Info("loaded static meta",
		"conditions", len(idx.ConditionsByHash),
		"functions", len(idx.FunctionsByHash),
		"chains", idx.chainCount())
	return idx
}

func readDoc(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (idx *Index) chainCount() int {
	n := 0
	for _, chains := range idx.ChainsByFunc {
		n += len(chains)
	}
	return n
}

// #endregion load

// #region lookup

// Signature resolves a function hash to its signature, if known.
func (idx *Index) Signature(funcHash string) (string, bool) {
	f, ok := idx.FunctionsByHash[funcHash]
	if !ok || f.Signature == "" {
		return "", false
	}
	return f.Signature, true
}

// Empty reports whether no static chains are available at all, in which
// case matching degrades to "no matches possible".
func (idx *Index) Empty() bool {
	return idx == nil || len(idx.ChainsByFunc) == 0
}

// #endregion lookup
