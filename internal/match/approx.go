package match

import (
	"sort"

	"github.com/condtrace/condtrace/internal/event"
	"github.com/condtrace/condtrace/internal/meta"
)

// #region config

// ApproxConfig bounds the approximate matcher.
type ApproxConfig struct {
	TopK          int
	Threshold     float64
	PrefilterSize int
}

// DefaultApproxConfig mirrors the usual report defaults.
func DefaultApproxConfig() ApproxConfig {
	return ApproxConfig{TopK: 3, Threshold: 0.6, PrefilterSize: 20}
}

// #endregion config

// #region types

// DiffOp is one step of an alignment's edit trace.
type DiffOp struct {
	Op     string `json:"op"` // keep | flip | subst | ins | del
	RunIdx *int   `json:"run_idx,omitempty"`
	StIdx  *int   `json:"st_idx,omitempty"`
}

// Approx is one ranked approximate match.
type Approx struct {
	Source  string   `json:"source"`
	ChainID int      `json:"chain_id"`
	Score   float64  `json:"score"`
	LCP     int      `json:"lcp"`
	LCS     int      `json:"lcs"`
	Diffs   []DiffOp `json:"diffs"`
}

// sidStep is one (path-insensitive identifier, effective value) element.
// The identifier is built from condition kind and normalized text rather
// than the path-sensitive hash, which may diverge across spelling and
// expansion-location policies even for semantically identical conditions.
type sidStep struct {
	sid string
	val bool
}

type candidate struct {
	chain     meta.Chain
	steps     []sidStep
	kinds     []string
	sidSet    map[string]struct{}
	weightSum float64
}

// Approxer matches compressed runtime chains against static chains of the
// same function by similarity. Built once per run from the static index.
type Approxer struct {
	byFunc map[string][]candidate
	cfg    ApproxConfig
}

// #endregion types

// #region build

// NewApproxer prepares per-function candidate encodings from the static
// index. Chains referencing conditions with no meta entry are skipped,
// since their identifiers cannot be computed.
func NewApproxer(idx *meta.Index, cfg ApproxConfig) *Approxer {
	a := &Approxer{byFunc: map[string][]candidate{}, cfg: cfg}
	if idx == nil {
		return a
	}
	for fh, chains := range idx.ChainsByFunc {
		var cands []candidate
		for _, ch := range chains {
			c := candidate{chain: ch, sidSet: map[string]struct{}{}}
			ok := true
			for _, step := range ch.Steps {
				info, found := idx.ConditionsByHash[step.Hash]
				if !found {
					ok = false
					break
				}
				s := sid(info.Kind, info.Norm)
				c.steps = append(c.steps, sidStep{sid: s, val: step.Value})
				c.kinds = append(c.kinds, info.Kind)
				c.sidSet[s] = struct{}{}
				c.weightSum += kindWeight(info.Kind)
			}
			if ok {
				cands = append(cands, c)
			}
		}
		if len(cands) > 0 {
			a.byFunc[fh] = cands
		}
	}
	return a
}

func sid(kind, norm string) string {
	return kind + "\t" + norm
}

// kindWeight penalizes structural loop misalignment harder than a flipped
// branch or a switch arm.
func kindWeight(kind string) float64 {
	switch kind {
	case "LOOP":
		return 2.0
	case "CASE", "DEFAULT":
		return 0.5
	default:
		return 1.0
	}
}

// #endregion build

// #region match

// Match returns the top-K candidates above the score threshold for the
// compressed runtime sequence, restricted to chains of funcHash. Scores lie
// in [0,1]. Intended to run only when exact matching found nothing.
func (a *Approxer) Match(funcHash string, comp []event.Cond) []Approx {
	if funcHash == "" {
		return nil
	}
	cands := a.byFunc[funcHash]
	if len(cands) == 0 {
		return nil
	}

	run := make([]sidStep, len(comp))
	kinds := make([]string, len(comp))
	runSet := map[string]struct{}{}
	maxW := 0.0
	for i, ev := range comp {
		s := sid(ev.CondKind, ev.CondNorm)
		run[i] = sidStep{sid: s, val: ev.EffectiveVal()}
		kinds[i] = ev.CondKind
		runSet[s] = struct{}{}
		maxW += kindWeight(ev.CondKind)
	}

	pool := prefilter(runSet, cands, a.cfg.PrefilterSize)

	var scored []Approx
	for _, c := range pool {
		raw, diffs := align(run, kinds, c.steps, c.kinds)
		maxPossible := 2.0 * min(maxW, c.weightSum)
		if maxPossible < 1e-6 {
			maxPossible = 1e-6
		}
		norm := clamp01(raw / maxPossible)
		lcp := lcpLen(run, c.steps)
		lcs := lcsLen(run, c.steps)
		lmin := min(len(run), len(c.steps))
		if lmin < 1 {
			lmin = 1
		}
		score := 0.7*norm + 0.2*float64(lcp)/float64(lmin) + 0.1*float64(lcs)/float64(lmin)
		score = clamp01(score)
		if score >= a.cfg.Threshold {
			scored = append(scored, Approx{
				Source:  c.chain.Source,
				ChainID: c.chain.ChainID,
				Score:   score,
				LCP:     lcp,
				LCS:     lcs,
				Diffs:   diffs,
			})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if a.cfg.TopK > 0 && len(scored) > a.cfg.TopK {
		scored = scored[:a.cfg.TopK]
	}
	return scored
}

// prefilter ranks candidates by Jaccard similarity of their identifier sets
// and keeps a bounded pool for the alignment stage.
func prefilter(runSet map[string]struct{}, cands []candidate, topM int) []candidate {
	type ranked struct {
		jacc float64
		c    candidate
	}
	rs := make([]ranked, 0, len(cands))
	for _, c := range cands {
		inter := 0
		for s := range runSet {
			if _, ok := c.sidSet[s]; ok {
				inter++
			}
		}
		union := len(runSet) + len(c.sidSet) - inter
		if union == 0 {
			union = 1
		}
		rs = append(rs, ranked{jacc: float64(inter) / float64(union), c: c})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].jacc > rs[j].jacc })
	if topM > 0 && len(rs) > topM {
		rs = rs[:topM]
	}
	out := make([]candidate, len(rs))
	for i, r := range rs {
		out[i] = r.c
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion match
