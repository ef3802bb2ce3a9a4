package match

// #region alignment

type traceOp uint8

const (
	opNone traceOp = iota
	opMatch
	opDel // consume a runtime element
	opIns // consume a static element
)

// align computes a weighted global alignment between the runtime and static
// sequences. Matching identifiers score +2w (same value) or -0.5w (flipped
// value), substitutions -1w, gaps -0.75w of the skipped element's kind
// weight, where w follows kindWeight. Returns the raw score and the edit
// trace in sequence order.
func align(run []sidStep, runKinds []string, st []sidStep, stKinds []string) (float64, []DiffOp) {
	n, m := len(run), len(st)
	score := make([][]float64, n+1)
	trace := make([][]traceOp, n+1)
	for i := 0; i <= n; i++ {
		score[i] = make([]float64, m+1)
		trace[i] = make([]traceOp, m+1)
	}

	gapRun := func(i int) float64 { return -0.75 * kindWeight(runKinds[i-1]) }
	gapSt := func(j int) float64 { return -0.75 * kindWeight(stKinds[j-1]) }

	for i := 1; i <= n; i++ {
		score[i][0] = score[i-1][0] + gapRun(i)
		trace[i][0] = opDel
	}
	for j := 1; j <= m; j++ {
		score[0][j] = score[0][j-1] + gapSt(j)
		trace[0][j] = opIns
	}

	for i := 1; i <= n; i++ {
		ri := run[i-1]
		for j := 1; j <= m; j++ {
			sj := st[j-1]
			w := 0.5 * (kindWeight(runKinds[i-1]) + kindWeight(stKinds[j-1]))
			var s float64
			switch {
			case ri.sid == sj.sid && ri.val == sj.val:
				s = 2.0 * w
			case ri.sid == sj.sid:
				s = -0.5 * w
			default:
				s = -1.0 * w
			}
			cMatch := score[i-1][j-1] + s
			cDel := score[i-1][j] + gapRun(i)
			cIns := score[i][j-1] + gapSt(j)
			switch {
			case cMatch >= cDel && cMatch >= cIns:
				score[i][j] = cMatch
				trace[i][j] = opMatch
			case cDel >= cIns:
				score[i][j] = cDel
				trace[i][j] = opDel
			default:
				score[i][j] = cIns
				trace[i][j] = opIns
			}
		}
	}

	var diffs []DiffOp
	i, j := n, m
	for i > 0 || j > 0 {
		switch trace[i][j] {
		case opMatch:
			ri, sj := run[i-1], st[j-1]
			op := "subst"
			if ri.sid == sj.sid && ri.val == sj.val {
				op = "keep"
			} else if ri.sid == sj.sid {
				op = "flip"
			}
			diffs = append(diffs, DiffOp{Op: op, RunIdx: intPtr(i - 1), StIdx: intPtr(j - 1)})
			i, j = i-1, j-1
		case opDel:
			diffs = append(diffs, DiffOp{Op: "del", RunIdx: intPtr(i - 1)})
			i--
		case opIns:
			diffs = append(diffs, DiffOp{Op: "ins", StIdx: intPtr(j - 1)})
			j--
		default:
			return score[n][m], reverse(diffs)
		}
	}
	return score[n][m], reverse(diffs)
}

func reverse(d []DiffOp) []DiffOp {
	for a, b := 0, len(d)-1; a < b; a, b = a+1, b-1 {
		d[a], d[b] = d[b], d[a]
	}
	return d
}

func intPtr(v int) *int { return &v }

// #endregion alignment

// #region metrics

// lcpLen is the longest common prefix of two (identifier, value) sequences.
func lcpLen(a, b []sidStep) int {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// lcsLen is the longest common subsequence length of two sequences.
func lcsLen(a, b []sidStep) int {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return 0
	}
	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				curr[j] = 1 + prev[j+1]
			} else {
				curr[j] = max(prev[j], curr[j+1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[0]
}

// #endregion metrics
