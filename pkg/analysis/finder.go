package analysis

import (
	"context"
	"fmt"

	"github.com/nowemoore/phonology-app/pkg/phonology"
	"k8s.io/klog/v2"
)

// pollEvery is how many combinations are examined between context checks.
const pollEvery = 1024

// Solution is one minimal feature set, in source column order.
type Solution []phonology.FeatureSpec

func (s Solution) String() string {
	out := "["
	for i, fs := range s {
		if i > 0 {
			out += ", "
		}
		out += fs.String()
	}
	return out + "]"
}

// Result holds every minimal solution of one size.
type Result struct {
	Solutions []Solution
	// Size is the number of features in each solution.
	Size    int
	Message string
	// Examined counts the combinations tested, across all sizes.
	Examined int
}

// Unique reports whether exactly one minimal solution exists.
func (r *Result) Unique() bool { return len(r.Solutions) == 1 }

// candidate is a phase-1 survivor with the value every target shares.
type candidate struct {
	name  string
	index int
	value phonology.Value
}

// CandidateFeatures returns the features that can take part in a solution:
// every target has the same specified value for them and, unless the targets
// cover the whole alphabet, some non-target has a different value.
func CandidateFeatures(alphabet, targets []string, m *phonology.Matrix) ([]string, error) {
	q, err := newQuery(alphabet, targets, m)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(q.valid))
	for i, c := range q.valid {
		names[i] = c.name
	}
	return names, nil
}

// FindMinimumFeatures searches for the smallest feature sets whose values
// single out targets within alphabet. All sets of the minimal size are
// returned, ordered lexicographically by feature column order. A nil Result
// with a nil error means no feature set distinguishes the targets.
//
// The search is exhaustive: in the worst case every one of the 2^|V| subsets
// of the candidate features V is tested. Feature inventories have tens of
// columns, and ctx is polled so callers can bound the run.
func FindMinimumFeatures(ctx context.Context, alphabet, targets []string, m *phonology.Matrix) (*Result, error) {
	q, err := newQuery(alphabet, targets, m)
	if err != nil {
		return nil, err
	}

	n := len(q.valid)
	klog.V(2).Infof("analysis: %d targets, %d non-targets, %d candidate features", len(q.targets), len(q.nonTargets), n)

	// distinct[i][j]: non-target i differs from the targets on candidate j.
	distinct := make([][]bool, len(q.nonTargets))
	for i, p := range q.nonTargets {
		row, _ := m.Row(p)
		distinct[i] = make([]bool, n)
		for j, c := range q.valid {
			distinct[i][j] = row[c.index] != c.value
		}
	}

	res := &Result{}
	combo := make([]int, 0, n)
	for k := 1; k <= n; k++ {
		var found []Solution
		err := eachCombination(n, k, combo, func(c []int) error {
			res.Examined++
			if res.Examined%pollEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if sufficient(distinct, c) {
				found = append(found, q.solution(c))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			continue
		}

		res.Solutions = found
		res.Size = k
		if len(found) == 1 {
			res.Message = fmt.Sprintf("Unique minimal solution found with %d feature(s)", k)
		} else {
			res.Message = fmt.Sprintf("Multiple minimal solutions found with %d feature(s) each", k)
		}
		klog.V(2).Infof("analysis: %d solution(s) of size %d after %d combinations", len(found), k, res.Examined)
		return res, nil
	}

	klog.V(2).Infof("analysis: no solution after %d combinations", res.Examined)
	return nil, nil
}

// sufficient reports whether every non-target differs from the targets on at
// least one feature of the combination. All targets share a single tuple, so
// this is the same as the target and non-target tuple sets being disjoint.
func sufficient(distinct [][]bool, combo []int) bool {
	for _, d := range distinct {
		hit := false
		for _, j := range combo {
			if d[j] {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// eachCombination calls fn with every k-subset of [0, n) in lexicographic order.
// The slice passed to fn is reused between calls.
func eachCombination(n, k int, buf []int, fn func([]int) error) error {
	if k <= 0 || k > n {
		return nil
	}
	c := buf[:0]
	for i := 0; i < k; i++ {
		c = append(c, i)
	}
	for {
		if err := fn(c); err != nil {
			return err
		}
		// Rightmost index that can still move.
		i := k - 1
		for i >= 0 && c[i] == n-k+i {
			i--
		}
		if i < 0 {
			return nil
		}
		c[i]++
		for j := i + 1; j < k; j++ {
			c[j] = c[j-1] + 1
		}
	}
}

type query struct {
	targets    []string
	nonTargets []string
	valid      []candidate
}

func newQuery(alphabet, targets []string, m *phonology.Matrix) (*query, error) {
	if err := m.Require(alphabet, targets); err != nil {
		return nil, err
	}
	alphabet = phonology.Dedup(alphabet)
	targets = phonology.Dedup(targets)

	inAlphabet := make(map[string]bool, len(alphabet))
	for _, p := range alphabet {
		inAlphabet[p] = true
	}
	isTarget := make(map[string]bool, len(targets))
	var outside []string
	for _, p := range targets {
		isTarget[p] = true
		if !inAlphabet[p] {
			outside = append(outside, p)
		}
	}
	if len(outside) > 0 {
		return nil, &phonology.DataError{Kind: phonology.KindTargetsOutsideAlphabet, Identifiers: outside}
	}

	q := &query{targets: targets}
	for _, p := range alphabet {
		if !isTarget[p] {
			q.nonTargets = append(q.nonTargets, p)
		}
	}
	if len(targets) == 0 {
		return q, nil
	}

	for j, name := range m.FeatureNames() {
		if v, ok := q.sharedValue(j, m); ok {
			q.valid = append(q.valid, candidate{name: name, index: j, value: v})
		}
	}
	return q, nil
}

// sharedValue returns the value all targets have for feature j, provided it is
// specified and something outside the targets has a different one.
func (q *query) sharedValue(j int, m *phonology.Matrix) (phonology.Value, bool) {
	first, _ := m.Row(q.targets[0])
	v := first[j]
	if !v.Specified() {
		return v, false
	}
	for _, p := range q.targets[1:] {
		row, _ := m.Row(p)
		if row[j] != v {
			return v, false
		}
	}
	if len(q.nonTargets) == 0 {
		return v, true
	}
	for _, p := range q.nonTargets {
		row, _ := m.Row(p)
		if row[j] != v {
			return v, true
		}
	}
	return v, false
}

func (q *query) solution(combo []int) Solution {
	s := make(Solution, len(combo))
	for i, j := range combo {
		c := q.valid[j]
		s[i] = phonology.FeatureSpec{Feature: c.name, Polarity: phonology.PolarityOf(c.value)}
	}
	return s
}
