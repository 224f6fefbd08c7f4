package analysis

import (
	"context"
	"math/bits"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/nowemoore/phonology-app/pkg/phonology"
	"github.com/nowemoore/phonology-app/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stops = []string{"p", "b", "t", "d", "k", "g"}

func defaultMatrix(t testing.TB) *phonology.Matrix {
	t.Helper()
	tbl, err := table.Default().Load(context.Background())
	require.NoError(t, err)
	m, err := tbl.Matrix()
	require.NoError(t, err)
	return m
}

func spec(feature string, p phonology.Polarity) phonology.FeatureSpec {
	return phonology.FeatureSpec{Feature: feature, Polarity: p}
}

func TestVoicelessStopsHaveUniqueSolution(t *testing.T) {
	m := defaultMatrix(t)
	res, err := FindMinimumFeatures(context.Background(), stops, []string{"p", "t", "k"}, m)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, res.Unique())
	assert.Equal(t, 1, res.Size)
	assert.Equal(t, []Solution{{spec("voice", phonology.Minus)}}, res.Solutions)
	assert.Equal(t, "Unique minimal solution found with 1 feature(s)", res.Message)
	assert.Equal(t, "[voice -]", res.Solutions[0].String())
}

func TestLabialStopsHaveTwoSolutions(t *testing.T) {
	m := defaultMatrix(t)
	res, err := FindMinimumFeatures(context.Background(), stops, []string{"p", "b"}, m)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.False(t, res.Unique())
	assert.Equal(t, 1, res.Size)
	assert.ElementsMatch(t, []Solution{
		{spec("round", phonology.Minus)},
		{spec("labial", phonology.Plus)},
	}, res.Solutions)
	// Column order: labial precedes round.
	assert.Equal(t, "labial", res.Solutions[0][0].Feature)
	assert.Equal(t, "Multiple minimal solutions found with 1 feature(s) each", res.Message)
}

func TestNoSolution(t *testing.T) {
	m := defaultMatrix(t)
	alphabet := append(append([]string{}, stops...), "n", "m")
	res, err := FindMinimumFeatures(context.Background(), alphabet, []string{"t", "m"}, m)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestEmptyTargetsHaveNoSolution(t *testing.T) {
	m := defaultMatrix(t)
	res, err := FindMinimumFeatures(context.Background(), stops, nil, m)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestMissingPhonemesAreAllReported(t *testing.T) {
	m := defaultMatrix(t)
	_, err := FindMinimumFeatures(context.Background(), []string{"p", "q", "x"}, []string{"p", "ʔ"}, m)
	require.Error(t, err)
	de, ok := phonology.AsDataError(err)
	require.True(t, ok)
	assert.Equal(t, phonology.KindMissingPhonemes, de.Kind)
	assert.Equal(t, []string{"q", "x", "ʔ"}, de.Identifiers)
}

func TestTargetsOutsideAlphabet(t *testing.T) {
	m := defaultMatrix(t)
	_, err := FindMinimumFeatures(context.Background(), []string{"p", "b"}, []string{"p", "m", "n"}, m)
	require.Error(t, err)
	de, ok := phonology.AsDataError(err)
	require.True(t, ok)
	assert.Equal(t, phonology.KindTargetsOutsideAlphabet, de.Kind)
	assert.Equal(t, []string{"m", "n"}, de.Identifiers)
}

func TestDuplicatesAreCollapsed(t *testing.T) {
	m := defaultMatrix(t)
	a, err := FindMinimumFeatures(context.Background(), stops, []string{"p", "t", "k"}, m)
	require.NoError(t, err)
	b, err := FindMinimumFeatures(context.Background(), append(stops, "p", "b"), []string{"k", "p", "t", "p"}, m)
	require.NoError(t, err)
	assert.Equal(t, a.Solutions, b.Solutions)
}

func TestTargetsCoveringAlphabet(t *testing.T) {
	m := defaultMatrix(t)
	res, err := FindMinimumFeatures(context.Background(), []string{"p", "b"}, []string{"p", "b"}, m)
	require.NoError(t, err)
	require.NotNil(t, res)
	// Every feature p and b agree on is valid and sufficient alone.
	assert.Equal(t, 1, res.Size)
	cands, err := CandidateFeatures([]string{"p", "b"}, []string{"p", "b"}, m)
	require.NoError(t, err)
	assert.Len(t, res.Solutions, len(cands))
	assert.NotContains(t, cands, "voice")
	assert.NotContains(t, cands, "high", "unspecified values never qualify")
}

func TestCandidateFeatures(t *testing.T) {
	m := defaultMatrix(t)
	alphabet := append(append([]string{}, stops...), "n", "m")
	cands, err := CandidateFeatures(alphabet, []string{"t", "m"}, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"anterior", "dorsal"}, cands)
}

func TestSearchIsDeterministic(t *testing.T) {
	m := defaultMatrix(t)
	first, err := FindMinimumFeatures(context.Background(), stops, []string{"p", "b"}, m)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := FindMinimumFeatures(context.Background(), stops, []string{"p", "b"}, m)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSearchHonoursCancellation(t *testing.T) {
	const features = 16
	header := []string{"phoneme"}
	for j := 0; j < features; j++ {
		header = append(header, "f"+strconv.Itoa(j))
	}
	rows := [][]string{header}
	target := []string{"t"}
	for j := 0; j < features; j++ {
		target = append(target, "1")
	}
	rows = append(rows, target)
	for i := 0; i < features; i++ {
		row := []string{"n" + strconv.Itoa(i)}
		for j := 0; j < features; j++ {
			if j == i {
				row = append(row, "0")
			} else {
				row = append(row, "1")
			}
		}
		rows = append(rows, row)
	}
	m, err := phonology.Build(rows)
	require.NoError(t, err)

	// The only solution uses every feature, so the search visits all subsets.
	res, err := FindMinimumFeatures(context.Background(), m.Phonemes(), []string{"t"}, m)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, features, res.Size)
	assert.Equal(t, 1<<features-1, res.Examined)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FindMinimumFeatures(ctx, m.Phonemes(), []string{"t"}, m)
	assert.ErrorIs(t, err, context.Canceled)
}

// naiveMinimum checks every subset of every feature, without the phase-1
// pruning, using tuple set disjointness directly.
func naiveMinimum(alphabet, targets []string, m *phonology.Matrix) []Solution {
	features := m.FeatureNames()
	isTarget := map[string]bool{}
	for _, p := range targets {
		isTarget[p] = true
	}
	var best []Solution
	bestSize := 0
	for mask := 1; mask < 1<<len(features); mask++ {
		size := bits.OnesCount(uint(mask))
		if bestSize > 0 && size > bestSize {
			continue
		}
		tuple := func(p string) string {
			var b strings.Builder
			for j, f := range features {
				if mask&(1<<j) != 0 {
					v, _ := m.Value(p, f)
					b.WriteString(v.String())
				}
			}
			return b.String()
		}
		targetTuples := map[string]bool{}
		for _, p := range targets {
			targetTuples[tuple(p)] = true
		}
		if len(targetTuples) != 1 {
			continue
		}
		ok := true
		for _, p := range alphabet {
			if !isTarget[p] && targetTuples[tuple(p)] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		// Unspecified target values and features that no non-target
		// contradicts cannot take part in a solution.
		var sol Solution
		for j, f := range features {
			if mask&(1<<j) == 0 {
				continue
			}
			v, _ := m.Value(targets[0], f)
			if !v.Specified() {
				ok = false
				break
			}
			contradicted := false
			nonTargets := 0
			for _, p := range alphabet {
				if isTarget[p] {
					continue
				}
				nonTargets++
				if w, _ := m.Value(p, f); w != v {
					contradicted = true
				}
			}
			if nonTargets > 0 && !contradicted {
				ok = false
				break
			}
			sol = append(sol, spec(f, phonology.PolarityOf(v)))
		}
		if !ok {
			continue
		}
		if bestSize == 0 || size < bestSize {
			best = nil
			bestSize = size
		}
		best = append(best, sol)
	}
	return best
}

func solutionKeys(sols []Solution) []string {
	keys := make([]string, len(sols))
	for i, s := range sols {
		keys[i] = s.String()
	}
	sort.Strings(keys)
	return keys
}

func TestSearchMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	values := []string{"1", "0", "-1"}
	for iter := 0; iter < 200; iter++ {
		features := 2 + rng.Intn(5)
		phonemes := 2 + rng.Intn(6)
		header := []string{"phoneme"}
		for j := 0; j < features; j++ {
			header = append(header, "f"+strconv.Itoa(j))
		}
		rows := [][]string{header}
		var ids []string
		for i := 0; i < phonemes; i++ {
			id := "p" + strconv.Itoa(i)
			ids = append(ids, id)
			row := []string{id}
			for j := 0; j < features; j++ {
				row = append(row, values[rng.Intn(len(values))])
			}
			rows = append(rows, row)
		}
		m, err := phonology.Build(rows)
		require.NoError(t, err)

		var targets []string
		for _, id := range ids {
			if rng.Intn(2) == 0 {
				targets = append(targets, id)
			}
		}
		if len(targets) == 0 {
			targets = ids[:1]
		}

		res, err := FindMinimumFeatures(context.Background(), ids, targets, m)
		require.NoError(t, err)
		want := naiveMinimum(ids, targets, m)
		if len(want) == 0 {
			assert.Nil(t, res, "iteration %d: expected no solution", iter)
			continue
		}
		require.NotNil(t, res, "iteration %d: expected %v", iter, want)
		assert.Equal(t, len(want[0]), res.Size, "iteration %d", iter)
		assert.Equal(t, solutionKeys(want), solutionKeys(res.Solutions), "iteration %d", iter)

		cands, err := CandidateFeatures(ids, targets, m)
		require.NoError(t, err)
		for _, s := range res.Solutions {
			for _, fs := range s {
				assert.Contains(t, cands, fs.Feature, "iteration %d: rejected feature in solution", iter)
			}
		}
	}
}

func TestEachCombinationOrder(t *testing.T) {
	var got []string
	err := eachCombination(4, 2, make([]int, 0, 4), func(c []int) error {
		got = append(got, strconv.Itoa(c[0])+strconv.Itoa(c[1]))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02", "03", "12", "13", "23"}, got)

	calls := 0
	require.NoError(t, eachCombination(3, 4, nil, func([]int) error { calls++; return nil }))
	assert.Zero(t, calls)
}

func BenchmarkFindMinimumFeatures(b *testing.B) {
	m := defaultMatrix(b)
	alphabet := m.Phonemes()
	for i := 0; i < b.N; i++ {
		if _, err := FindMinimumFeatures(context.Background(), alphabet, []string{"t", "d", "s", "z", "n", "l"}, m); err != nil {
			b.Fatal(err)
		}
	}
}
