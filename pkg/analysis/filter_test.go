package analysis

import (
	"testing"

	"github.com/nowemoore/phonology-app/pkg/phonology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindNasals(t *testing.T) {
	m := defaultMatrix(t)
	alphabet := append(append([]string{}, stops...), "n", "m")
	got, err := FindPhonemesByFeatures(alphabet, []phonology.FeatureSpec{spec("nasal", phonology.Plus)}, m)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m", "n"}, got)
}

func TestFilterIsConjunctive(t *testing.T) {
	m := defaultMatrix(t)
	got, err := FindPhonemesByFeatures(m.Phonemes(), []phonology.FeatureSpec{
		spec("voice", phonology.Plus),
		spec("continuant", phonology.Minus),
		spec("nasal", phonology.Minus),
	}, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "g"}, got)
}

func TestFilterIgnoresTypeAndUnknownFeatures(t *testing.T) {
	m := defaultMatrix(t)
	base, err := FindPhonemesByFeatures(stops, []phonology.FeatureSpec{spec("voice", phonology.Minus)}, m)
	require.NoError(t, err)

	got, err := FindPhonemesByFeatures(stops, []phonology.FeatureSpec{
		spec("Type", phonology.Plus),
		spec("voice", phonology.Minus),
		spec("tone", phonology.Plus),
	}, m)
	require.NoError(t, err)
	assert.Equal(t, base, got)
	assert.Equal(t, []string{"p", "t", "k"}, got)
}

func TestFilterWithoutSpecsReturnsAlphabet(t *testing.T) {
	m := defaultMatrix(t)
	got, err := FindPhonemesByFeatures([]string{"a", "i", "a"}, nil, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "i"}, got)
}

func TestFilterUnspecifiedNeverMatches(t *testing.T) {
	m := defaultMatrix(t)
	// t, d, k, g have round unspecified.
	plus, err := FindPhonemesByFeatures(stops, []phonology.FeatureSpec{spec("round", phonology.Plus)}, m)
	require.NoError(t, err)
	minus, err := FindPhonemesByFeatures(stops, []phonology.FeatureSpec{spec("round", phonology.Minus)}, m)
	require.NoError(t, err)
	assert.Empty(t, plus)
	assert.Equal(t, []string{"p", "b"}, minus)
}

func TestFilterMissingPhonemes(t *testing.T) {
	m := defaultMatrix(t)
	_, err := FindPhonemesByFeatures([]string{"p", "x", "y"}, nil, m)
	de, ok := phonology.AsDataError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, de.Identifiers)
}
