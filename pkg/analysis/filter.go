package analysis

import (
	"github.com/nowemoore/phonology-app/pkg/phonology"
	"k8s.io/klog/v2"
)

// FindPhonemesByFeatures returns the alphabet members that match every spec.
//
// Specs naming the type column or a feature the matrix does not have are
// skipped: they neither add nor remove phonemes. The result keeps alphabet
// order with duplicates removed, though callers should treat it as a set.
func FindPhonemesByFeatures(alphabet []string, specs []phonology.FeatureSpec, m *phonology.Matrix) ([]string, error) {
	if err := m.Require(alphabet); err != nil {
		return nil, err
	}

	candidates := phonology.Dedup(alphabet)
	for _, spec := range specs {
		if phonology.IsReserved(spec.Feature) || !m.HasFeature(spec.Feature) {
			klog.V(2).Infof("filter: ignoring spec %q", spec.Feature)
			continue
		}
		want := spec.Polarity.Value()
		kept := candidates[:0:0]
		for _, p := range candidates {
			if v, _ := m.Value(p, spec.Feature); v == want {
				kept = append(kept, p)
			}
		}
		candidates = kept
	}
	return candidates, nil
}
