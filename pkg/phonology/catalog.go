package phonology

// AllFeatures returns every column name except the identifier and type columns,
// in source column order.
func AllFeatures(m *Matrix) []string {
	return m.FeatureNames()
}

// Dedup collapses duplicate identifiers, keeping first-occurrence order.
func Dedup(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
