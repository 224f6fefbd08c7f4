package phonology

import (
	"strings"
)

// TypeColumn is the reserved metadata column. It is matched case-insensitively
// and is never treated as a feature.
const TypeColumn = "type"

// IsReserved reports whether a column name is the reserved type column.
func IsReserved(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), TypeColumn)
}

// Matrix is an immutable phoneme × feature table.
// It is safe for concurrent use once built.
type Matrix struct {
	idColumn string
	features []string       // feature columns, source order
	featIdx  map[string]int // feature name -> index into features
	phonemes []string       // row keys, source order
	rowIdx   map[string]int // phoneme -> index into rows
	rows     [][]Value      // rows[i][j] = value of features[j] for phonemes[i]
	types    []string       // type column per row, empty when absent
}

// Build turns a parsed table (header first, then data rows) into a Matrix.
func Build(rows [][]string) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, malformed("table has no header")
	}
	return BuildTable(rows[0], rows[1:])
}

// BuildTable is Build with the header split from the records.
func BuildTable(header []string, records [][]string) (*Matrix, error) {
	if len(header) == 0 {
		return nil, malformed("table has no header")
	}

	m := &Matrix{
		idColumn: strings.TrimSpace(header[0]),
		featIdx:  make(map[string]int, len(header)),
		rowIdx:   make(map[string]int, len(records)),
		rows:     make([][]Value, 0, len(records)),
	}

	// Map source columns to feature slots; -1 marks the type column.
	typeCol := -1
	slots := make([]int, len(header))
	for col := 1; col < len(header); col++ {
		name := strings.TrimSpace(header[col])
		if name == "" {
			return nil, malformed("column %d has an empty name", col+1)
		}
		if IsReserved(name) {
			if typeCol >= 0 {
				return nil, malformed("duplicate %q column", TypeColumn)
			}
			typeCol = col
			slots[col] = -1
			continue
		}
		if _, dup := m.featIdx[name]; dup {
			return nil, malformed("duplicate feature column %q", name)
		}
		slots[col] = len(m.features)
		m.featIdx[name] = len(m.features)
		m.features = append(m.features, name)
	}

	var dups []string
	for i, rec := range records {
		if len(rec) != len(header) {
			return nil, malformed("row %d has %d fields, header has %d", i+1, len(rec), len(header))
		}
		id := strings.TrimSpace(rec[0])
		if id == "" {
			return nil, malformed("row %d has an empty phoneme identifier", i+1)
		}
		if _, seen := m.rowIdx[id]; seen {
			dups = append(dups, id)
			continue
		}

		vals := make([]Value, len(m.features))
		typ := ""
		for col := 1; col < len(rec); col++ {
			if slots[col] < 0 {
				typ = strings.TrimSpace(rec[col])
				continue
			}
			v, err := ParseValue(rec[col])
			if err != nil {
				return nil, &DataError{
					Kind:        KindMalformedTable,
					Identifiers: []string{id},
					Detail:      "column " + m.features[slots[col]],
					Err:         err,
				}
			}
			vals[slots[col]] = v
		}

		m.rowIdx[id] = len(m.phonemes)
		m.phonemes = append(m.phonemes, id)
		m.rows = append(m.rows, vals)
		m.types = append(m.types, typ)
	}
	if len(dups) > 0 {
		return nil, &DataError{Kind: KindMalformedTable, Identifiers: dups, Detail: "duplicate phoneme identifiers"}
	}
	return m, nil
}

// IDColumn returns the header of the identifier column.
func (m *Matrix) IDColumn() string { return m.idColumn }

// FeatureNames returns the feature columns in source order.
func (m *Matrix) FeatureNames() []string {
	return append([]string(nil), m.features...)
}

// Phonemes returns all identifiers in source order.
func (m *Matrix) Phonemes() []string {
	return append([]string(nil), m.phonemes...)
}

// Len returns the number of phonemes.
func (m *Matrix) Len() int { return len(m.phonemes) }

// Contains reports whether phoneme is a row of the matrix.
func (m *Matrix) Contains(phoneme string) bool {
	_, ok := m.rowIdx[phoneme]
	return ok
}

// HasFeature reports whether name is a feature column. The type column is not.
func (m *Matrix) HasFeature(name string) bool {
	_, ok := m.featIdx[name]
	return ok
}

// Value returns the value of feature for phoneme. ok is false when either is unknown.
func (m *Matrix) Value(phoneme, feature string) (v Value, ok bool) {
	r, ok := m.rowIdx[phoneme]
	if !ok {
		return Unspecified, false
	}
	c, ok := m.featIdx[feature]
	if !ok {
		return Unspecified, false
	}
	return m.rows[r][c], true
}

// Type returns the type column of phoneme, or "" when there is none.
func (m *Matrix) Type(phoneme string) string {
	if r, ok := m.rowIdx[phoneme]; ok {
		return m.types[r]
	}
	return ""
}

// Row returns phoneme's values indexed like FeatureNames. The slice is shared; do not modify.
func (m *Matrix) Row(phoneme string) ([]Value, bool) {
	r, ok := m.rowIdx[phoneme]
	if !ok {
		return nil, false
	}
	return m.rows[r], true
}

// FeatureIndex returns the position of name within FeatureNames.
func (m *Matrix) FeatureIndex(name string) (int, bool) {
	i, ok := m.featIdx[name]
	return i, ok
}

// Require fails with a KindMissingPhonemes DataError listing every identifier
// of the given groups that is not in the matrix, in first-seen order.
func (m *Matrix) Require(groups ...[]string) error {
	var missing []string
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, id := range g {
			if m.Contains(id) || seen[id] {
				continue
			}
			seen[id] = true
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &DataError{Kind: KindMissingPhonemes, Identifiers: missing}
	}
	return nil
}
