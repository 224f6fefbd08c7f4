package db

import "time"

// Inventory is an imported feature table.
type Inventory struct {
	ID       int64
	Name     string
	Checksum string
	RowCount int
	// LastImportedRow is the index of the last data row committed, -1 before any.
	LastImportedRow int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Complete reports whether every row of the inventory has been imported.
func (inv Inventory) Complete() bool {
	return inv.LastImportedRow >= inv.RowCount-1
}

// Analysis kinds recorded in the history.
const (
	KindAnalyze = "analyze"
	KindFind    = "find"
)

// AnalysisRecord is one query kept in the history.
type AnalysisRecord struct {
	ID        string
	Inventory string
	Kind      string
	Alphabet  []string
	Targets   []string
	Specs     []string
	// Result holds the solutions (analyze) or the matching phonemes (find).
	Result    [][]string
	Message   string
	CreatedAt time.Time
}
