package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nowemoore/phonology-app/pkg/phonology"
	"github.com/nowemoore/phonology-app/pkg/table"
	"github.com/pkg/errors"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// ErrInventoryNotFound is returned when no inventory has the requested name.
var ErrInventoryNotFound = errors.New("inventory not found")

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

const inventoryColumns = `id, name, checksum, row_count, last_imported_row, created_at, updated_at`

func scanInventory(row interface{ Scan(...interface{}) error }) (Inventory, error) {
	var inv Inventory
	err := row.Scan(&inv.ID, &inv.Name, &inv.Checksum, &inv.RowCount, &inv.LastImportedRow, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

// GetInventory returns the inventory called name, or ErrInventoryNotFound.
func GetInventory(db DBExecutor, name string) (Inventory, error) {
	inv, err := scanInventory(db.QueryRow(`SELECT `+inventoryColumns+` FROM inventories WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return Inventory{}, errors.Wrap(ErrInventoryNotFound, name)
	}
	return inv, err
}

// CreateOrGetInventory returns the existing inventory called name or inserts an empty one.
func CreateOrGetInventory(db DBExecutor, name string) (Inventory, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Inventory{}, fmt.Errorf("inventory name must be non-empty")
	}

	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		inv, err := GetInventory(db, trimmed)
		if err == nil {
			return inv, nil
		}
		if errors.Cause(err) != ErrInventoryNotFound {
			return Inventory{}, err
		}

		_, err = db.Exec(`INSERT INTO inventories (name) VALUES (?)`, trimmed)
		if err != nil {
			// Another writer created it first; read it back.
			if isUniqueConstraintErr(err) {
				continue
			}
			return Inventory{}, err
		}
	}
	inv, err := GetInventory(db, trimmed)
	if err != nil {
		return Inventory{}, fmt.Errorf("could not create or get inventory after %d retries: %w", maxRetries, err)
	}
	return inv, nil
}

// ListInventories returns all inventories ordered by name.
func ListInventories(db DBExecutor) ([]Inventory, error) {
	rows, err := db.Query(`SELECT ` + inventoryColumns + ` FROM inventories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Inventory
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ResetInventory drops the stored rows of an inventory and records the header
// and checksum of the table about to be imported.
func ResetInventory(db DBExecutor, id int64, checksum string, header []string, rowCount int) error {
	if id <= 0 {
		return fmt.Errorf("inventory id must be positive")
	}
	stmts := []string{
		`DELETE FROM phoneme_values WHERE phoneme_id IN (SELECT id FROM phonemes WHERE inventory_id = ?)`,
		`DELETE FROM phonemes WHERE inventory_id = ?`,
		`DELETE FROM inventory_columns WHERE inventory_id = ?`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s, id); err != nil {
			return errors.Wrap(err, "clearing inventory")
		}
	}
	for pos, name := range header {
		if _, err := db.Exec(`INSERT INTO inventory_columns (inventory_id, position, name) VALUES (?, ?, ?)`, id, pos, name); err != nil {
			return errors.Wrapf(err, "storing column %q", name)
		}
	}
	_, err := db.Exec(`UPDATE inventories SET checksum = ?, row_count = ?, last_imported_row = -1, updated_at = ? WHERE id = ?`,
		checksum, rowCount, time.Now(), id)
	return err
}

// SavePhonemeRow stores one data row. cells includes the identifier at index 0.
func SavePhonemeRow(db DBExecutor, inventoryID int64, position int, cells []string, typ string) error {
	if inventoryID <= 0 {
		return fmt.Errorf("inventory id must be positive")
	}
	if len(cells) == 0 || strings.TrimSpace(cells[0]) == "" {
		return fmt.Errorf("row %d has no phoneme identifier", position)
	}

	var phonemeID int64
	err := db.QueryRow(`INSERT INTO phonemes (inventory_id, position, symbol, type)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(inventory_id, symbol) DO UPDATE SET
	  position = excluded.position,
	  type = excluded.type
	RETURNING id`, inventoryID, position, strings.TrimSpace(cells[0]), nullableString(typ)).Scan(&phonemeID)
	if err != nil {
		return errors.Wrapf(err, "upsert phoneme %s", cells[0])
	}

	for pos := 1; pos < len(cells); pos++ {
		_, err := db.Exec(`INSERT INTO phoneme_values (phoneme_id, position, value) VALUES (?, ?, ?)
		ON CONFLICT(phoneme_id, position) DO UPDATE SET value = excluded.value`, phonemeID, pos, cells[pos])
		if err != nil {
			return errors.Wrapf(err, "storing value %d of %s", pos, cells[0])
		}
	}
	return nil
}

// nullableString returns nil for "" else the value.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// GetInventoryProgress returns the last imported row index for an inventory.
func GetInventoryProgress(db DBExecutor, inventoryID int64) (int, error) {
	var index int
	err := db.QueryRow("SELECT last_imported_row FROM inventories WHERE id = ?", inventoryID).Scan(&index)
	if err != nil {
		return 0, err
	}
	return index, nil
}

// UpdateInventoryProgress updates the last imported row index.
func UpdateInventoryProgress(db DBExecutor, inventoryID int64, index int) error {
	_, err := db.Exec("UPDATE inventories SET last_imported_row = ?, updated_at = ? WHERE id = ?", index, time.Now(), inventoryID)
	return err
}

// LoadInventoryTable rebuilds the table snapshot of a fully imported inventory.
func LoadInventoryTable(db DBExecutor, name string) (*table.Table, error) {
	inv, err := GetInventory(db, name)
	if err != nil {
		return nil, err
	}
	if !inv.Complete() {
		return nil, errors.Errorf("inventory %s is partially imported (%d of %d rows)", name, inv.LastImportedRow+1, inv.RowCount)
	}

	header, err := loadColumns(db, inv.ID)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT p.id, p.symbol, v.position, v.value
	FROM phonemes p LEFT JOIN phoneme_values v ON v.phoneme_id = p.id
	WHERE p.inventory_id = ?
	ORDER BY p.position, v.position`, inv.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t := &table.Table{Header: header}
	var current []string
	var currentID int64
	for rows.Next() {
		var id int64
		var symbol string
		var pos sql.NullInt64
		var value sql.NullString
		if err := rows.Scan(&id, &symbol, &pos, &value); err != nil {
			return nil, err
		}
		if current == nil || id != currentID {
			current = make([]string, len(header))
			current[0] = symbol
			currentID = id
			t.Records = append(t.Records, current)
		}
		if pos.Valid && int(pos.Int64) < len(current) {
			current[pos.Int64] = value.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func loadColumns(db DBExecutor, inventoryID int64) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM inventory_columns WHERE inventory_id = ? ORDER BY position`, inventoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var header []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		header = append(header, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, errors.Errorf("inventory %d has no columns", inventoryID)
	}
	return header, nil
}

// RecordAnalysis appends a query to the history, assigning an ID when missing.
func RecordAnalysis(db DBExecutor, rec *AnalysisRecord) error {
	if rec.Kind != KindAnalyze && rec.Kind != KindFind {
		return fmt.Errorf("unknown analysis kind %q", rec.Kind)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	alphabet, err := json.Marshal(rec.Alphabet)
	if err != nil {
		return err
	}
	targets, err := json.Marshal(rec.Targets)
	if err != nil {
		return err
	}
	specs, err := json.Marshal(rec.Specs)
	if err != nil {
		return err
	}
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return err
	}

	_, err = db.Exec(`INSERT INTO analyses (id, inventory, kind, alphabet, targets, specs, result, message, solution_count, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Inventory, rec.Kind, string(alphabet), string(targets), string(specs), string(result), rec.Message, len(rec.Result), rec.CreatedAt)
	return errors.Wrap(err, "recording analysis")
}

// ListAnalyses returns the most recent history entries first. limit <= 0 means no limit.
func ListAnalyses(db DBExecutor, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT id, inventory, kind, alphabet, targets, specs, result, message, created_at
	FROM analyses ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		var alphabet, targets, specs, result, message sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Inventory, &rec.Kind, &alphabet, &targets, &specs, &result, &message, &rec.CreatedAt); err != nil {
			return nil, err
		}
		for _, f := range []struct {
			raw sql.NullString
			dst interface{}
		}{
			{alphabet, &rec.Alphabet},
			{targets, &rec.Targets},
			{specs, &rec.Specs},
			{result, &rec.Result},
		} {
			if f.raw.Valid && f.raw.String != "" {
				if err := json.Unmarshal([]byte(f.raw.String), f.dst); err != nil {
					return nil, errors.Wrapf(err, "decoding analysis %s", rec.ID)
				}
			}
		}
		rec.Message = message.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Source reads an imported inventory as a table.Source.
type Source struct {
	DB        *sql.DB
	Inventory string
}

func (s *Source) Name() string { return "db:" + s.Inventory }

func (s *Source) Load(ctx context.Context) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadInventoryTable(s.DB, s.Inventory)
}

// History records analyses into the analyses table.
type History struct {
	DB        *sql.DB
	Inventory string
}

func (h *History) RecordAnalysis(rec *AnalysisRecord) error {
	if rec.Inventory == "" {
		rec.Inventory = h.Inventory
	}
	return RecordAnalysis(h.DB, rec)
}

// SpecStrings renders feature specs the way the history stores them.
func SpecStrings(specs []phonology.FeatureSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Feature + "=" + s.Polarity.String()
	}
	return out
}
