package ingest

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/nowemoore/phonology-app/pkg/db"
	"github.com/nowemoore/phonology-app/pkg/phonology"
	"github.com/nowemoore/phonology-app/pkg/table"
	"github.com/nowemoore/phonology-app/pkg/workerpool"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Runner abstracts the worker pool so tests can inject failing implementations.
type Runner interface {
	Start(ctx context.Context)
	Submit(workerpool.Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job workerpool.Job) error
	Close()
}

// Importer copies feature tables into the database, one inventory per table.
// An interrupted import resumes from its last committed row when the same
// table is imported again; a changed table starts over.
type Importer struct {
	DB        *sql.DB
	BatchSize int
	// OnProgress is called with the number of rows handed to the writer and the total.
	OnProgress func(current, total int)

	Workers int

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) Runner
}

// NewImporter creates an Importer with default batching and concurrency.
func NewImporter(conn *sql.DB) *Importer {
	return &Importer{
		DB:        conn,
		BatchSize: 50,
		Workers:   4,
	}
}

// Report summarizes one Import call.
type Report struct {
	Inventory db.Inventory
	// Imported is the number of rows committed by this call.
	Imported int
	// Resumed is true when earlier progress on the same table was reused.
	Resumed bool
	// Unchanged is true when the inventory already held this exact table.
	Unchanged bool
}

// normalizedRow is a data row in canonical form, ready to be written.
type normalizedRow struct {
	Index int
	Cells []string
	Type  string
}

// Import validates tbl and stores it as the inventory called name.
func (im *Importer) Import(ctx context.Context, name string, tbl *table.Table) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	// Refuse anything that would not load back as a matrix.
	m, err := tbl.Matrix()
	if err != nil {
		return Report{}, err
	}

	inv, err := db.CreateOrGetInventory(im.DB, name)
	if err != nil {
		return Report{}, err
	}

	total := len(tbl.Records)
	checksum := tbl.Checksum()
	report := Report{}
	if inv.Checksum != checksum {
		if err := im.reset(ctx, inv.ID, checksum, tbl.Header, total); err != nil {
			return Report{}, err
		}
		inv.LastImportedRow = -1
	} else if inv.LastImportedRow >= 0 {
		report.Resumed = true
		klog.V(1).Infof("import %s: resuming from row %d of %d", name, inv.LastImportedRow+1, total)
	}

	startIdx := inv.LastImportedRow + 1
	if startIdx >= total {
		report.Unchanged = true
		report.Inventory, err = db.GetInventory(im.DB, name)
		return report, err
	}

	imported, err := im.run(ctx, inv.ID, m, tbl, startIdx)
	report.Imported = imported
	if err != nil {
		return report, err
	}
	report.Inventory, err = db.GetInventory(im.DB, name)
	return report, err
}

func (im *Importer) reset(ctx context.Context, id int64, checksum string, header []string, total int) error {
	tx, err := im.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin reset tx")
	}
	defer func() { _ = tx.Rollback() }()
	if err := db.ResetInventory(tx, id, checksum, header, total); err != nil {
		return err
	}
	return tx.Commit()
}

// run normalizes rows on the worker pool and writes them in index order, so
// the progress checkpoint always marks a contiguous prefix of the table.
func (im *Importer) run(ctx context.Context, inventoryID int64, m *phonology.Matrix, tbl *table.Table, startIdx int) (int, error) {
	workers := im.Workers
	if workers <= 0 {
		workers = 1
	}
	total := len(tbl.Records)

	var wp Runner
	if im.PoolFactory != nil {
		wp = im.PoolFactory(workers, workers*2)
	} else {
		wp = workerpool.New(workers, workers*2)
	}
	resultCh := make(chan normalizedRow, workers*2)
	doneCh := make(chan error, 1)

	bw := NewBatchWriter(im.DB, im.BatchSize, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp.Start(ctx)

	go func() {
		defer close(doneCh)
		buffer := make(map[int]normalizedRow)
		nextIdx := startIdx
		for res := range resultCh {
			buffer[res.Index] = res
			for {
				item, ok := buffer[nextIdx]
				if !ok {
					break
				}
				delete(buffer, nextIdx)

				err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
					if err := db.SavePhonemeRow(tx, inventoryID, item.Index, item.Cells, item.Type); err != nil {
						return err
					}
					return db.UpdateInventoryProgress(tx, inventoryID, item.Index)
				})
				if err != nil {
					cancel()
					doneCh <- err
					// Drain so producers never block on a full channel.
					for range resultCh {
					}
					return
				}
				if im.OnProgress != nil {
					im.OnProgress(nextIdx+1, total)
				}
				nextIdx++
			}
		}
		doneCh <- nil
	}()

	typeCol := -1
	for i, h := range tbl.Header {
		if i > 0 && phonology.IsReserved(h) {
			typeCol = i
		}
	}
	header := tbl.Header

	var submitErr error
	for i := startIdx; i < total; i++ {
		if ctx.Err() != nil {
			break
		}
		idx := i
		rec := tbl.Records[i]
		job := func(ctx context.Context) error {
			res := normalize(idx, rec, header, typeCol, m)
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return nil
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			if err != ctx.Err() && err != workerpool.ErrPoolClosed {
				submitErr = err
			}
			break
		}
	}

	// All jobs have finished once Close returns, so no more sends can happen.
	wp.Close()
	close(resultCh)
	consumerErr := <-doneCh

	closeErr := bw.Close()
	imported := bw.Committed()

	switch {
	case submitErr != nil:
		return imported, submitErr
	case consumerErr != nil:
		return imported, consumerErr
	case closeErr != nil:
		return imported, closeErr
	}
	if imported < total-startIdx {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
	}
	klog.V(1).Infof("import: committed %d rows", imported)
	return imported, nil
}

// normalize rewrites a record in canonical form: trimmed identifier and type,
// feature values re-encoded from the validated matrix.
func normalize(index int, rec, header []string, typeCol int, m *phonology.Matrix) normalizedRow {
	id := strings.TrimSpace(rec[0])
	cells := make([]string, len(rec))
	cells[0] = id
	typ := ""
	for col := 1; col < len(rec); col++ {
		if col == typeCol {
			typ = strings.TrimSpace(rec[col])
			cells[col] = typ
			continue
		}
		v, _ := m.Value(id, strings.TrimSpace(header[col]))
		cells[col] = v.Encode()
	}
	return normalizedRow{Index: index, Cells: cells, Type: typ}
}
