package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
)

// ErrSchemaMismatch reports records whose field sets disagree within one
// run. It aborts metadata serialization only; raster export is unaffected.
var ErrSchemaMismatch = errors.New("metadata schema mismatch")

// WriteCSV serializes records to path, overwriting any existing file.
// The header comes from the first record; every subsequent record must
// carry the identical field set or the write fails with ErrSchemaMismatch.
//
// The boolean is the user-visible outcome: (false, nil) means "nothing
// to export", a normal result for an empty run. An I/O or schema failure
// returns (false, err) so the caller can log the cause.
func WriteCSV(records []*Record, path string) (bool, error) {
	if len(records) == 0 {
		return false, nil
	}

	schema := records[0].Fields()
	rows := make([][]string, 0, len(records))
	for i, r := range records {
		row, err := r.row(schema)
		if err != nil {
			return false, fmt.Errorf("%w: record %d: %v", ErrSchemaMismatch, i, err)
		}
		rows = append(rows, row)
	}

	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(schema); err != nil {
		return false, fmt.Errorf("writing header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return false, fmt.Errorf("writing rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return false, fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("closing %s: %w", path, err)
	}
	return true, nil
}
