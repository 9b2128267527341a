package tablestore

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ExportCSV writes a table to path: a header of column display names,
// then every row in row id order. An existing file at path is replaced
// atomically; a failed export leaves it untouched.
func (s *Store) ExportCSV(ctx context.Context, ref, path string, opts ExportOptions) (*ExportResult, error) {
	const op = "export_csv"

	if path == "" {
		return nil, &Error{Kind: ErrStorage, Op: op, Msg: "export path must not be empty"}
	}

	snap, err := s.ReadTable(ctx, ref, nil)
	if err != nil {
		return nil, err
	}

	if err := writeCSVFile(path, snap, opts); err != nil {
		return nil, storageError(op, "write "+path, err)
	}

	s.logger.Debug("exported table", "table", snap.Table.Identifier, "path", path, "rows", len(snap.Rows))
	return &ExportResult{Path: path, Rows: len(snap.Rows)}, nil
}

func writeCSVFile(path string, snap *Snapshot, opts ExportOptions) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	w := csv.NewWriter(f)

	header := snap.Table.ColumnNames()
	if opts.IncludeRowID {
		header = append([]string{RowIDColumn}, header...)
	}
	if err = w.Write(header); err != nil {
		return err
	}

	record := make([]string, len(header))
	for _, r := range snap.Rows {
		i := 0
		if opts.IncludeRowID {
			record[0] = fmt.Sprint(r.ID)
			i = 1
		}
		for j, v := range r.Values {
			record[i+j] = FormatValue(v)
		}
		if err = w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	if err = w.Error(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
