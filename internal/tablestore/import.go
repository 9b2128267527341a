package tablestore

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ImportCSV creates a table named name from CSV data. The first record is
// the header; column types are inferred from the data. Creation and all
// inserts happen in one transaction. It returns the new table and the
// number of rows loaded.
func (s *Store) ImportCSV(ctx context.Context, name string, r io.Reader) (*Table, int, error) {
	const op = "import_csv"

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, 0, &Error{Kind: ErrInvalidSchema, Op: op, Msg: "malformed csv", Err: err}
	}
	if len(records) == 0 {
		return nil, 0, invalidSchema(op, "csv has no header row")
	}

	header, body := records[0], records[1:]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for _, rec := range body {
		if len(rec) > len(header) {
			return nil, 0, invalidSchema(op, "record has %d fields, header has %d", len(rec), len(header))
		}
	}

	specs := make([]ColumnSpec, len(header))
	for i, h := range header {
		specs[i] = ColumnSpec{Name: h, Type: inferType(body, i)}
	}

	var t *Table
	err = s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		t, err = s.createTable(ctx, tx, op, name, specs)
		if err != nil {
			return err
		}

		qt, err := quoteIdent(t.Identifier)
		if err != nil {
			return invalidSchema(op, "%v", err)
		}
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			if cols[i], err = quoteIdent(c.Identifier); err != nil {
				return invalidSchema(op, "%v", err)
			}
		}

		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			qt, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")))
		if err != nil {
			return storageError(op, "prepare insert", err)
		}
		defer func() { _ = stmt.Close() }()

		args := make([]any, len(cols))
		for _, rec := range body {
			for i, c := range t.Columns {
				args[i] = nil
				if i < len(rec) {
					args[i] = parseCell(rec[i], c.Type)
				}
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return storageError(op, "insert row", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	s.logger.Debug("imported table", "identifier", t.Identifier, "rows", len(body))
	return t, len(body), nil
}

// inferType picks integer when every non-empty value parses as one, real
// when every non-empty value is numeric, and text otherwise.
func inferType(records [][]string, col int) ColumnType {
	typ := ColumnType("")
	for _, rec := range records {
		if col >= len(rec) {
			continue
		}
		v := strings.TrimSpace(rec[col])
		if v == "" {
			continue
		}
		switch {
		case isInt(v):
			if typ == "" {
				typ = TypeInteger
			}
		case isFloat(v):
			typ = TypeReal
		default:
			return TypeText
		}
	}
	if typ == "" {
		return TypeText
	}
	return typ
}

func parseCell(v string, typ ColumnType) any {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	switch typ {
	case TypeInteger:
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return i
		}
	case TypeReal:
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f
		}
	}
	return v
}

func isInt(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}

// isFloat rejects the NaN and Inf spellings strconv accepts.
func isFloat(v string) bool {
	if strings.ContainsAny(v, "nNiI") {
		return false
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}
