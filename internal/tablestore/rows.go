package tablestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// InsertRow adds a row to a table. Every key of values must name a column
// of the table; columns left out are stored as NULL. The stored row is
// returned with its newly assigned row id.
func (s *Store) InsertRow(ctx context.Context, ref string, values map[string]any) (*Row, error) {
	const op = "insert_row"

	var row *Row
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		t, err := resolveTable(ctx, tx, op, ref)
		if err != nil {
			return err
		}
		qt, err := quoteIdent(t.Identifier)
		if err != nil {
			return invalidSchema(op, "%v", err)
		}

		cols, args, err := bindCells(op, t, values)
		if err != nil {
			return err
		}

		stmt := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", qt)
		if len(cols) > 0 {
			stmt = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
				qt, strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
		}

		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return storageError(op, "insert row", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storageError(op, "read row id", err)
		}

		row, err = readRow(ctx, tx, op, t, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("inserted row", "table", ref, "row_id", row.ID)
	return row, nil
}

// UpdateCell sets a single cell and returns the updated row.
func (s *Store) UpdateCell(ctx context.Context, ref string, id int64, column string, value any) (*Row, error) {
	const op = "update_cell"

	value, err := normalizeValue(op, value)
	if err != nil {
		return nil, err
	}

	var row *Row
	err = s.withTx(ctx, op, func(tx *sql.Tx) error {
		t, err := resolveTable(ctx, tx, op, ref)
		if err != nil {
			return err
		}
		c, ok := t.Column(column)
		if !ok {
			return unknownColumn(op, t.DisplayName, column)
		}
		qt, qc, err := quotePair(t.Identifier, c.Identifier)
		if err != nil {
			return invalidSchema(op, "%v", err)
		}

		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET %s = ? WHERE %q = ?", qt, qc, RowIDColumn), value, id)
		if err != nil {
			return storageError(op, "update cell", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(op, "row %d not found in table %q", id, t.DisplayName)
		}

		row, err = readRow(ctx, tx, op, t, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("updated cell", "table", ref, "row_id", id, "column", column)
	return row, nil
}

// DeleteRow removes a row. Its id is never handed out again.
func (s *Store) DeleteRow(ctx context.Context, ref string, id int64) error {
	const op = "delete_row"

	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		t, err := resolveTable(ctx, tx, op, ref)
		if err != nil {
			return err
		}
		qt, err := quoteIdent(t.Identifier)
		if err != nil {
			return invalidSchema(op, "%v", err)
		}

		res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %q = ?", qt, RowIDColumn), id)
		if err != nil {
			return storageError(op, "delete row", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(op, "row %d not found in table %q", id, t.DisplayName)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("deleted row", "table", ref, "row_id", id)
	return nil
}

// ReadTable returns all rows of a table in row id order, keeping only rows
// whose cells equal every filter value.
func (s *Store) ReadTable(ctx context.Context, ref string, filters Filters) (*Snapshot, error) {
	const op = "read_table"

	var snap *Snapshot
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		t, err := resolveTable(ctx, tx, op, ref)
		if err != nil {
			return err
		}
		qt, err := quoteIdent(t.Identifier)
		if err != nil {
			return invalidSchema(op, "%v", err)
		}

		where, args, err := buildWhere(op, t, filters)
		if err != nil {
			return err
		}

		query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %q", selectList(t), qt, where, RowIDColumn)
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return storageError(op, "query rows", err)
		}
		defer func() { _ = rows.Close() }()

		snap = &Snapshot{Table: t, Rows: []*Row{}}
		for rows.Next() {
			r, err := scanRow(rows, t)
			if err != nil {
				return storageError(op, "scan row", err)
			}
			snap.Rows = append(snap.Rows, r)
		}
		if err := rows.Err(); err != nil {
			return storageError(op, "query rows", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// GetRow returns a single row.
func (s *Store) GetRow(ctx context.Context, ref string, id int64) (*Row, error) {
	const op = "get_row"
	if s.db == nil {
		return nil, storageError(op, "use store", errNotOpened)
	}
	t, err := resolveTable(ctx, s.db, op, ref)
	if err != nil {
		return nil, err
	}
	return readRow(ctx, s.db, op, t, id)
}

// CountRows returns the number of rows in a table.
func (s *Store) CountRows(ctx context.Context, ref string) (int, error) {
	const op = "count_rows"
	if s.db == nil {
		return 0, storageError(op, "use store", errNotOpened)
	}
	t, err := resolveTable(ctx, s.db, op, ref)
	if err != nil {
		return 0, err
	}
	qt, err := quoteIdent(t.Identifier)
	if err != nil {
		return 0, invalidSchema(op, "%v", err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qt).Scan(&n); err != nil {
		return 0, storageError(op, "count rows", err)
	}
	return n, nil
}

// bindCells maps user-supplied keys onto quoted column identifiers.
// Keys are processed in sorted order so error messages are stable.
func bindCells(op string, t *Table, values map[string]any) ([]string, []any, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]string, len(keys))
	cols := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		c, ok := t.Column(k)
		if !ok {
			return nil, nil, unknownColumn(op, t.DisplayName, k)
		}
		if prev, dup := seen[c.Identifier]; dup {
			return nil, nil, invalidSchema(op, "keys %q and %q both name column %q", prev, k, c.Name)
		}
		seen[c.Identifier] = k

		qc, err := quoteIdent(c.Identifier)
		if err != nil {
			return nil, nil, invalidSchema(op, "%v", err)
		}
		v, err := normalizeValue(op, values[k])
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, qc)
		args = append(args, v)
	}
	return cols, args, nil
}

func buildWhere(op string, t *Table, filters Filters) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	var args []any
	for _, k := range keys {
		c, ok := t.Column(k)
		if !ok {
			return "", nil, unknownColumn(op, t.DisplayName, k)
		}
		qc, err := quoteIdent(c.Identifier)
		if err != nil {
			return "", nil, invalidSchema(op, "%v", err)
		}
		v, err := normalizeValue(op, filters[k])
		if err != nil {
			return "", nil, err
		}
		if v == nil {
			conds = append(conds, qc+" IS NULL")
			continue
		}
		conds = append(conds, qc+" = ?")
		args = append(args, v)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func selectList(t *Table) string {
	cols := make([]string, 0, len(t.Columns)+1)
	cols = append(cols, fmt.Sprintf("%q", RowIDColumn))
	for _, c := range t.Columns {
		cols = append(cols, fmt.Sprintf("%q", c.Identifier))
	}
	return strings.Join(cols, ", ")
}

func readRow(ctx context.Context, q querier, op string, t *Table, id int64) (*Row, error) {
	qt, err := quoteIdent(t.Identifier)
	if err != nil {
		return nil, invalidSchema(op, "%v", err)
	}

	rows, err := q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %q = ?", selectList(t), qt, RowIDColumn), id)
	if err != nil {
		return nil, storageError(op, "query row", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, storageError(op, "query row", err)
		}
		return nil, notFound(op, "row %d not found in table %q", id, t.DisplayName)
	}
	r, err := scanRow(rows, t)
	if err != nil {
		return nil, storageError(op, "scan row", err)
	}
	return r, nil
}

func scanRow(rows *sql.Rows, t *Table) (*Row, error) {
	values := make([]any, len(t.Columns))
	dest := make([]any, len(t.Columns)+1)
	r := &Row{Columns: t.ColumnNames(), Values: values}
	dest[0] = &r.ID
	for i := range values {
		dest[i+1] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return r, nil
}

var errUnsupportedValue = errors.New("unsupported value type")

// normalizeValue narrows a cell value to the types SQLite stores natively.
func normalizeValue(op string, v any) (any, error) {
	switch x := v.(type) {
	case nil, string, int64, float64:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case []byte:
		return string(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		if f, err := x.Float64(); err == nil {
			return f, nil
		}
		return x.String(), nil
	default:
		return nil, &Error{Kind: ErrInvalidSchema, Op: op, Msg: fmt.Sprintf("cannot store value of type %T", v), Err: errUnsupportedValue}
	}
}
