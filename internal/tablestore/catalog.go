package tablestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ListTables returns every catalog entry in creation order.
func (s *Store) ListTables(ctx context.Context) ([]*Table, error) {
	if s.db == nil {
		return nil, storageError("list_tables", "use store", errNotOpened)
	}
	return listTables(ctx, s.db, "list_tables")
}

// ResolveTable finds the table a user-supplied reference points at.
// Display names match case-insensitively; storage identifiers are tried
// second, both verbatim and sanitized.
func (s *Store) ResolveTable(ctx context.Context, ref string) (*Table, error) {
	if s.db == nil {
		return nil, storageError("resolve_table", "use store", errNotOpened)
	}
	return resolveTable(ctx, s.db, "resolve_table", ref)
}

// CreateTable creates a table named name with the given columns and
// returns its catalog entry. When the sanitized name is already in use a
// numeric suffix (_2, _3, ...) is appended.
func (s *Store) CreateTable(ctx context.Context, name string, specs []ColumnSpec) (*Table, error) {
	const op = "create_table"

	var t *Table
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		t, err = s.createTable(ctx, tx, op, name, specs)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("created table", "name", t.DisplayName, "identifier", t.Identifier, "columns", len(t.Columns))
	return t, nil
}

func (s *Store) createTable(ctx context.Context, tx *sql.Tx, op, name string, specs []ColumnSpec) (*Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalidSchema(op, "table name must not be empty")
	}

	columns, err := buildColumns(op, specs)
	if err != nil {
		return nil, err
	}

	taken, err := takenIdentifiers(ctx, tx, op)
	if err != nil {
		return nil, err
	}
	id := tableIdentifier(name, taken)

	qt, err := quoteIdent(id)
	if err != nil {
		return nil, invalidSchema(op, "%v", err)
	}

	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, fmt.Sprintf("%q INTEGER PRIMARY KEY AUTOINCREMENT", RowIDColumn))
	for _, c := range columns {
		qc, err := quoteIdent(c.Identifier)
		if err != nil {
			return nil, invalidSchema(op, "%v", err)
		}
		defs = append(defs, qc+" "+c.Type.SQL())
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", qt, strings.Join(defs, ",\n    "))
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return nil, storageError(op, "create table", err)
	}

	t := &Table{
		DisplayName: name,
		Identifier:  id,
		Columns:     columns,
		CreatedAt:   s.now(),
	}

	schema, err := json.Marshal(t.Columns)
	if err != nil {
		return nil, storageError(op, "encode column schema", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO _catalog (identifier, display_name, columns, created_at) VALUES (?, ?, ?, ?)`,
		t.Identifier, t.DisplayName, string(schema), t.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, storageError(op, "insert catalog entry", err)
	}

	return t, nil
}

// AddColumn appends a column to a table. Existing rows receive def.
func (s *Store) AddColumn(ctx context.Context, ref string, spec ColumnSpec, def any) (*Table, error) {
	const op = "add_column"

	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, invalidSchema(op, "column name must not be empty")
	}
	def, err := normalizeValue(op, def)
	if err != nil {
		return nil, err
	}

	var t *Table
	err = s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		t, err = resolveTable(ctx, tx, op, ref)
		if err != nil {
			return err
		}
		for _, c := range t.Columns {
			if equalFold(c.Name, name) {
				return invalidSchema(op, "column %q already exists in table %q", c.Name, t.DisplayName)
			}
		}

		col := Column{
			Name:       name,
			Type:       ParseColumnType(string(spec.Type)),
			Identifier: uniqueIdentifier(sanitizeOr(name, "column"), columnTaken(t.Columns)),
		}

		qt, qc, err := quotePair(t.Identifier, col.Identifier)
		if err != nil {
			return invalidSchema(op, "%v", err)
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", qt, qc, col.Type.SQL())); err != nil {
			return storageError(op, "add column", err)
		}
		if def != nil {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s = ?", qt, qc), def); err != nil {
				return storageError(op, "backfill column", err)
			}
		}

		t.Columns = append(t.Columns, col)
		return saveColumns(ctx, tx, op, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("added column", "table", t.Identifier, "column", name)
	return t, nil
}

// DeleteColumn removes a column and its data. The last column of a table
// cannot be removed.
func (s *Store) DeleteColumn(ctx context.Context, ref, column string) (*Table, error) {
	const op = "delete_column"

	var t *Table
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		t, err = resolveTable(ctx, tx, op, ref)
		if err != nil {
			return err
		}
		i, ok := t.column(column)
		if !ok {
			return unknownColumn(op, t.DisplayName, column)
		}
		if len(t.Columns) == 1 {
			return invalidSchema(op, "cannot delete %q, the only column of table %q", t.Columns[i].Name, t.DisplayName)
		}

		qt, qc, err := quotePair(t.Identifier, t.Columns[i].Identifier)
		if err != nil {
			return invalidSchema(op, "%v", err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", qt, qc)); err != nil {
			return storageError(op, "drop column", err)
		}

		t.Columns = append(t.Columns[:i:i], t.Columns[i+1:]...)
		return saveColumns(ctx, tx, op, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("deleted column", "table", t.Identifier, "column", column)
	return t, nil
}

// RenameTable gives a table a new display name. The storage identifier is
// re-derived from the new name and the physical table renamed with it.
func (s *Store) RenameTable(ctx context.Context, ref, newName string) (*Table, error) {
	const op = "rename_table"

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, invalidSchema(op, "table name must not be empty")
	}

	var t *Table
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		t, err = resolveTable(ctx, tx, op, ref)
		if err != nil {
			return err
		}

		oldID := t.Identifier
		taken, err := takenIdentifiers(ctx, tx, op)
		if err != nil {
			return err
		}
		// The table's own identifier is free for it to keep.
		delete(taken, strings.ToLower(oldID))
		newID := tableIdentifier(newName, taken)

		if newID != oldID {
			qOld, qNew, err := quotePair(oldID, newID)
			if err != nil {
				return invalidSchema(op, "%v", err)
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", qOld, qNew)); err != nil {
				return storageError(op, "rename table", err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE _catalog SET identifier = ?, display_name = ? WHERE identifier = ?`,
			newID, newName, oldID,
		)
		if err != nil {
			return storageError(op, "update catalog entry", err)
		}

		t.Identifier = newID
		t.DisplayName = newName
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("renamed table", "identifier", t.Identifier, "name", t.DisplayName)
	return t, nil
}

// DeleteTable drops a table and its catalog entry.
func (s *Store) DeleteTable(ctx context.Context, ref string) (*Table, error) {
	const op = "delete_table"

	var t *Table
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		t, err = resolveTable(ctx, tx, op, ref)
		if err != nil {
			return err
		}
		qt, err := quoteIdent(t.Identifier)
		if err != nil {
			return invalidSchema(op, "%v", err)
		}
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+qt); err != nil {
			return storageError(op, "drop table", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM _catalog WHERE identifier = ?`, t.Identifier); err != nil {
			return storageError(op, "delete catalog entry", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("deleted table", "identifier", t.Identifier)
	return t, nil
}

// buildColumns validates requested columns and assigns physical identifiers.
func buildColumns(op string, specs []ColumnSpec) ([]Column, error) {
	if len(specs) == 0 {
		return nil, invalidSchema(op, "at least one column is required")
	}

	columns := make([]Column, 0, len(specs))
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, invalidSchema(op, "column name must not be empty")
		}
		for _, c := range columns {
			if equalFold(c.Name, name) {
				return nil, invalidSchema(op, "duplicate column %q", name)
			}
		}
		columns = append(columns, Column{
			Name:       name,
			Type:       ParseColumnType(string(spec.Type)),
			Identifier: uniqueIdentifier(sanitizeOr(name, "column"), columnTaken(columns)),
		})
	}
	return columns, nil
}

// columnTaken reports identifiers already used by cols or reserved for row ids.
func columnTaken(cols []Column) func(string) bool {
	return func(id string) bool {
		if id == RowIDColumn {
			return true
		}
		for _, c := range cols {
			if c.Identifier == id {
				return true
			}
		}
		return false
	}
}

// takenIdentifiers returns every object name in the database, so derived
// identifiers never collide with tables the catalog does not know about.
func takenIdentifiers(ctx context.Context, q querier, op string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM sqlite_master`)
	if err != nil {
		return nil, storageError(op, "list database objects", err)
	}
	defer func() { _ = rows.Close() }()

	taken := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storageError(op, "scan database object", err)
		}
		taken[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(op, "list database objects", err)
	}
	return taken, nil
}

func listTables(ctx context.Context, q querier, op string) ([]*Table, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT identifier, display_name, columns, created_at FROM _catalog ORDER BY seq`,
	)
	if err != nil {
		return nil, storageError(op, "list tables", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []*Table
	for rows.Next() {
		t := &Table{}
		var schema, created string
		if err := rows.Scan(&t.Identifier, &t.DisplayName, &schema, &created); err != nil {
			return nil, storageError(op, "scan catalog entry", err)
		}
		if err := json.Unmarshal([]byte(schema), &t.Columns); err != nil {
			return nil, storageError(op, "decode column schema", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			t.CreatedAt = ts
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(op, "list tables", err)
	}
	return tables, nil
}

func resolveTable(ctx context.Context, q querier, op, ref string) (*Table, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, notFound(op, "no table selected")
	}

	tables, err := listTables(ctx, q, op)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if equalFold(t.DisplayName, ref) {
			return t, nil
		}
	}
	id := Sanitize(ref)
	for _, t := range tables {
		if t.Identifier == ref || (id != "" && t.Identifier == id) {
			return t, nil
		}
	}
	return nil, notFound(op, "table %q not found", ref)
}

func saveColumns(ctx context.Context, tx *sql.Tx, op string, t *Table) error {
	schema, err := json.Marshal(t.Columns)
	if err != nil {
		return storageError(op, "encode column schema", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE _catalog SET columns = ? WHERE identifier = ?`, string(schema), t.Identifier)
	if err != nil {
		return storageError(op, "update catalog entry", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(op, "table %q not found", t.DisplayName)
	}
	return nil
}

func quotePair(a, b string) (string, string, error) {
	qa, err := quoteIdent(a)
	if err != nil {
		return "", "", err
	}
	qb, err := quoteIdent(b)
	if err != nil {
		return "", "", err
	}
	return qa, qb, nil
}
