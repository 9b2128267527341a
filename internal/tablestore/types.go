package tablestore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ColumnType is the declared type of a column.
type ColumnType string

// Supported column types. SQLite applies them as type affinities.
const (
	TypeText    ColumnType = "text"
	TypeInteger ColumnType = "integer"
	TypeReal    ColumnType = "real"
)

// ParseColumnType maps free-form type names onto the closed set of column
// types. Anything unrecognised, including the empty string, is text.
func ParseColumnType(s string) ColumnType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int", "integer", "bigint", "smallint", "bool", "boolean":
		return TypeInteger
	case "real", "float", "double", "number", "numeric", "decimal", "money", "currency":
		return TypeReal
	default:
		return TypeText
	}
}

// SQL returns the SQLite type name used in DDL.
func (t ColumnType) SQL() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

// ColumnSpec is a requested column: a display name and a type.
type ColumnSpec struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// ParseColumnSpec parses "name" or "name:type".
func ParseColumnSpec(s string) ColumnSpec {
	name, typ, _ := strings.Cut(s, ":")
	return ColumnSpec{Name: strings.TrimSpace(name), Type: ParseColumnType(typ)}
}

// Column is a column of a catalogued table.
type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"type"`
	Identifier string     `json:"identifier"`
}

// Table is a catalog entry.
type Table struct {
	DisplayName string    `json:"display_name"`
	Identifier  string    `json:"identifier"`
	Columns     []Column  `json:"columns"`
	CreatedAt   time.Time `json:"created_at"`
}

// ColumnNames returns the display names of the table's columns in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// column finds a column by display name (case-insensitive), falling back to
// the physical identifier.
func (t *Table) column(ref string) (int, bool) {
	for i, c := range t.Columns {
		if equalFold(c.Name, ref) {
			return i, true
		}
	}
	id := Sanitize(ref)
	for i, c := range t.Columns {
		if c.Identifier == ref || (id != "" && c.Identifier == id) {
			return i, true
		}
	}
	return -1, false
}

// Column returns the column named ref.
func (t *Table) Column(ref string) (Column, bool) {
	i, ok := t.column(ref)
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// Row is a single record. Values are ordered like the owning table's
// columns at read time.
type Row struct {
	ID      int64    `json:"row_id"`
	Columns []string `json:"-"`
	Values  []any    `json:"-"`
}

// Get returns the value of the named column (case-insensitive).
func (r *Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if equalFold(c, column) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row's cells keyed by column display name.
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// MarshalJSON renders the row as {"row_id": n, "cells": {...}}.
func (r *Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID    int64          `json:"row_id"`
		Cells map[string]any `json:"cells"`
	}{r.ID, r.Map()})
}

// Snapshot is a materialized read of a table.
type Snapshot struct {
	Table *Table `json:"table"`
	Rows  []*Row `json:"rows"`
}

// Filters are equality filters keyed by column name. A nil value matches NULL.
type Filters map[string]any

// ExportOptions tunes ExportCSV.
type ExportOptions struct {
	// IncludeRowID prepends a row_id column.
	IncludeRowID bool
}

// ExportResult describes a finished export.
type ExportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// FormatValue renders a cell value as plain text. NULL becomes "".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return formatFloat(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
