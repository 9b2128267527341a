// Package session holds the per-caller navigation state on top of a
// tablestore.Store: which table is active, and where exports go by default.
//
// The store itself never tracks a current table. Every Session method that
// takes a table reference falls back to the active table when the
// reference is empty.
package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/leapstack-labs/leapsheet/internal/config"
	"github.com/leapstack-labs/leapsheet/internal/tablestore"
)

// Session is safe for concurrent use; the HTTP endpoint shares one.
type Session struct {
	store     *tablestore.Store
	exportDir string
	logger    *slog.Logger

	mu     sync.RWMutex
	active string // storage identifier, "" when nothing is selected
}

// Option configures a Session.
type Option func(*Session)

// WithExportDir sets the directory used when an export has no explicit path.
func WithExportDir(dir string) Option {
	return func(s *Session) {
		if dir != "" {
			s.exportDir = dir
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a session over store with nothing selected.
func New(store *tablestore.Store, opts ...Option) *Session {
	s := &Session{
		store:     store,
		exportDir: config.DefaultExportDir,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying table store.
func (s *Session) Store() *tablestore.Store {
	return s.store
}

// ExportDir returns the default export directory.
func (s *Session) ExportDir() string {
	return s.exportDir
}

// Active returns the identifier of the active table, or "".
func (s *Session) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Session) setActive(id string) {
	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
}

// Target returns ref, or the active table identifier when ref is empty.
func (s *Session) Target(ref string) string {
	if ref != "" {
		return ref
	}
	return s.Active()
}

// ActiveTable returns the catalog entry of the active table.
func (s *Session) ActiveTable(ctx context.Context) (*tablestore.Table, error) {
	return s.store.ResolveTable(ctx, s.Active())
}

// Tables lists every catalogued table.
func (s *Session) Tables(ctx context.Context) ([]*tablestore.Table, error) {
	return s.store.ListTables(ctx)
}

// CreateTable creates a table and makes it active.
func (s *Session) CreateTable(ctx context.Context, name string, columns []tablestore.ColumnSpec) (*tablestore.Table, error) {
	t, err := s.store.CreateTable(ctx, name, columns)
	if err != nil {
		return nil, err
	}
	s.setActive(t.Identifier)
	return t, nil
}

// Switch makes the table ref points at active.
func (s *Session) Switch(ctx context.Context, ref string) (*tablestore.Table, error) {
	t, err := s.store.ResolveTable(ctx, ref)
	if err != nil {
		return nil, err
	}
	s.setActive(t.Identifier)
	s.logger.Debug("switched table", "identifier", t.Identifier)
	return t, nil
}

// AutoSelect activates the first catalogued table when nothing is active.
// It returns the active table, or nil when the catalog is empty.
func (s *Session) AutoSelect(ctx context.Context) (*tablestore.Table, error) {
	if id := s.Active(); id != "" {
		if t, err := s.store.ResolveTable(ctx, id); err == nil {
			return t, nil
		}
	}
	tables, err := s.store.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		s.setActive("")
		return nil, nil
	}
	s.setActive(tables[0].Identifier)
	return tables[0], nil
}

// AddColumn adds a column to ref (or the active table).
func (s *Session) AddColumn(ctx context.Context, ref string, spec tablestore.ColumnSpec, def any) (*tablestore.Table, error) {
	return s.store.AddColumn(ctx, s.Target(ref), spec, def)
}

// DeleteColumn removes a column from ref (or the active table).
func (s *Session) DeleteColumn(ctx context.Context, ref, column string) (*tablestore.Table, error) {
	return s.store.DeleteColumn(ctx, s.Target(ref), column)
}

// InsertRow inserts a row into ref (or the active table).
func (s *Session) InsertRow(ctx context.Context, ref string, values map[string]any) (*tablestore.Row, error) {
	return s.store.InsertRow(ctx, s.Target(ref), values)
}

// UpdateCell sets one cell of ref (or the active table).
func (s *Session) UpdateCell(ctx context.Context, ref string, id int64, column string, value any) (*tablestore.Row, error) {
	return s.store.UpdateCell(ctx, s.Target(ref), id, column, value)
}

// DeleteRow deletes a row of ref (or the active table).
func (s *Session) DeleteRow(ctx context.Context, ref string, id int64) error {
	return s.store.DeleteRow(ctx, s.Target(ref), id)
}

// Row fetches one row of ref (or the active table).
func (s *Session) Row(ctx context.Context, ref string, id int64) (*tablestore.Row, error) {
	return s.store.GetRow(ctx, s.Target(ref), id)
}

// Read snapshots ref (or the active table).
func (s *Session) Read(ctx context.Context, ref string, filters tablestore.Filters) (*tablestore.Snapshot, error) {
	return s.store.ReadTable(ctx, s.Target(ref), filters)
}

// Export writes ref (or the active table) as CSV. An empty path exports to
// <export dir>/<identifier>.csv.
func (s *Session) Export(ctx context.Context, ref, path string, opts tablestore.ExportOptions) (*tablestore.ExportResult, error) {
	target := s.Target(ref)
	if path == "" {
		t, err := s.store.ResolveTable(ctx, target)
		if err != nil {
			return nil, err
		}
		path = s.DefaultExportPath(t)
		target = t.Identifier
	}
	return s.store.ExportCSV(ctx, target, path, opts)
}

// DefaultExportPath is where Export writes t when no path is given.
func (s *Session) DefaultExportPath(t *tablestore.Table) string {
	return filepath.Join(s.exportDir, t.Identifier+".csv")
}

// Import loads CSV data into a new table and makes it active.
func (s *Session) Import(ctx context.Context, name string, r io.Reader) (*tablestore.Table, int, error) {
	t, n, err := s.store.ImportCSV(ctx, name, r)
	if err != nil {
		return nil, 0, err
	}
	s.setActive(t.Identifier)
	return t, n, nil
}

// Rename renames ref (or the active table). The active selection follows
// the table to its new identifier.
func (s *Session) Rename(ctx context.Context, ref, newName string) (*tablestore.Table, error) {
	old, err := s.store.ResolveTable(ctx, s.Target(ref))
	if err != nil {
		return nil, err
	}
	t, err := s.store.RenameTable(ctx, old.Identifier, newName)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.active == old.Identifier {
		s.active = t.Identifier
	}
	s.mu.Unlock()
	return t, nil
}

// Delete drops ref (or the active table). Deleting the active table clears
// the selection.
func (s *Session) Delete(ctx context.Context, ref string) (*tablestore.Table, error) {
	t, err := s.store.DeleteTable(ctx, s.Target(ref))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.active == t.Identifier {
		s.active = ""
	}
	s.mu.Unlock()
	return t, nil
}
