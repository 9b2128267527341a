package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"github.com/leapstack-labs/leapsheet/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestSession(t *testing.T) *Session {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	store := tablestore.NewStore(tablestore.WithLogger(logger))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return New(store, WithExportDir(t.TempDir()), WithLogger(logger))
}

func TestSession_StartsUnselected(t *testing.T) {
	s := setupTestSession(t)
	assert.Equal(t, "", s.Active())

	_, err := s.InsertRow(context.Background(), "", map[string]any{"a": 1})
	assert.ErrorIs(t, err, tablestore.ErrNotFound)
}

func TestSession_CreateSetsActive(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	_, err := s.CreateTable(ctx, "Reading List", []tablestore.ColumnSpec{{Name: "title"}, {Name: "status"}})
	require.NoError(t, err)
	assert.Equal(t, "reading_list", s.Active())

	// Operations without a table go to the active one.
	row, err := s.InsertRow(ctx, "", map[string]any{"title": "Dune", "status": "reading"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.ID)

	_, err = s.CreateTable(ctx, "Groceries", []tablestore.ColumnSpec{{Name: "item"}})
	require.NoError(t, err)
	assert.Equal(t, "groceries", s.Active())

	_, err = s.InsertRow(ctx, "", map[string]any{"title": "Emma"})
	assert.ErrorIs(t, err, tablestore.ErrUnknownColumn)
}

func TestSession_Switch(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	_, err := s.CreateTable(ctx, "Reading List", []tablestore.ColumnSpec{{Name: "title"}})
	require.NoError(t, err)
	_, err = s.CreateTable(ctx, "Groceries", []tablestore.ColumnSpec{{Name: "item"}})
	require.NoError(t, err)

	tbl, err := s.Switch(ctx, "reading list")
	require.NoError(t, err)
	assert.Equal(t, "Reading List", tbl.DisplayName)
	assert.Equal(t, "reading_list", s.Active())

	_, err = s.Switch(ctx, "movies")
	assert.ErrorIs(t, err, tablestore.ErrNotFound)
	assert.Equal(t, "reading_list", s.Active(), "failed switch keeps the selection")

	active, err := s.ActiveTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reading_list", active.Identifier)
}

func TestSession_AutoSelect(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	tbl, err := s.AutoSelect(ctx)
	require.NoError(t, err)
	assert.Nil(t, tbl)

	_, err = s.Store().CreateTable(ctx, "First", []tablestore.ColumnSpec{{Name: "a"}})
	require.NoError(t, err)
	_, err = s.Store().CreateTable(ctx, "Second", []tablestore.ColumnSpec{{Name: "a"}})
	require.NoError(t, err)

	tbl, err = s.AutoSelect(ctx)
	require.NoError(t, err)
	require.NotNil(t, tbl)
	assert.Equal(t, "first", s.Active())

	_, err = s.Switch(ctx, "second")
	require.NoError(t, err)
	tbl, err = s.AutoSelect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", tbl.Identifier, "an existing selection is kept")
}

func TestSession_RenameFollowsActive(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	_, err := s.CreateTable(ctx, "Reading List", []tablestore.ColumnSpec{{Name: "title"}})
	require.NoError(t, err)

	tbl, err := s.Rename(ctx, "", "Books")
	require.NoError(t, err)
	assert.Equal(t, "books", tbl.Identifier)
	assert.Equal(t, "books", s.Active())
}

func TestSession_DeleteClearsActive(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	_, err := s.CreateTable(ctx, "Keep", []tablestore.ColumnSpec{{Name: "a"}})
	require.NoError(t, err)
	_, err = s.CreateTable(ctx, "Drop", []tablestore.ColumnSpec{{Name: "a"}})
	require.NoError(t, err)

	_, err = s.Delete(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "drop", s.Active())

	_, err = s.Delete(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "", s.Active())
}

func TestSession_ExportDefaultPath(t *testing.T) {
	s := setupTestSession(t)
	ctx := context.Background()

	_, err := s.CreateTable(ctx, "Reading List", []tablestore.ColumnSpec{{Name: "title"}, {Name: "status"}})
	require.NoError(t, err)
	_, err = s.InsertRow(ctx, "", map[string]any{"title": "Dune", "status": "finished"})
	require.NoError(t, err)

	res, err := s.Export(ctx, "", "", tablestore.ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.ExportDir(), "reading_list.csv"), res.Path)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "title,status\nDune,finished\n", string(data))
}

func TestSession_ImportSetsActive(t *testing.T) {
	s := setupTestSession(t)

	tbl, n, err := s.Import(context.Background(), "Scores", strings.NewReader("name,score\nana,3\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, tbl.Identifier, s.Active())
}
