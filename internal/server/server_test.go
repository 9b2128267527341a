package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapsheet/internal/session"
	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"github.com/leapstack-labs/leapsheet/internal/testutil"
	"github.com/leapstack-labs/leapsheet/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	store := tablestore.NewStore(tablestore.WithLogger(logger))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })

	d := tools.NewDispatcher(session.New(store, session.WithExportDir(t.TempDir())), logger)
	return New(Config{Dispatcher: d, Addr: "127.0.0.1:0", Logger: logger})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := setupTestServer(t).Handler()
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListTools(t *testing.T) {
	h := setupTestServer(t).Handler()
	rec := do(t, h, http.MethodGet, "/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]tools.Tool](t, rec)
	assert.Len(t, list, len(tools.Names()))
	for _, tool := range list {
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.Equal(t, "object", tool.Parameters.Type, tool.Name)
	}
}

func TestCallTool_ReadingList(t *testing.T) {
	h := setupTestServer(t).Handler()

	rec := do(t, h, http.MethodPost, "/tools/create_table", `{"name":"Reading List","columns":["title","status"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[tools.Result](t, rec)
	assert.Equal(t, "reading_list", created.Active)

	rec = do(t, h, http.MethodPost, "/tools/add_row", `{"data":{"title":"Dune","status":"reading"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/tools/edit_cell", `{"row_id":1,"column":"status","value":"finished"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/tables/Reading%20List", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[struct {
		Table struct {
			Identifier string `json:"identifier"`
		} `json:"table"`
		Rows []struct {
			RowID int64          `json:"row_id"`
			Cells map[string]any `json:"cells"`
		} `json:"rows"`
	}](t, rec)
	assert.Equal(t, "reading_list", snap.Table.Identifier)
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, int64(1), snap.Rows[0].RowID)
	assert.Equal(t, "finished", snap.Rows[0].Cells["status"])

	rec = do(t, h, http.MethodGet, "/tables/reading_list?status=reading", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":[]`)

	rec = do(t, h, http.MethodGet, "/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"active":"reading_list"`)
}

func TestCallTool_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantKind   string
	}{
		{"unknown tool", "/tools/drop_database", `{}`, http.StatusNotFound, tools.KindUnknownTool},
		{"malformed body", "/tools/create_table", `{"name":`, http.StatusBadRequest, tools.KindInvalidArguments},
		{"missing argument", "/tools/create_table", `{"columns":["a"]}`, http.StatusUnprocessableEntity, tools.KindInvalidArguments},
		{"unknown argument", "/tools/list_tables", `{"verbose":true}`, http.StatusUnprocessableEntity, tools.KindInvalidArguments},
		{"missing table", "/tools/display", `{"table":"nope"}`, http.StatusNotFound, tablestore.KindNotFound},
		{"unknown column", "/tools/add_row", `{"table":"books","data":{"isbn":"1"}}`, http.StatusUnprocessableEntity, tablestore.KindUnknownColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestServer(t).Handler()
			rec := do(t, h, http.MethodPost, "/tools/create_table", `{"name":"books","columns":"title"}`)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			rec = do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			body := decode[map[string]any](t, rec)
			assert.Equal(t, tt.wantKind, body["kind"])
		})
	}
}

func TestReadTable_NotFound(t *testing.T) {
	h := setupTestServer(t).Handler()
	rec := do(t, h, http.MethodGet, "/tables/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, tablestore.KindNotFound, body.Kind)
	assert.Contains(t, body.Error, "missing")
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusForKind(tablestore.KindNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForKind(tablestore.KindInvalidSchema))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(tablestore.KindStorage))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(""))
}

func TestNotifier(t *testing.T) {
	n := NewNotifier()
	a := n.Subscribe()
	b := n.Subscribe()

	n.Broadcast(Event{Tool: tools.AddRow})
	assert.Equal(t, Event{Tool: tools.AddRow}, <-a)
	assert.Equal(t, Event{Tool: tools.AddRow}, <-b)

	n.Unsubscribe(a)
	n.mu.RLock()
	assert.Len(t, n.listeners, 1)
	n.mu.RUnlock()

	// A full listener does not block the broadcaster.
	for i := 0; i < 20; i++ {
		n.Broadcast(Event{Tool: tools.DeleteRow})
	}
	assert.Len(t, b, cap(b))
	n.Unsubscribe(b)
}

func TestServe_EventsAndShutdown(t *testing.T) {
	s := setupTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/events")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	post, err := http.Post(base+"/tools/create_table", "application/json",
		strings.NewReader(`{"name":"Groceries","columns":["item"]}`))
	require.NoError(t, err)
	_ = post.Body.Close()
	require.Equal(t, http.StatusOK, post.StatusCode)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: change\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.JSONEq(t, `{"tool":"create_table","active":"groceries"}`, strings.TrimPrefix(strings.TrimSpace(line), "data: "))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestWatch_ExternalChange(t *testing.T) {
	logger := testutil.NewTestLogger(t)
	path := filepath.Join(t.TempDir(), "sheets.db")

	store := tablestore.NewStore(tablestore.WithLogger(logger))
	require.NoError(t, store.Open(path))
	t.Cleanup(func() { _ = store.Close() })
	d := tools.NewDispatcher(session.New(store), logger)
	// Debounce timers may fire after the test returns.
	s := New(Config{Dispatcher: d, Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), Watch: true, DatabasePath: path})

	events := s.Notifier().Subscribe()
	defer s.Notifier().Unsubscribe(events)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	// A second store on the same file stands in for another process.
	other := tablestore.NewStore()
	require.NoError(t, other.Open(path))
	t.Cleanup(func() { _ = other.Close() })
	_, err = other.CreateTable(context.Background(), "Chores", []tablestore.ColumnSpec{{Name: "task"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		if _, err := other.InsertRow(context.Background(), "chores", map[string]any{"task": "dishes"}); err != nil {
			return false
		}
		select {
		case ev := <-events:
			return ev.Tool == ExternalChange
		case <-time.After(300 * time.Millisecond):
			return false
		}
	}, 10*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRecentlyChanged(t *testing.T) {
	s := setupTestServer(t)
	now := time.Now()
	assert.False(t, s.recentlyChanged(now))

	s.lastChange.Store(now.Add(-100 * time.Millisecond).UnixNano())
	assert.True(t, s.recentlyChanged(now))

	s.lastChange.Store(now.Add(-time.Second).UnixNano())
	assert.False(t, s.recentlyChanged(now))
}
