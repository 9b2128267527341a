package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leapsheet/internal/tablestore"
	"github.com/leapstack-labs/leapsheet/internal/tools"
)

// readOnlyTools never change tables or the active selection.
var readOnlyTools = map[string]bool{
	tools.ListTables: true,
	tools.GetRow:     true,
	tools.Display:    true,
	tools.ExportCSV:  true,
	tools.PlotData:   true,
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type tablesBody struct {
	Active string              `json:"active,omitempty"`
	Tables []*tablestore.Table `json:"tables"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := tablestore.KindOf(err)
	writeJSON(w, statusForKind(kind), errorBody{Error: err.Error(), Kind: kind})
}

// statusForKind maps an error kind to an HTTP status.
func statusForKind(kind string) int {
	switch kind {
	case tablestore.KindNotFound, tools.KindUnknownTool:
		return http.StatusNotFound
	case tablestore.KindInvalidSchema, tablestore.KindUnknownColumn, tools.KindInvalidArguments, tools.KindNoData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, tools.List())
}

// handleCallTool runs a tool. Failed calls answer with the result and a
// status derived from its error kind.
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var args map[string]any
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if strings.TrimSpace(string(body)) != "" {
		if err := json.Unmarshal(body, &args); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error: fmt.Sprintf("request body must be a JSON object: %v", err),
				Kind:  tools.KindInvalidArguments,
			})
			return
		}
	}

	res, err := s.dispatcher.Call(r.Context(), name, args)
	if errors.Is(err, tools.ErrUnknownTool) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Kind: tools.KindUnknownTool})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if res.IsError {
		writeJSON(w, statusForKind(res.Kind), res)
		return
	}
	if !readOnlyTools[name] {
		s.lastChange.Store(time.Now().UnixNano())
		s.notifier.Broadcast(Event{Tool: name, Active: res.Active})
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	sess := s.dispatcher.Session()
	tables, err := sess.Tables(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tablesBody{Active: sess.Active(), Tables: tables})
}

// handleReadTable returns a snapshot. Query parameters are equality
// filters: /tables/books?status=finished.
func (s *Server) handleReadTable(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "table")

	var filters tablestore.Filters
	if q := r.URL.Query(); len(q) > 0 {
		filters = make(tablestore.Filters, len(q))
		for k, v := range q {
			filters[k] = v[0]
		}
	}

	snap, err := s.dispatcher.Session().Store().ReadTable(r.Context(), ref, filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleEvents streams change events as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Subscribe before the headers go out so a client that saw the
	// response cannot miss the next change.
	updates := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(updates)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-updates:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
