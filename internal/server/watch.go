package server

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ExternalChange is the Event.Tool value for writes made by another
// process, such as a CLI command run against the same database.
const ExternalChange = "external"

const (
	watchDebounce = 100 * time.Millisecond
	// Writes within this window of our own change are assumed to be ours.
	selfWriteWindow = 500 * time.Millisecond
)

// watchDatabase broadcasts an ExternalChange whenever the database file or
// its WAL is written by someone other than this server.
func (s *Server) watchDatabase(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// SQLite replaces and creates sidecar files, so watch the directory.
	dir := filepath.Dir(s.dbPath)
	if err := watcher.Add(dir); err != nil {
		s.logger.Error("failed to watch database directory", "dir", dir, "error", err)
		// Don't fail - serve without external change events
		<-ctx.Done()
		return nil
	}
	base := filepath.Base(s.dbPath)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasPrefix(filepath.Base(event.Name), base) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				if s.recentlyChanged(time.Now()) {
					return
				}
				s.logger.Debug("database changed externally", "file", event.Name)
				s.notifier.Broadcast(Event{Tool: ExternalChange, Active: s.dispatcher.Session().Active()})
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// recentlyChanged reports whether this server applied a change shortly
// before now.
func (s *Server) recentlyChanged(now time.Time) bool {
	last := s.lastChange.Load()
	return last != 0 && now.Sub(time.Unix(0, last)) < selfWriteWindow
}
