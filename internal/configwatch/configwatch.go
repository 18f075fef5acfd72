// Package configwatch watches the configuration directory for changes
// after boot and logs them. It never reloads anything: the task context
// map is built once at startup and stays fixed size for the life of the
// process, so a file dropped into (or edited in) the config directory
// after boot has no effect until the next reboot — this watcher exists
// purely so an operator notices the drift instead of wondering why their
// edit did nothing.
//
// Adapted from the teacher's fsnotify-based watcher (internal/watcher),
// trimmed to the event classification it already did well and pointed at
// logging instead of an arbitrary callback.
package configwatch

import (
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

type EventKind int

const (
	EventCreated EventKind = iota
	EventModified
	EventDeleted
	EventRenamed
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Watcher logs filesystem drift under one directory.
type Watcher struct {
	fsw *fsnotify.Watcher
	log zerolog.Logger
}

// New starts watching dir. Callers should Close the returned Watcher on
// shutdown, which also ends Run; a Watcher never closed keeps its fd and
// its Run goroutine until process exit — the original's "fixed context map"
// invariant is a property of tasks, not of this side-channel watcher.
func New(dir string, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw, log: log}, nil
}

// Run logs every drift event until the watcher is closed.
func (w *Watcher) Run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			kind, ok := classify(event)
			if !ok {
				continue
			}
			w.log.Warn().
				Str("event", kind.String()).
				Str("path", event.Name).
				Msg("configuration directory changed after boot; restart alfad to apply")
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("config watcher error")
		}
	}
}

func classify(event fsnotify.Event) (EventKind, bool) {
	switch {
	case event.Has(fsnotify.Write):
		return EventModified, true
	case event.Has(fsnotify.Create):
		return EventCreated, true
	case event.Has(fsnotify.Remove):
		return EventDeleted, true
	case event.Has(fsnotify.Rename):
		return EventRenamed, true
	default:
		return 0, false
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}
