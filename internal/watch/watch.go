// Package watch feeds the Builder's incremental drivers and the
// ModuleTracker's update stream with filesystem events, recursively
// watching every configured search root via fsnotify.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/fsnotify/fsnotify"

	"github.com/sunholo/buildtrack/internal/config"
	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
	"github.com/sunholo/buildtrack/internal/modpath"
	"github.com/sunholo/buildtrack/internal/moduletracker"
)

// Watcher translates raw fsnotify events under a set of search roots
// into classified moduletracker.Event values, skipping paths that do
// not classify to a module path (directories, non-source files,
// excluded paths).
type Watcher struct {
	fs       *fsnotify.Watcher
	roots    []config.SearchRoot
	excludes []*regexp.Regexp

	events chan moduletracker.Event
	errors chan error
}

// New constructs a Watcher and adds every search root's directory tree
// to the underlying fsnotify watch list. fsnotify does not watch
// recursively on its own, so every directory must be added explicitly.
func New(roots []config.SearchRoot, excludes []*regexp.Regexp) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, buildtrackerrors.WrapReport(buildtrackerrors.NewGeneric("watch", err))
	}

	w := &Watcher{
		fs:       fsw,
		roots:    roots,
		excludes: excludes,
		events:   make(chan moduletracker.Event, 64),
		errors:   make(chan error, 8),
	}

	for _, root := range roots {
		if err := w.addTree(root.Path); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return buildtrackerrors.WrapReport(buildtrackerrors.NewGeneric("watch", err))
		}
		return nil
	})
}

// Events is the channel of classified module events. It is closed when
// Run returns.
func (w *Watcher) Events() <-chan moduletracker.Event {
	return w.events
}

// Errors is the channel of underlying fsnotify errors (watch descriptor
// failures, etc.) — distinct from per-event classification, which is
// silent for paths that are not module candidates.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Run drives the event loop until ctx is canceled, then closes the
// underlying fsnotify watcher and the Events channel.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.events)
	defer w.fs.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addTree(ev.Name)
			return
		}
	}

	mp := modpath.Classify(ev.Name, w.roots, w.excludes)
	if mp == nil {
		return
	}

	switch {
	case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create):
		w.events <- moduletracker.Event{Kind: moduletracker.EventNewOrChanged, Path: *mp}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.events <- moduletracker.Event{Kind: moduletracker.EventRemove, Path: *mp}
	}
}
