// Package overlay wraps a read-only module tracker with an in-memory
// source override layer (spec.md §4.8), used to serve unsaved-editor-
// buffer reads without mutating the tracker's own tables.
package overlay

import (
	"regexp"
	"sync"

	"github.com/sunholo/buildtrack/internal/config"
	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
	"github.com/sunholo/buildtrack/internal/modpath"
	"github.com/sunholo/buildtrack/internal/moduletracker"
)

// ChangeKind distinguishes setting new overlay content from resetting a
// path back to its on-disk content.
type ChangeKind int

const (
	NewCode ChangeKind = iota
	ResetCode
)

// Change is one requested overlay mutation.
type Change struct {
	Kind    ChangeKind
	Content string // meaningful only when Kind == NewCode
}

// ArtifactChange pairs a filesystem artifact path with the change to
// apply to it.
type ArtifactChange struct {
	ArtifactPath string
	Change       Change
}

// ParentTracker is the read-only view of a module tracker an overlay
// falls through to on a miss.
type ParentTracker interface {
	LookUpQualifier(q string) moduletracker.LookupResult
	CodeOfModulePath(mp modpath.ModulePath, absPath string) (string, error)
}

// Overlay holds override content and an "owned" qualifier set on top of
// a read-only parent tracker.
type Overlay struct {
	parent   ParentTracker
	roots    []config.SearchRoot
	excludes []*regexp.Regexp

	mu        sync.RWMutex
	overrides map[modpath.Raw]string
	owned     map[string]bool
}

// New wraps parent in an Overlay that classifies overlay paths against
// roots/excludes.
func New(parent ParentTracker, roots []config.SearchRoot, excludes []*regexp.Regexp) *Overlay {
	return &Overlay{
		parent:    parent,
		roots:     roots,
		excludes:  excludes,
		overrides: make(map[modpath.Raw]string),
		owned:     make(map[string]bool),
	}
}

// UpdateOverlaidCode converts each artifact path to a module path,
// records or removes its override, marks the qualifier as owned, and
// returns one NewExplicit update record per change.
func (o *Overlay) UpdateOverlaidCode(changes []ArtifactChange) ([]moduletracker.Update, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	updates := make([]moduletracker.Update, 0, len(changes))
	for _, c := range changes {
		mp, err := modpath.ClassifyRequired(c.ArtifactPath, o.roots, o.excludes)
		if err != nil {
			return nil, buildtrackerrors.WrapReport(
				buildtrackerrors.New(buildtrackerrors.OVL001, "cannot map artifact path to a module path: "+c.ArtifactPath))
		}

		switch c.Change.Kind {
		case NewCode:
			o.overrides[mp.Raw] = c.Change.Content
		case ResetCode:
			delete(o.overrides, mp.Raw)
		}
		o.owned[mp.Qualifier] = true

		winner := *mp
		updates = append(updates, moduletracker.Update{Kind: moduletracker.UpdateNewExplicit, Qualifier: mp.Qualifier, ModulePath: &winner})
	}
	return updates, nil
}

// OwnsQualifier reports whether the overlay has made any claim on q.
func (o *Overlay) OwnsQualifier(q string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.owned[q]
}

// LookUpQualifier delegates to the parent tracker; the overlay only
// intercepts code reads, not qualifier resolution.
func (o *Overlay) LookUpQualifier(q string) moduletracker.LookupResult {
	return o.parent.LookUpQualifier(q)
}

// CodeOfModulePath checks the override table first and falls through to
// the parent tracker on a miss.
func (o *Overlay) CodeOfModulePath(mp modpath.ModulePath, absPath string) (string, error) {
	o.mu.RLock()
	content, ok := o.overrides[mp.Raw]
	o.mu.RUnlock()
	if ok {
		return content, nil
	}
	return o.parent.CodeOfModulePath(mp, absPath)
}
