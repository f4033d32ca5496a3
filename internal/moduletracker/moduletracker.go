// Package moduletracker maintains the live mapping from qualifier to
// winning module path (and to namespace-package status) as filesystem
// events arrive, with the update algebra and "did you mean" lookups
// spec.md §4.7 describes.
package moduletracker

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
	"github.com/sunholo/buildtrack/internal/modpath"
)

// EventKind distinguishes the two atomic filesystem events the tracker
// consumes.
type EventKind int

const (
	EventNewOrChanged EventKind = iota
	EventRemove
)

// Event is one atomic file event, already filtered through the finder's
// file predicate by the caller.
type Event struct {
	Kind EventKind
	Path modpath.ModulePath
}

// UpdateKind is the net effect of folding a qualifier's events within one
// batch.
type UpdateKind int

const (
	UpdateNew UpdateKind = iota
	UpdateChanged
	UpdateDelete
	UpdateNewImplicit
	UpdateDeleteImplicit
	UpdateNewExplicit // emitted by an overlay forcing an override regardless of priority order
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateNew:
		return "New"
	case UpdateChanged:
		return "Changed"
	case UpdateDelete:
		return "Delete"
	case UpdateNewImplicit:
		return "NewImplicit"
	case UpdateDeleteImplicit:
		return "DeleteImplicit"
	case UpdateNewExplicit:
		return "NewExplicit"
	default:
		return "Unknown"
	}
}

// Update is one emitted module-update record.
type Update struct {
	Kind       UpdateKind
	Qualifier  string
	ModulePath *modpath.ModulePath // set for New/Changed explicit updates
}

// LookupResult is the outcome of look_up_qualifier.
type LookupResult struct {
	Explicit   *modpath.ModulePath // set when Kind == LookupExplicit
	Kind       LookupKind
}

type LookupKind int

const (
	LookupNotFound LookupKind = iota
	LookupExplicit
	LookupImplicit
)

// Tracker holds the Explicit and Implicit tables for one search-root set.
// It is single-writer (see spec.md §5): all mutation happens through
// Batch.Apply (see NewBatch) and SetOverride/ClearOverride, called by the
// owning driver; reads may happen concurrently from any goroutine.
type Tracker struct {
	mu sync.RWMutex

	explicit map[string][]modpath.ModulePath       // qualifier -> priority-ordered candidates
	implicit map[string]map[modpath.Raw]bool        // ancestor qualifier -> set of descendant raw paths
	overrides map[modpath.Raw]string                // raw path -> in-memory content override
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{
		explicit:  make(map[string][]modpath.ModulePath),
		implicit:  make(map[string]map[modpath.Raw]bool),
		overrides: make(map[modpath.Raw]string),
	}
}

// ancestorQualifiers returns every proper ancestor qualifier of q, from
// the immediate parent out to the top-level package.
func ancestorQualifiers(q string) []string {
	segments := strings.Split(q, ".")
	if len(segments) <= 1 {
		return nil
	}
	out := make([]string, 0, len(segments)-1)
	for i := 1; i < len(segments); i++ {
		out = append(out, strings.Join(segments[:i], "."))
	}
	return out
}

// applyExplicit mutates the Explicit table for one event and returns the
// explicit update it produces, or nil when the event has no observable
// effect (a shadowed candidate changed or was removed).
func (t *Tracker) applyExplicit(ev Event) *Update {
	q := ev.Path.Qualifier

	switch ev.Kind {
	case EventNewOrChanged:
		list, ok := t.explicit[q]
		if !ok {
			t.explicit[q] = []modpath.ModulePath{ev.Path}
			mp := ev.Path
			return &Update{Kind: UpdateNew, Qualifier: q, ModulePath: &mp}
		}

		filtered := make([]modpath.ModulePath, 0, len(list)+1)
		for _, existing := range list {
			if !modpath.Equal(existing, ev.Path) {
				filtered = append(filtered, existing)
			}
		}
		filtered = append(filtered, ev.Path)
		sort.Slice(filtered, func(i, j int) bool { return modpath.Compare(filtered[i], filtered[j]) < 0 })
		t.explicit[q] = filtered

		if modpath.Equal(filtered[0], ev.Path) {
			mp := filtered[0]
			return &Update{Kind: UpdateChanged, Qualifier: q, ModulePath: &mp}
		}
		return nil

	case EventRemove:
		list, ok := t.explicit[q]
		if !ok {
			return nil
		}

		oldHeadWasRemoved := modpath.Equal(list[0], ev.Path)
		filtered := make([]modpath.ModulePath, 0, len(list))
		for _, existing := range list {
			if !modpath.Equal(existing, ev.Path) {
				filtered = append(filtered, existing)
			}
		}

		if len(filtered) == 0 {
			delete(t.explicit, q)
			return &Update{Kind: UpdateDelete, Qualifier: q}
		}
		t.explicit[q] = filtered
		if oldHeadWasRemoved {
			mp := filtered[0]
			return &Update{Kind: UpdateChanged, Qualifier: q, ModulePath: &mp}
		}
		return nil
	}
	return nil
}

// applyImplicit mutates the Implicit table's ancestor sets for one event
// and returns any NewImplicit/DeleteImplicit transitions it causes.
func (t *Tracker) applyImplicit(ev Event) []Update {
	var out []Update
	for _, ancestor := range ancestorQualifiers(ev.Path.Qualifier) {
		set, ok := t.implicit[ancestor]

		switch ev.Kind {
		case EventNewOrChanged:
			if !ok {
				set = make(map[modpath.Raw]bool)
				t.implicit[ancestor] = set
			}
			wasEmpty := len(set) == 0
			set[ev.Path.Raw] = true
			if wasEmpty {
				out = append(out, Update{Kind: UpdateNewImplicit, Qualifier: ancestor})
			}
		case EventRemove:
			if !ok {
				continue
			}
			delete(set, ev.Path.Raw)
			if len(set) == 0 {
				delete(t.implicit, ancestor)
				out = append(out, Update{Kind: UpdateDeleteImplicit, Qualifier: ancestor})
			}
		}
	}
	return out
}

// LookUpQualifier resolves a qualifier to its winning explicit candidate,
// its implicit-namespace-package status, or NotFound.
func (t *Tracker) LookUpQualifier(q string) LookupResult {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if list, ok := t.explicit[q]; ok && len(list) > 0 {
		mp := list[0]
		return LookupResult{Kind: LookupExplicit, Explicit: &mp}
	}
	if set, ok := t.implicit[q]; ok && len(set) > 0 {
		return LookupResult{Kind: LookupImplicit}
	}
	return LookupResult{Kind: LookupNotFound}
}

// KnownQualifiers returns every qualifier the tracker currently has any
// record of, explicit or implicit — used to build "did you mean"
// suggestions and for diagnostics.
func (t *Tracker) KnownQualifiers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]bool, len(t.explicit)+len(t.implicit))
	for q := range t.explicit {
		seen[q] = true
	}
	for q := range t.implicit {
		seen[q] = true
	}
	out := make([]string, 0, len(seen))
	for q := range seen {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

// SetOverride registers an in-memory content override for raw, read back
// by CodeOfModulePath in preference to the file on disk.
func (t *Tracker) SetOverride(raw modpath.Raw, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overrides[raw] = content
}

// ClearOverride removes any override previously registered for raw.
func (t *Tracker) ClearOverride(raw modpath.Raw) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.overrides, raw)
}

// CodeOfModulePath returns the source text for mp: the in-memory
// override if one was registered, otherwise the file's contents read
// from absPath.
func (t *Tracker) CodeOfModulePath(mp modpath.ModulePath, absPath string) (string, error) {
	t.mu.RLock()
	override, ok := t.overrides[mp.Raw]
	t.mu.RUnlock()
	if ok {
		return override, nil
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.TRK005, fmt.Sprintf("failed to read %s: %v", absPath, err)))
	}
	return string(data), nil
}
