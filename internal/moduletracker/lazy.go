package moduletracker

import (
	"github.com/sunholo/buildtrack/internal/modpath"
)

// LazyTracker pairs a Tracker with the LazyFinder driving its on-demand
// discovery, and adds the lazy variant's skip rule: the tracker must not
// react to events for qualifiers it has never been asked about.
type LazyTracker struct {
	*Tracker
	finder *modpath.LazyFinder
}

// NewLazy constructs a LazyTracker over finder.
func NewLazy(finder *modpath.LazyFinder) *LazyTracker {
	return &LazyTracker{Tracker: New(), finder: finder}
}

// LookUpQualifier discovers qualifier on demand via the lazy finder
// before delegating to the underlying tracker: spec.md §4.7's scenario
// where a qualifier nobody has ever asked about only becomes visible
// once looked up, not when its file first appears on disk.
func (lt *LazyTracker) LookUpQualifier(qualifier string) LookupResult {
	paths, err := lt.finder.Find(qualifier)
	if err == nil && len(paths) > 0 {
		b := lt.Tracker.NewBatch()
		for _, mp := range paths {
			b.Apply(Event{Kind: EventNewOrChanged, Path: mp})
		}
		b.Finish()
	}
	return lt.Tracker.LookUpQualifier(qualifier)
}

// ShouldSkipUpdate reports whether an incremental event for qualifier
// should be dropped without updating the explicit/implicit tables: true
// when the qualifier is absent from the finder's directory-listing
// cache, meaning no prior lookup ever asked about it.
func (lt *LazyTracker) ShouldSkipUpdate(qualifier string) bool {
	return !lt.finder.Cached(qualifier)
}

// HandleEvent applies ev to the underlying tracker unless the lazy skip
// rule applies, in which case it still invalidates the finder's
// directory cache for the event's qualifier and its ancestors so a
// future lookup re-crawls.
func (lt *LazyTracker) HandleEvent(ev Event) (*Update, error) {
	q := ev.Path.Qualifier
	skip := lt.ShouldSkipUpdate(q)
	lt.finder.Invalidate(q)

	if skip {
		return nil, nil
	}

	b := lt.Tracker.NewBatch()
	if err := b.Apply(ev); err != nil {
		return nil, err
	}
	updates := b.Finish()
	if len(updates) == 0 {
		return nil, nil
	}
	return &updates[0], nil
}
