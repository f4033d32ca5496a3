package moduletracker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sunholo/buildtrack/internal/config"
	"github.com/sunholo/buildtrack/internal/modpath"
)

func TestLazyTrackerSkipsUntilFirstLookup(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "pkg"), 0755)
	path := filepath.Join(root, "pkg", "new.py")
	os.WriteFile(path, nil, 0644)

	roots := []config.SearchRoot{{Path: root, Index: 0}}
	finder := modpath.NewLazyFinder(roots, nil)
	lt := NewLazy(finder)

	mp := modpath.Classify(path, roots, nil)
	if mp == nil {
		t.Fatal("expected Classify to produce a module path for the test fixture")
	}

	// No query has ever asked about pkg.new: the event must be skipped.
	update, err := lt.HandleEvent(Event{Kind: EventNewOrChanged, Path: *mp})
	if err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if update != nil {
		t.Fatalf("expected a skipped (nil) update before any lookup, got %+v", update)
	}
	if res := lt.Tracker.LookUpQualifier("pkg.new"); res.Kind != LookupNotFound {
		t.Fatalf("expected the underlying tracker to stay unaware of pkg.new, got %+v", res)
	}

	// A subsequent look-up discovers the file on demand via the finder.
	res := lt.LookUpQualifier("pkg.new")
	if res.Kind != LookupExplicit || res.Explicit.Qualifier != "pkg.new" {
		t.Fatalf("expected LookUpQualifier to discover pkg.new on demand, got %+v", res)
	}

	// Now that a lookup has asked about it, a later event must apply.
	changed := modpath.Classify(path, roots, nil)
	update, err = lt.HandleEvent(Event{Kind: EventNewOrChanged, Path: *changed})
	if err != nil {
		t.Fatalf("HandleEvent after lookup failed: %v", err)
	}
	if update == nil {
		t.Fatal("expected the event to apply once the qualifier has been looked up")
	}
}

func TestLazyTrackerHandleEventInvalidatesEvenWhenSkipped(t *testing.T) {
	root := t.TempDir()
	roots := []config.SearchRoot{{Path: root, Index: 0}}
	finder := modpath.NewLazyFinder(roots, nil)
	lt := NewLazy(finder)

	mp := modpath.ModulePath{Raw: modpath.Raw{RootIndex: 0, RelPath: "pkg/new.py", ShouldTypeCheck: true}, Qualifier: "pkg.new"}

	if _, err := lt.HandleEvent(Event{Kind: EventNewOrChanged, Path: mp}); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if finder.Cached("pkg.new") {
		t.Error("expected Invalidate to run even though the update was skipped, leaving pkg.new uncached")
	}
}
