package buildmap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewLenientFirstWins(t *testing.T) {
	m, err := New([]Pair{
		{Artifact: "a.py", Source: "src/a.py"},
		{Artifact: "a.py", Source: "src/other_a.py"},
		{Artifact: "b.py", Source: "src/b.py"},
	}, false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if m["a.py"] != "src/a.py" {
		t.Errorf("a.py = %q, want first-wins src/a.py", m["a.py"])
	}
	if len(m) != 2 {
		t.Errorf("len(m) = %d, want 2", len(m))
	}
}

func TestNewStrictRejectsDuplicates(t *testing.T) {
	_, err := New([]Pair{
		{Artifact: "a.py", Source: "src/a.py"},
		{Artifact: "a.py", Source: "src/other_a.py"},
	}, true)
	if err == nil {
		t.Fatal("expected an error for a duplicate artifact key under strict construction")
	}
}

func TestFromJSON(t *testing.T) {
	doc := []byte(`{"sources": {"a.py": "src/a.py", "pkg/b.py": "src/pkg/b.py"}, "dependencies": ["//other:target"]}`)
	m, err := FromJSON(doc, "sources", false)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	want := BuildMap{"a.py": "src/a.py", "pkg/b.py": "src/pkg/b.py"}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("FromJSON mismatch (-want +got):\n%s", diff)
	}
}

func TestFromJSONMissingContainer(t *testing.T) {
	doc := []byte(`{"dependencies": []}`)
	if _, err := FromJSON(doc, "sources", false); err == nil {
		t.Fatal("expected an error when the container field is missing")
	}
}

func TestFilter(t *testing.T) {
	m := BuildMap{
		"a.py":                "src/a.py",
		"__manifest__.py":     "src/__manifest__.py",
		"__test_main__.py":    "src/__test_main__.py",
		"pkg/__init__.py":     "src/pkg/__init__.py",
	}
	filtered := Filter(m, func(artifact, _ string) bool { return !IsHousekeeping(artifact) })
	if len(filtered) != 2 {
		t.Errorf("len(filtered) = %d, want 2", len(filtered))
	}
	if _, ok := filtered["__manifest__.py"]; ok {
		t.Error("expected __manifest__.py to be filtered out")
	}
}

func TestIndexLookups(t *testing.T) {
	m := BuildMap{
		"a.py":   "src/a.py",
		"a2.py":  "src/a.py",
		"b.py":   "src/b.py",
	}
	idx := Index(m)

	if src, ok := idx.LookupSource("a.py"); !ok || src != "src/a.py" {
		t.Errorf("LookupSource(a.py) = (%q, %v), want (src/a.py, true)", src, ok)
	}
	if _, ok := idx.LookupSource("missing.py"); ok {
		t.Error("LookupSource(missing.py) should miss")
	}

	arts := idx.LookupArtifact("src/a.py")
	want := []string{"a.py", "a2.py"}
	if diff := cmp.Diff(want, arts); diff != "" {
		t.Errorf("LookupArtifact mismatch (-want +got):\n%s", diff)
	}
}
