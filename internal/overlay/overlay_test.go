package overlay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sunholo/buildtrack/internal/config"
	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
	"github.com/sunholo/buildtrack/internal/modpath"
	"github.com/sunholo/buildtrack/internal/moduletracker"
)

func TestUpdateOverlaidCodeSetAndReset(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "pkg"), 0755)
	path := filepath.Join(root, "pkg", "mod.py")
	os.WriteFile(path, []byte("on_disk = True\n"), 0644)

	roots := []config.SearchRoot{{Path: root, Index: 0}}
	tr := moduletracker.New()
	ov := New(tr, roots, nil)

	updates, err := ov.UpdateOverlaidCode([]ArtifactChange{
		{ArtifactPath: path, Change: Change{Kind: NewCode, Content: "overlaid = True\n"}},
	})
	if err != nil {
		t.Fatalf("UpdateOverlaidCode failed: %v", err)
	}
	if len(updates) != 1 || updates[0].Kind != moduletracker.UpdateNewExplicit || updates[0].Qualifier != "pkg.mod" {
		t.Fatalf("unexpected updates: %+v", updates)
	}
	if !ov.OwnsQualifier("pkg.mod") {
		t.Error("expected overlay to own pkg.mod after the change")
	}

	mp := modpath.ModulePath{Raw: modpath.Raw{RootIndex: 0, RelPath: "pkg/mod.py", ShouldTypeCheck: true}, Qualifier: "pkg.mod"}
	code, err := ov.CodeOfModulePath(mp, path)
	if err != nil {
		t.Fatalf("CodeOfModulePath failed: %v", err)
	}
	if code != "overlaid = True\n" {
		t.Errorf("code = %q, want overlay content", code)
	}

	if _, err := ov.UpdateOverlaidCode([]ArtifactChange{{ArtifactPath: path, Change: Change{Kind: ResetCode}}}); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	code, err = ov.CodeOfModulePath(mp, path)
	if err != nil {
		t.Fatalf("CodeOfModulePath after reset failed: %v", err)
	}
	if code != "on_disk = True\n" {
		t.Errorf("code after reset = %q, want on-disk content", code)
	}
}

func TestUpdateOverlaidCodeRejectsUnmappablePath(t *testing.T) {
	root := t.TempDir()
	roots := []config.SearchRoot{{Path: root, Index: 0}}
	tr := moduletracker.New()
	ov := New(tr, roots, nil)

	outside := filepath.Join(t.TempDir(), "elsewhere.py")
	_, err := ov.UpdateOverlaidCode([]ArtifactChange{{ArtifactPath: outside, Change: Change{Kind: NewCode, Content: "x = 1\n"}}})
	if err == nil {
		t.Fatal("expected an error for an unmappable path")
	}
	rep, ok := buildtrackerrors.AsReport(err)
	if !ok || rep.Code != buildtrackerrors.OVL001 {
		t.Fatalf("expected OVL001, got %v", err)
	}
}

func TestLookUpQualifierFallsThroughToParent(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "pkg"), 0755)
	path := filepath.Join(root, "pkg", "mod.py")
	os.WriteFile(path, nil, 0644)

	roots := []config.SearchRoot{{Path: root, Index: 0}}
	tr := moduletracker.New()
	b := tr.NewBatch()
	b.Apply(moduletracker.Event{Kind: moduletracker.EventNewOrChanged, Path: modpath.ModulePath{
		Raw:       modpath.Raw{RootIndex: 0, RelPath: "pkg/mod.py", ShouldTypeCheck: true},
		Qualifier: "pkg.mod",
	}})
	b.Finish()

	ov := New(tr, roots, nil)
	res := ov.LookUpQualifier("pkg.mod")
	if res.Kind != moduletracker.LookupExplicit {
		t.Fatalf("expected overlay to fall through to parent's explicit entry, got %+v", res)
	}
}
