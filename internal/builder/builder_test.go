package builder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sunholo/buildtrack/internal/buildiface"
	"github.com/sunholo/buildtrack/internal/buildmap"
	"github.com/sunholo/buildtrack/internal/buildtool"
	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

type fakeQuerier struct {
	queryResponses map[string][]byte
	buildResponses map[string][]byte
}

func key(args []string) string {
	out := ""
	for _, a := range args {
		out += a + "\x00"
	}
	return out
}

func (f *fakeQuerier) Query(_ context.Context, args []string, _ buildtool.Options) ([]byte, error) {
	return f.queryResponses[key(args)], nil
}

func (f *fakeQuerier) Build(_ context.Context, args []string, _ buildtool.Options) ([]byte, error) {
	return f.buildResponses[key(args)], nil
}

func TestFullIncrementalEndToEnd(t *testing.T) {
	sourceRoot := t.TempDir()
	artifactRoot := t.TempDir()
	os.MkdirAll(filepath.Join(sourceRoot, "pkg"), 0755)
	os.WriteFile(filepath.Join(sourceRoot, "pkg", "a.py"), []byte("x = 1\n"), 0644)

	dbPath := filepath.Join(t.TempDir(), "t1.json")
	os.WriteFile(dbPath, []byte(`{"sources": {"a.py": "pkg/a.py"}}`), 0644)

	normalizeResp, _ := json.Marshal(map[string]buildiface.TargetAttrs{
		"//pkg:t1": {Kind: "python-library"},
	})
	buildResp, _ := json.Marshal(map[string]string{"//pkg:t1#source-db": dbPath})

	fake := &fakeQuerier{
		queryResponses: map[string][]byte{key([]string{"//pkg:..."}): normalizeResp},
		buildResponses: map[string][]byte{key([]string{"//pkg:t1"}): buildResp},
	}

	deps := Deps{
		Querier:      fake,
		Suffix:       buildiface.SuffixV1,
		SourceRoot:   sourceRoot,
		ArtifactRoot: artifactRoot,
	}

	result, err := FullIncremental(context.Background(), deps, []string{"//pkg:..."}, buildmap.BuildMap{})
	if err != nil {
		t.Fatalf("FullIncremental failed: %v", err)
	}
	if result.BuildMap["a.py"] != "pkg/a.py" {
		t.Errorf("BuildMap[a.py] = %q, want pkg/a.py", result.BuildMap["a.py"])
	}
	if _, err := os.Lstat(filepath.Join(artifactRoot, "a.py")); err != nil {
		t.Errorf("expected a.py symlink to be materialized: %v", err)
	}
}

func TestFastIncrementalRejectsRecipeChange(t *testing.T) {
	deps := Deps{}
	_, err := FastIncremental(context.Background(), deps, nil, buildmap.BuildMap{}, nil, true)
	if err == nil {
		t.Fatal("expected an error when a recipe file changed")
	}
	rep, ok := buildtrackerrors.AsReport(err)
	if !ok || rep.Code != buildtrackerrors.BLD003 {
		t.Fatalf("expected BLD003, got %v", err)
	}
}

func TestFastIncrementalSplicesPartialMaps(t *testing.T) {
	sourceRoot := t.TempDir()
	artifactRoot := t.TempDir()
	os.MkdirAll(filepath.Join(sourceRoot, "pkg"), 0755)
	os.WriteFile(filepath.Join(sourceRoot, "pkg", "a.py"), nil, 0644)

	resp, _ := json.Marshal(map[string]buildiface.ChangedTargetAttrs{
		"//pkg:t1": {BuckBasePath: "pkg", BuckBaseModule: "pkg", Srcs: []string{"a.py"}},
	})
	fake := &fakeQuerier{queryResponses: map[string][]byte{
		key([]string{"//pkg:t1", "pkg/a.py"}): resp,
	}}

	deps := Deps{Querier: fake, SourceRoot: sourceRoot, ArtifactRoot: artifactRoot}
	oldMap := buildmap.BuildMap{"unrelated.py": "pkg/unrelated.py"}

	result, err := FastIncremental(context.Background(), deps, []string{"//pkg:t1"}, oldMap, []string{"pkg/a.py"}, false)
	if err != nil {
		t.Fatalf("FastIncremental failed: %v", err)
	}
	if _, ok := result.BuildMap["unrelated.py"]; !ok {
		t.Error("expected prior entries to be preserved")
	}
	if result.BuildMap[filepath.Join("pkg", "a.py")] == "" {
		t.Errorf("expected spliced entry for pkg/a.py, got %+v", result.BuildMap)
	}
}

func TestRestoreMaterializesWithoutQuerying(t *testing.T) {
	sourceRoot := t.TempDir()
	artifactRoot := t.TempDir()
	os.MkdirAll(filepath.Join(sourceRoot, "pkg"), 0755)
	os.WriteFile(filepath.Join(sourceRoot, "pkg", "a.py"), nil, 0644)

	buildMap := buildmap.BuildMap{"a.py": "pkg/a.py"}
	result, err := Restore(buildMap, sourceRoot, artifactRoot)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if len(result.BuildMap) != 1 {
		t.Errorf("expected the restored map to round-trip, got %+v", result.BuildMap)
	}
	if _, err := os.Lstat(filepath.Join(artifactRoot, "a.py")); err != nil {
		t.Errorf("expected a.py symlink: %v", err)
	}
}

func TestLookupHelpers(t *testing.T) {
	m := buildmap.BuildMap{"pkg/a.py": "src/pkg/a.py"}
	idx := buildmap.Index(m)

	sourceRoot := "/repo/src"
	artifactRoot := "/repo/buck-out"

	src, ok := SourcePathForArtifact(idx, sourceRoot, artifactRoot, filepath.Join(artifactRoot, "pkg/a.py"))
	if !ok || src != filepath.Join(sourceRoot, "src/pkg/a.py") {
		t.Fatalf("SourcePathForArtifact = %q, %v", src, ok)
	}

	art, ok := ArtifactPathForSource(idx, sourceRoot, artifactRoot, filepath.Join(sourceRoot, "src/pkg/a.py"))
	if !ok || art != filepath.Join(artifactRoot, "pkg/a.py") {
		t.Fatalf("ArtifactPathForSource = %q, %v", art, ok)
	}
}

func TestAssertTargetSetUnchanged(t *testing.T) {
	if err := AssertTargetSetUnchanged([]string{"//a", "//b"}, []string{"//b", "//a"}); err != nil {
		t.Errorf("expected reordered-but-equal sets to be accepted, got %v", err)
	}

	err := AssertTargetSetUnchanged([]string{"//a"}, []string{"//a", "//b"})
	rep, ok := buildtrackerrors.AsReport(err)
	if !ok || rep.Code != buildtrackerrors.BLD001 {
		t.Fatalf("expected BLD001 for a changed target set, got %v", err)
	}
}
