// Package modpath maps filesystem paths to ModulePath values: a logical
// handle identifying one file by its owning search root, relative path,
// and derived dotted qualifier, with the priority-aware ordering that
// decides which of several files sharing a qualifier "wins".
package modpath

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sunholo/buildtrack/internal/config"
	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

// Raw identifies one file: the search root it was found under, its
// relative path within that root (slash-separated), and whether it should
// be type-checked. Two ModulePaths are equal iff their Raw triples match.
type Raw struct {
	RootIndex       int
	RelPath         string
	ShouldTypeCheck bool
}

// ModulePath is a logical handle to one file.
type ModulePath struct {
	Raw       Raw
	Qualifier string
	IsStub    bool
	IsInit    bool
}

// Equal reports whether two module paths name the same file.
func Equal(a, b ModulePath) bool {
	return a.Raw == b.Raw
}

// Compare defines the total order on module paths sharing a qualifier:
// stubs before implementations, shorter relative paths before longer,
// lower-index search roots before higher, and finally a lexical tie-break
// on relative path so the order is fully deterministic. A negative result
// means a sorts before b (a wins).
func Compare(a, b ModulePath) int {
	if a.IsStub != b.IsStub {
		if a.IsStub {
			return -1
		}
		return 1
	}
	if len(a.Raw.RelPath) != len(b.Raw.RelPath) {
		if len(a.Raw.RelPath) < len(b.Raw.RelPath) {
			return -1
		}
		return 1
	}
	if a.Raw.RootIndex != b.Raw.RootIndex {
		if a.Raw.RootIndex < b.Raw.RootIndex {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Raw.RelPath, b.Raw.RelPath)
}

var sourceSuffixes = map[string]bool{".py": true, ".pyi": true}

// Classify maps an absolute filesystem path to a ModulePath, or returns
// nil when the path is not a valid module candidate: a hidden file, a
// non-source suffix, a path matching any exclude pattern, or a path
// outside every configured search root.
func Classify(absPath string, roots []config.SearchRoot, excludes []*regexp.Regexp) *ModulePath {
	base := filepath.Base(absPath)
	if strings.HasPrefix(base, ".") {
		return nil
	}

	ext := filepath.Ext(absPath)
	if !sourceSuffixes[ext] {
		return nil
	}

	for _, re := range excludes {
		if re.MatchString(absPath) {
			return nil
		}
	}

	for _, root := range roots {
		rel, err := filepath.Rel(root.Path, absPath)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		relSlash := filepath.ToSlash(rel)
		return &ModulePath{
			Raw: Raw{
				RootIndex:       root.Index,
				RelPath:         relSlash,
				ShouldTypeCheck: true,
			},
			Qualifier: qualifierFromRelPath(relSlash),
			IsStub:    ext == ".pyi",
			IsInit:    isInitFile(relSlash),
		}
	}
	return nil
}

// ClassifyRequired is Classify for callers that name a path explicitly
// (a CLI argument, an overlay key) and must surface why it was rejected,
// rather than silently filtering it out of a bulk walk.
func ClassifyRequired(absPath string, roots []config.SearchRoot, excludes []*regexp.Regexp) (*ModulePath, error) {
	for _, re := range excludes {
		if re.MatchString(absPath) {
			return nil, buildtrackerrors.WrapReport(
				buildtrackerrors.New(buildtrackerrors.MOD002, "path rejected by excludes filter: "+absPath))
		}
	}
	if mp := Classify(absPath, roots, excludes); mp != nil {
		return mp, nil
	}
	return nil, buildtrackerrors.WrapReport(
		buildtrackerrors.New(buildtrackerrors.MOD001, "path is outside every configured search root: "+absPath))
}

func isInitFile(relSlash string) bool {
	base := relSlash[strings.LastIndex(relSlash, "/")+1:]
	return strings.TrimSuffix(strings.TrimSuffix(base, ".pyi"), ".py") == "__init__"
}

// qualifierFromRelPath derives the dotted qualifier for a relative path:
// split on "/", strip the .py/.pyi suffix, and collapse a trailing
// __init__ segment into its parent package qualifier.
func qualifierFromRelPath(relSlash string) string {
	stripped := strings.TrimSuffix(strings.TrimSuffix(relSlash, ".pyi"), ".py")
	segments := strings.Split(stripped, "/")
	if len(segments) > 0 && segments[len(segments)-1] == "__init__" {
		segments = segments[:len(segments)-1]
	}
	return strings.Join(segments, ".")
}
