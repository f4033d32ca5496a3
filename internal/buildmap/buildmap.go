// Package buildmap implements the build map: an immutable, finite relation
// from artifact-relative paths to source-relative paths, with merge,
// difference, and indexed O(1) lookup.
package buildmap

import (
	"bytes"
	"encoding/json"
	"fmt"

	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

// Pair is one (artifact, source) association used when constructing a
// BuildMap from an associative list.
type Pair struct {
	Artifact string
	Source   string
}

// BuildMap is a finite map artifact_rel_path -> source_rel_path. Both
// paths are relative; resolving them to absolute locations requires a
// source root and an artifact root, owned by callers (Artifacts, Builder).
type BuildMap map[string]string

// New constructs a BuildMap from an associative list of pairs.
//
// strict=true rejects any duplicate artifact key, regardless of whether the
// two occurrences agree on the source. strict=false resolves duplicates by
// first-wins.
func New(pairs []Pair, strict bool) (BuildMap, error) {
	m := make(BuildMap, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if seen[p.Artifact] {
			if strict {
				return nil, buildtrackerrors.WrapReport(
					buildtrackerrors.New(buildtrackerrors.MRG002,
						fmt.Sprintf("duplicate artifact key %q", p.Artifact)).
						WithLocation(buildtrackerrors.Location{ArtifactPath: p.Artifact}))
			}
			continue
		}
		seen[p.Artifact] = true
		m[p.Artifact] = p.Source
	}
	return m, nil
}

// FromJSON constructs a BuildMap from an external JSON document shaped as
// {artifact: source, ...}. If container is non-empty, the object is read
// from that top-level field instead (e.g. the per-target source database's
// "sources" field). Key order in the source document is preserved so
// first-wins duplicate resolution is deterministic.
func FromJSON(data []byte, container string, strict bool) (BuildMap, error) {
	raw := data
	if container != "" {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, buildtrackerrors.WrapReport(
				buildtrackerrors.New(buildtrackerrors.IFC003, "malformed source database: "+err.Error()))
		}
		inner, ok := wrapper[container]
		if !ok {
			return nil, buildtrackerrors.WrapReport(
				buildtrackerrors.New(buildtrackerrors.IFC003,
					fmt.Sprintf("source database missing required field %q", container)))
		}
		raw = inner
	}

	pairs, err := decodeOrderedPairs(raw)
	if err != nil {
		return nil, buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.IFC003, "malformed source database: "+err.Error()))
	}
	return New(pairs, strict)
}

// decodeOrderedPairs decodes a flat JSON object of string->string into an
// ordered slice of Pair, preserving the document's key order.
func decodeOrderedPairs(data []byte) ([]Pair, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}

	var pairs []Pair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string key")
		}
		var val string
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("expected a string value for key %q: %w", key, err)
		}
		pairs = append(pairs, Pair{Artifact: key, Source: val})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// Filter returns a new BuildMap retaining only the entries for which pred
// holds.
func Filter(m BuildMap, pred func(artifact, source string) bool) BuildMap {
	out := make(BuildMap, len(m))
	for artifact, source := range m {
		if pred(artifact, source) {
			out[artifact] = source
		}
	}
	return out
}

// housekeepingFiles are generator-emitted artifacts that BuildInterface's
// classic construction filters out of every per-target partial map.
var housekeepingFiles = map[string]bool{
	"__manifest__.py":     true,
	"__test_main__.py":    true,
	"__test_modules__.py": true,
}

// IsHousekeeping reports whether an artifact-relative path names one of the
// generator's housekeeping files.
func IsHousekeeping(artifactRelPath string) bool {
	return housekeepingFiles[artifactRelPath]
}
