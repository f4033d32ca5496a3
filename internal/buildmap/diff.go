package buildmap

import (
	"fmt"
	"sort"

	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

// Tag classifies how an artifact key differs between two build maps.
type Tag int

const (
	// TagNew means the key is present only in the later map.
	TagNew Tag = iota
	// TagDeleted means the key is present only in the earlier map.
	TagDeleted
	// TagChanged means the key is present in both with a different source.
	TagChanged
)

func (t Tag) String() string {
	switch t {
	case TagNew:
		return "New"
	case TagDeleted:
		return "Deleted"
	case TagChanged:
		return "Changed"
	default:
		return "Unknown"
	}
}

// Entry is one tagged change for an artifact key. Source is meaningful for
// TagNew and TagChanged only.
type Entry struct {
	Tag    Tag
	Source string
}

// Difference is a finite map artifact_rel_path -> Entry. Unchanged keys are
// omitted.
type Difference map[string]Entry

// Diff walks both maps once and tags each artifact key: present only in
// current is New, present only in original is Deleted, present in both
// with a different source is Changed. Unchanged keys are omitted.
func Diff(original, current BuildMap) Difference {
	d := make(Difference)
	for k, v := range current {
		if ov, ok := original[k]; !ok {
			d[k] = Entry{Tag: TagNew, Source: v}
		} else if ov != v {
			d[k] = Entry{Tag: TagChanged, Source: v}
		}
	}
	for k := range original {
		if _, ok := current[k]; !ok {
			d[k] = Entry{Tag: TagDeleted}
		}
	}
	return d
}

// StrictApplyDifference rebuilds the post-diff map from orig and d, failing
// if d refers to an artifact key inconsistent with orig: Deleted for a key
// absent from orig, New for a key already present in orig, or Changed for a
// key absent from orig or already present with exactly that value (a no-op
// that could not have produced a genuine Changed entry).
func StrictApplyDifference(orig BuildMap, d Difference) (BuildMap, error) {
	result := make(BuildMap, len(orig))
	for k, v := range orig {
		result[k] = v
	}

	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		entry := d[k]
		existing, present := result[k]
		switch entry.Tag {
		case TagDeleted:
			if !present {
				return nil, buildtrackerrors.WrapReport(
					buildtrackerrors.New(buildtrackerrors.MRG003,
						fmt.Sprintf("Deleted tag for artifact key %q absent from the original map", k)).
						WithLocation(buildtrackerrors.Location{ArtifactPath: k}))
			}
			delete(result, k)
		case TagNew:
			if present {
				return nil, buildtrackerrors.WrapReport(
					buildtrackerrors.New(buildtrackerrors.MRG004,
						fmt.Sprintf("New tag for artifact key %q already present in the original map", k)).
						WithLocation(buildtrackerrors.Location{ArtifactPath: k}))
			}
			result[k] = entry.Source
		case TagChanged:
			if !present || existing == entry.Source {
				return nil, buildtrackerrors.WrapReport(
					buildtrackerrors.New(buildtrackerrors.MRG005,
						fmt.Sprintf("Changed tag for artifact key %q absent from the original map or already present with that value", k)).
						WithLocation(buildtrackerrors.Location{ArtifactPath: k}))
			}
			result[k] = entry.Source
		}
	}
	return result, nil
}
