package buildmap

import (
	"os"
	"path/filepath"
)

// Conflict records that two partial build maps disagreed on the source for
// an artifact key and the resolver refused to pick one.
type Conflict struct {
	Key   string
	Left  string
	Right string
}

// Resolver reconciles two candidate source paths for the same artifact key.
// It returns the chosen source and true, or ("", false) to report a
// conflict.
type Resolver func(key, left, right string) (chosen string, ok bool)

// Merge returns a map containing every key from either side. Keys present
// in both are reconciled by resolve; when it refuses, the conflict is
// recorded and the left-hand value is retained (callers that need strict
// merging should treat any returned conflict as fatal for the whole
// operation, e.g. dropping the target that produced the right-hand map).
func Merge(left, right BuildMap, resolve Resolver) (BuildMap, []Conflict) {
	out := make(BuildMap, len(left)+len(right))
	for k, v := range left {
		out[k] = v
	}

	var conflicts []Conflict
	for k, rv := range right {
		lv, present := out[k]
		if !present {
			out[k] = rv
			continue
		}
		if lv == rv {
			continue
		}
		chosen, ok := resolve(k, lv, rv)
		if !ok {
			conflicts = append(conflicts, Conflict{Key: k, Left: lv, Right: rv})
			continue
		}
		out[k] = chosen
	}
	return out, conflicts
}

// NameEqual accepts a merge iff both sides already agree on the source;
// any genuine disagreement is reported as a conflict.
func NameEqual(key, left, right string) (string, bool) {
	if left == right {
		return left, true
	}
	return "", false
}

// ConflictLogger receives a human-readable line when NameOrContentEqual
// resolves a conflict by falling back to content comparison.
type ConflictLogger func(line string)

// NameOrContentEqual builds a Resolver that also accepts two distinct
// source paths when the files they name have byte-identical content under
// sourceRoot, logging that the left-hand (first) binding was kept.
func NameOrContentEqual(sourceRoot string, log ConflictLogger) Resolver {
	return func(key, left, right string) (string, bool) {
		if left == right {
			return left, true
		}
		leftBytes, leftErr := os.ReadFile(filepath.Join(sourceRoot, left))
		rightBytes, rightErr := os.ReadFile(filepath.Join(sourceRoot, right))
		if leftErr != nil || rightErr != nil {
			return "", false
		}
		if string(leftBytes) != string(rightBytes) {
			return "", false
		}
		if log != nil {
			log("merge conflict on " + key + ": " + left + " and " + right + " are byte-identical, keeping " + left)
		}
		return left, true
	}
}
