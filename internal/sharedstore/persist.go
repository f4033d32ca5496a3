package sharedstore

import (
	"encoding/json"
	"os"

	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

// envelope is the on-disk representation of a Table snapshot: a version
// tag (checked against the caller's expected version before entries are
// applied) and the entries themselves.
type envelope[V any] struct {
	Version string     `json:"version"`
	Entries []Entry[V] `json:"entries"`
}

// SaveLogger receives a save failure for caller-side logging; save
// errors never propagate, per spec.md §4.9 ("save errors are logged and
// swallowed").
type SaveLogger func(err error)

// Save serializes the table to path under the given version tag. A
// failure is reported to log (if non-nil) and otherwise swallowed.
func (t *Table[V]) Save(path, version string, log SaveLogger) {
	t.mu.RLock()
	env := envelope[V]{Version: version, Entries: t.toAlistLocked()}
	t.mu.RUnlock()

	data, err := json.Marshal(env)
	if err != nil {
		if log != nil {
			log(buildtrackerrors.WrapReport(buildtrackerrors.New(buildtrackerrors.STO001, "failed to encode snapshot: "+err.Error())))
		}
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		if log != nil {
			log(buildtrackerrors.WrapReport(buildtrackerrors.New(buildtrackerrors.STO001, "failed to write snapshot "+path+": "+err.Error())))
		}
	}
}

// LoadOutcome is the result of Load: either the table was populated, or
// it was left unused for one of two reasons.
type LoadOutcome int

const (
	LoadOK LoadOutcome = iota
	LoadUnusedError                 // I/O or decode failure
	LoadUnusedStale                 // on-disk version does not match what the caller expected
)

// LoadResult reports Load's outcome; Err is set only for LoadUnusedError.
type LoadResult struct {
	Outcome LoadOutcome
	Err     error
}

// Load reads path and, if its version tag matches expectedVersion,
// populates the table from its entries. On any I/O or decode failure it
// returns LoadUnusedError with the underlying STO001 report; on a
// version mismatch it returns LoadUnusedStale without error (the caller
// treats this exactly like a cold start).
func (t *Table[V]) Load(path, expectedVersion string) LoadResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadResult{Outcome: LoadUnusedError, Err: buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.STO001, "failed to read snapshot "+path+": "+err.Error()))}
	}

	var env envelope[V]
	if err := json.Unmarshal(data, &env); err != nil {
		return LoadResult{Outcome: LoadUnusedError, Err: buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.STO001, "failed to decode snapshot "+path+": "+err.Error()))}
	}

	if env.Version != expectedVersion {
		return LoadResult{Outcome: LoadUnusedStale}
	}

	t.OfAlist(env.Entries)
	return LoadResult{Outcome: LoadOK}
}
