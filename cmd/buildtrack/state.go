package main

import (
	"path/filepath"

	"github.com/sunholo/buildtrack/internal/buildmap"
	"github.com/sunholo/buildtrack/internal/sharedstore"
)

// stateSchemaVersion tags the on-disk build-map snapshot cobra's build
// subcommand reads and writes between invocations. Bumping it forces a
// cold start rather than risk decoding a snapshot in a stale shape.
const stateSchemaVersion = "buildtrack.state/v1"

func stateFilePath(artifactRoot string) string {
	return filepath.Join(artifactRoot, ".buildtrack-state.json")
}

// loadBuildMapState reads the prior build map from artifactRoot's state
// file via a sharedstore.Table, falling back to an empty map on cold
// start or a stale/corrupt snapshot (sharedstore.Load's graceful
// degradation contract per spec.md §4.9).
func loadBuildMapState(artifactRoot string) buildmap.BuildMap {
	table := sharedstore.New[string]("artifact")
	res := table.Load(stateFilePath(artifactRoot), stateSchemaVersion)
	if res.Outcome == sharedstore.LoadUnusedError {
		logger.Printf("build-map state unreadable, starting cold: %v", res.Err)
	}

	m := make(buildmap.BuildMap, table.Len())
	for _, e := range table.ToAlist() {
		m[e.Key] = e.Value
	}
	return m
}

// saveBuildMapState persists m to artifactRoot's state file. Failures are
// logged, never fatal — the next invocation simply falls back to cold
// start, matching sharedstore.Table.Save's swallow-and-log contract.
func saveBuildMapState(artifactRoot string, m buildmap.BuildMap) {
	table := sharedstore.New[string]("artifact")
	entries := make([]sharedstore.Entry[string], 0, len(m))
	for artifact, source := range m {
		entries = append(entries, sharedstore.Entry[string]{Key: artifact, Value: source})
	}
	table.OfAlist(entries)
	table.Save(stateFilePath(artifactRoot), stateSchemaVersion, func(err error) {
		logger.Printf("failed to save build-map state: %v", err)
	})
}
