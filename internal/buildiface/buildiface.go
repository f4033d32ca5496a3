// Package buildiface normalizes target specifications and orchestrates
// per-target source-database loads and merges against the external build
// tool, in both its classic (v1/v2) and lazy flavors.
package buildiface

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sunholo/buildtrack/internal/buildmap"
	"github.com/sunholo/buildtrack/internal/buildtool"
	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

// Querier is the subset of *buildtool.Tool this package depends on; tests
// substitute a fake.
type Querier interface {
	Query(ctx context.Context, args []string, opts buildtool.Options) ([]byte, error)
	Build(ctx context.Context, args []string, opts buildtool.Options) ([]byte, error)
}

// SourceDBSuffix selects how the build tool's build-output map keys encode
// the target a source database belongs to: "#source-db" for v1,
// "[source-db]" for v2.
type SourceDBSuffix string

const (
	SuffixV1 SourceDBSuffix = "#source-db"
	SuffixV2 SourceDBSuffix = "[source-db]"
)

// TargetAttrs is the per-target attribute bag a normalize query returns.
type TargetAttrs struct {
	Kind   string   `json:"kind"`
	Labels []string `json:"labels,omitempty"`
}

var normalizeKinds = map[string]bool{
	"python-library": true,
	"python-binary":  true,
	"python-test":    true,
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

func passesNormalizeFilter(attrs TargetAttrs) bool {
	if hasLabel(attrs.Labels, "generated") || hasLabel(attrs.Labels, "no_pyre") {
		return false
	}
	return normalizeKinds[attrs.Kind] || hasLabel(attrs.Labels, "unittest-library")
}

// Normalize issues a query resolving target patterns (possibly containing
// wildcards and filter operators) to the set of concrete targets of kinds
// python-library/binary/test, excluding generated/no_pyre-labeled targets
// and including unittest-library-labeled ones. Returns a deduplicated
// sorted vector.
func Normalize(ctx context.Context, q Querier, patterns []string, opts buildtool.Options) ([]string, error) {
	raw, err := q.Query(ctx, patterns, opts)
	if err != nil {
		return nil, err
	}

	var targets map[string]TargetAttrs
	if err := json.Unmarshal(raw, &targets); err != nil {
		return nil, buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.IFC001, "malformed query output: "+err.Error()))
	}

	result := make([]string, 0, len(targets))
	for name, attrs := range targets {
		if passesNormalizeFilter(attrs) {
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result, nil
}

// ConstructResult is the outcome of merging per-target partial build maps.
type ConstructResult struct {
	BuildMap         buildmap.BuildMap
	SurvivingTargets []string
	DroppedTargets   []DroppedTarget
}

// DroppedTarget records a target excluded from the merge because its
// partial build map conflicted with an earlier-merged target.
type DroppedTarget struct {
	Target    string
	Conflicts []buildmap.Conflict
}

// ConflictLogger receives one line per dropped target for caller-visible
// logging, per spec.md §7 ("merge conflicts... must be user-visible").
type ConflictLogger func(line string)

// ConstructBuildMapClassic builds each concrete target's source database,
// loads the resulting partial build maps from disk, and merges them in
// target-name order using the name-or-content-equal resolver. On conflict
// the offending target is dropped and the conflict is logged; the merge
// continues with the remaining targets.
func ConstructBuildMapClassic(ctx context.Context, q Querier, suffix SourceDBSuffix, targets []string, sourceRoot string, opts buildtool.Options, log ConflictLogger) (*ConstructResult, error) {
	sorted := append([]string(nil), targets...)
	sort.Strings(sorted)

	dbPaths, err := buildSourceDBPaths(ctx, q, suffix, sorted, opts)
	if err != nil {
		return nil, err
	}

	resolver := buildmap.NameOrContentEqual(sourceRoot, buildmap.ConflictLogger(func(line string) {
		if log != nil {
			log(line)
		}
	}))

	merged := buildmap.BuildMap{}
	result := &ConstructResult{}

	for _, target := range sorted {
		path, ok := dbPaths[target]
		if !ok {
			continue
		}
		partial, err := loadPartial(path)
		if err != nil {
			return nil, err
		}
		partial = buildmap.Filter(partial, func(artifact, _ string) bool { return !buildmap.IsHousekeeping(artifact) })

		candidate, conflicts := buildmap.Merge(merged, partial, resolver)
		if len(conflicts) > 0 {
			result.DroppedTargets = append(result.DroppedTargets, DroppedTarget{Target: target, Conflicts: conflicts})
			if log != nil {
				log(fmt.Sprintf("dropping target %s: %d merge conflict(s)", target, len(conflicts)))
			}
			continue
		}
		merged = candidate
		result.SurvivingTargets = append(result.SurvivingTargets, target)
	}

	result.BuildMap = merged
	return result, nil
}

// ConstructBuildMapLazy determines the targets that own the given working
// set of source paths and merges only their partial build maps, using the
// same conflict policy as the classic construction.
func ConstructBuildMapLazy(ctx context.Context, q Querier, suffix SourceDBSuffix, sourceRoot string, sourcePaths []string, opts buildtool.Options, log ConflictLogger) (*ConstructResult, error) {
	targets, err := queryOwnerTargets(ctx, q, sourcePaths, opts)
	if err != nil {
		return nil, err
	}
	return ConstructBuildMapClassic(ctx, q, suffix, targets, sourceRoot, opts, log)
}

func queryOwnerTargets(ctx context.Context, q Querier, sourcePaths []string, opts buildtool.Options) ([]string, error) {
	args := append([]string{"owner"}, sourcePaths...)
	raw, err := q.Query(ctx, args, opts)
	if err != nil {
		return nil, err
	}

	var targets []string
	if err := json.Unmarshal(raw, &targets); err != nil {
		return nil, buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.IFC001, "malformed owner-query output: "+err.Error()))
	}
	sort.Strings(targets)
	return targets, nil
}

func buildSourceDBPaths(ctx context.Context, q Querier, suffix SourceDBSuffix, targets []string, opts buildtool.Options) (map[string]string, error) {
	raw, err := q.Build(ctx, targets, opts)
	if err != nil {
		return nil, err
	}

	var keyed map[string]string
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil, buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.IFC002, "malformed build output: "+err.Error()))
	}

	paths := make(map[string]string, len(keyed))
	for key, path := range keyed {
		target := strings.TrimSuffix(key, string(suffix))
		paths[target] = path
	}
	return paths, nil
}

func loadPartial(path string) (buildmap.BuildMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.IFC003, "failed to read source database "+path+": "+err.Error()))
	}
	return buildmap.FromJSON(data, "sources", false)
}

// ChangedTargetAttrs is the per-target attribute bag a changed-targets
// query returns.
type ChangedTargetAttrs struct {
	BuckBasePath   string   `json:"buck.base_path,omitempty"`
	BuckBaseModule string   `json:"buck.base_module,omitempty"`
	BaseModule     string   `json:"base_module,omitempty"`
	Srcs           []string `json:"srcs,omitempty"`
}

// ChangedTargetRecord is sufficient to build a partial build map for one
// owning target without a full re-query.
type ChangedTargetRecord struct {
	SourceBasePath   string
	ArtifactBasePath string
	Pairs            []buildmap.Pair
}

// QueryChangedTargets returns, for each target in targets that owns one of
// changedSourcePaths, a ChangedTargetRecord describing the artifact/source
// pairs it would contribute.
func QueryChangedTargets(ctx context.Context, q Querier, targets []string, changedSourcePaths []string, opts buildtool.Options) (map[string]ChangedTargetRecord, error) {
	args := append(append([]string(nil), targets...), changedSourcePaths...)
	raw, err := q.Query(ctx, args, opts)
	if err != nil {
		return nil, err
	}

	var attrs map[string]ChangedTargetAttrs
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.IFC001, "malformed changed-targets query output: "+err.Error()))
	}

	result := make(map[string]ChangedTargetRecord, len(attrs))
	for target, a := range attrs {
		baseModule := a.BuckBaseModule
		if baseModule == "" {
			baseModule = a.BaseModule
		}

		var pairs []buildmap.Pair
		for _, src := range a.Srcs {
			if strings.HasPrefix(src, "//") {
				continue
			}
			artifactRel := filepath.Join(strings.ReplaceAll(baseModule, ".", "/"), filepath.Base(src))
			pairs = append(pairs, buildmap.Pair{Artifact: artifactRel, Source: filepath.Join(a.BuckBasePath, src)})
		}

		result[target] = ChangedTargetRecord{
			SourceBasePath:   a.BuckBasePath,
			ArtifactBasePath: baseModule,
			Pairs:            pairs,
		}
	}
	return result, nil
}
