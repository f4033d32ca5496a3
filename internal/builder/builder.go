// Package builder implements the three incremental build-map
// construction variants, restore-from-snapshot, and source/artifact path
// lookup helpers (spec.md §4.5).
package builder

import (
	"context"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/sunholo/buildtrack/internal/artifacts"
	"github.com/sunholo/buildtrack/internal/buildiface"
	"github.com/sunholo/buildtrack/internal/buildmap"
	"github.com/sunholo/buildtrack/internal/buildtool"
	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

// Session identifies one builder's incremental lifetime, so derived
// caches (internal/sharedstore handles) can re-attach to it.
type Session struct {
	ID uuid.UUID
}

// NewSession mints a fresh build session identifier.
func NewSession() Session {
	return Session{ID: uuid.New()}
}

// Deps bundles the collaborators every build variant needs.
type Deps struct {
	Querier      buildiface.Querier
	Suffix       buildiface.SourceDBSuffix
	SourceRoot   string
	ArtifactRoot string
	Opts         buildtool.Options
	Log          buildiface.ConflictLogger
}

// Result is the common shape every build variant and Restore return:
// the new build map, the targets that survived the merge, the targets
// dropped due to merge conflicts (spec.md §6's "merged source database"
// dropped_targets field), and the artifact-path events applied to the
// artifact root.
type Result struct {
	BuildMap         buildmap.BuildMap
	SurvivingTargets []string
	DroppedTargets   []buildiface.DroppedTarget
	Events           buildmap.Difference
}

// FullIncremental re-normalizes target patterns, reconstructs the build
// map from scratch, diffs it against oldMap, and applies the diff to the
// artifact root. Use when the target set may have changed.
func FullIncremental(ctx context.Context, deps Deps, patterns []string, oldMap buildmap.BuildMap) (*Result, error) {
	targets, err := buildiface.Normalize(ctx, deps.Querier, patterns, deps.Opts)
	if err != nil {
		return nil, err
	}
	return construct(ctx, deps, targets, oldMap)
}

// NormalizedIncremental skips re-normalization and reconstructs the
// build map for an already-known target set. Use when the target set is
// unchanged but an unbounded set of files may have changed.
func NormalizedIncremental(ctx context.Context, deps Deps, targets []string, oldMap buildmap.BuildMap) (*Result, error) {
	return construct(ctx, deps, targets, oldMap)
}

func construct(ctx context.Context, deps Deps, targets []string, oldMap buildmap.BuildMap) (*Result, error) {
	constructed, err := buildiface.ConstructBuildMapClassic(ctx, deps.Querier, deps.Suffix, targets, deps.SourceRoot, deps.Opts, deps.Log)
	if err != nil {
		return nil, err
	}
	diff := buildmap.Diff(oldMap, constructed.BuildMap)
	if err := artifacts.Update(deps.SourceRoot, deps.ArtifactRoot, diff); err != nil {
		return nil, err
	}
	return &Result{
		BuildMap:         constructed.BuildMap,
		SurvivingTargets: constructed.SurvivingTargets,
		DroppedTargets:   constructed.DroppedTargets,
		Events:           diff,
	}, nil
}

// FastIncremental skips both re-normalization and a full rebuild. It
// queries only the targets owning changedSourcePaths, splices their
// partial build maps into oldMap, and applies the resulting diff.
// Callers must have already verified the target set is unchanged and
// that recipeFilesChanged — if true, this variant's precondition does
// not hold, and BLD003 is returned instead of silently falling back.
func FastIncremental(ctx context.Context, deps Deps, targets []string, oldMap buildmap.BuildMap, changedSourcePaths []string, recipeFilesChanged bool) (*Result, error) {
	if recipeFilesChanged {
		return nil, buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.BLD003, "a recipe file changed; fast-incremental build is not eligible"))
	}

	records, err := buildiface.QueryChangedTargets(ctx, deps.Querier, targets, changedSourcePaths, deps.Opts)
	if err != nil {
		return nil, err
	}

	spliced := make(buildmap.BuildMap, len(oldMap))
	for k, v := range oldMap {
		spliced[k] = v
	}
	for _, rec := range records {
		for _, pair := range rec.Pairs {
			spliced[pair.Artifact] = pair.Source
		}
	}

	diff := buildmap.Diff(oldMap, spliced)
	if err := artifacts.Update(deps.SourceRoot, deps.ArtifactRoot, diff); err != nil {
		return nil, err
	}
	return &Result{BuildMap: spliced, SurvivingTargets: targets, Events: diff}, nil
}

// Restore materializes the artifact root directly from a pre-existing
// build map (e.g. recovered from a saved-state file) without consulting
// the external build tool, for cold start from a snapshot.
func Restore(buildMap buildmap.BuildMap, sourceRoot, artifactRoot string) (*Result, error) {
	if err := artifacts.Populate(sourceRoot, artifactRoot, buildMap); err != nil {
		return nil, buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.BLD002, "restore failed to materialize saved build map: "+err.Error()))
	}
	return &Result{BuildMap: buildMap}, nil
}

// SourcePathForArtifact resolves an absolute artifact-root path to its
// absolute source-root path via idx, or false if the artifact path is
// unknown.
func SourcePathForArtifact(idx *buildmap.Indexed, sourceRoot, artifactRoot, absArtifactPath string) (string, bool) {
	rel, err := filepath.Rel(artifactRoot, absArtifactPath)
	if err != nil {
		return "", false
	}
	source, ok := idx.LookupSource(filepath.ToSlash(rel))
	if !ok {
		return "", false
	}
	return filepath.Join(sourceRoot, source), true
}

// ArtifactPathForSource resolves an absolute source-root path to its
// (first, sorted) absolute artifact-root path via idx, or false if the
// source path owns no artifact.
func ArtifactPathForSource(idx *buildmap.Indexed, sourceRoot, artifactRoot, absSourcePath string) (string, bool) {
	rel, err := filepath.Rel(sourceRoot, absSourcePath)
	if err != nil {
		return "", false
	}
	artifactsRel := idx.LookupArtifact(filepath.ToSlash(rel))
	if len(artifactsRel) == 0 {
		return "", false
	}
	return filepath.Join(artifactRoot, artifactsRel[0]), true
}
