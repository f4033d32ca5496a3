package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sunholo/buildtrack/internal/buildiface"
	"github.com/sunholo/buildtrack/internal/buildmap"
	"github.com/sunholo/buildtrack/internal/builder"
	"github.com/sunholo/buildtrack/internal/buildtool"
	"github.com/sunholo/buildtrack/internal/sharedstore"
)

func newBuildCmd() *cobra.Command {
	var variant string

	cmd := &cobra.Command{
		Use:   "build [target-patterns...]",
		Short: "Construct or refresh the build map and materialize the artifact tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), args, variant)
		},
	}

	cmd.Flags().StringVar(&variant, "variant", "full", "incremental variant: full or normalized")
	return cmd
}

func runBuild(ctx context.Context, patterns []string, variant string) error {
	tool := buildtool.New(cfg.BuildTool.Command, cfg.LogTailLines)
	deps := builder.Deps{
		Querier:      tool,
		Suffix:       buildiface.SuffixV1,
		SourceRoot:   cfg.SearchRoots[0].Path,
		ArtifactRoot: cfg.ArtifactRoot,
		Opts:         buildtool.Options{Mode: cfg.BuildTool.Mode, IsolationPrefix: cfg.BuildTool.IsolationPrefix},
		Log: func(line string) {
			logger.Println(line)
		},
	}

	session := builder.NewSession()
	oldMap := loadBuildMapState(cfg.ArtifactRoot)

	var result *builder.Result
	var err error

	switch variant {
	case "full":
		result, err = builder.FullIncremental(ctx, deps, patterns, oldMap)
	case "normalized":
		result, err = builder.NormalizedIncremental(ctx, deps, patterns, oldMap)
	default:
		return fmt.Errorf("build --variant must be full or normalized (use 'buildtrack restore' or a watch-driven fast path for fast-incremental builds), got %q", variant)
	}
	if err != nil {
		return err
	}

	saveBuildMapState(cfg.ArtifactRoot, result.BuildMap)
	if err := writeMergedSourceDB(cfg.ArtifactRoot, result); err != nil {
		logger.Printf("failed to write merged source database: %v", err)
	}

	handles := sharedstore.NewHandleTable()
	for artifact := range result.BuildMap {
		handles.Track(sharedstore.Handle(session.ID.String()), artifact)
	}

	fmt.Printf("%s session %s: %d targets (%d dropped), %d artifacts (%d new, %d changed, %d deleted)\n",
		green("build"), session.ID, len(result.SurvivingTargets), len(result.DroppedTargets),
		len(handles.Keys(sharedstore.Handle(session.ID.String()))),
		countTag(result.Events, buildmap.TagNew), countTag(result.Events, buildmap.TagChanged), countTag(result.Events, buildmap.TagDeleted))
	return nil
}

// writeMergedSourceDB persists the build's merged source-database
// document (spec.md §6) alongside the artifact root, for downstream
// tooling or diagnostics to consume independent of this process.
func writeMergedSourceDB(artifactRoot string, result *builder.Result) error {
	data, err := buildiface.EncodeMergedSourceDB(&buildiface.ConstructResult{
		BuildMap:         result.BuildMap,
		SurvivingTargets: result.SurvivingTargets,
		DroppedTargets:   result.DroppedTargets,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(artifactRoot, ".buildtrack-sourcedb.json"), data, 0644)
}

func countTag(events buildmap.Difference, want buildmap.Tag) int {
	n := 0
	for _, entry := range events {
		if entry.Tag == want {
			n++
		}
	}
	return n
}
