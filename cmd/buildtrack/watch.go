package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sunholo/buildtrack/internal/buildiface"
	"github.com/sunholo/buildtrack/internal/buildmap"
	"github.com/sunholo/buildtrack/internal/builder"
	"github.com/sunholo/buildtrack/internal/buildtool"
	"github.com/sunholo/buildtrack/internal/modpath"
	"github.com/sunholo/buildtrack/internal/moduletracker"
	"github.com/sunholo/buildtrack/internal/watch"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [target-patterns...]",
		Short: "Watch the search roots, stream module-tracker updates, and (with target-patterns) drive incremental rebuilds",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), args)
		},
	}
}

func runWatch(parent context.Context, patterns []string) error {
	excludes, err := cfg.CompiledExcludes()
	if err != nil {
		return err
	}

	finder := modpath.NewEagerFinder(cfg.SearchRoots, excludes)
	paths, err := finder.FindAll()
	if err != nil {
		return fmt.Errorf("initial module discovery: %w", err)
	}

	tracker := moduletracker.New()
	initial := tracker.NewBatch()
	for _, mp := range paths {
		if err := initial.Apply(moduletracker.Event{Kind: moduletracker.EventNewOrChanged, Path: mp}); err != nil {
			return err
		}
	}
	initial.Finish()
	fmt.Printf("%s initial scan: %d module paths tracked\n", cyan("watch"), len(paths))

	var rebuilder *watchRebuilder
	if len(patterns) > 0 {
		rebuilder, err = newWatchRebuilder(parent, patterns)
		if err != nil {
			return err
		}
	}

	w, err := watch.New(cfg.SearchRoots, excludes)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go w.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			fmt.Println(cyan("watch stopped"))
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			logger.Printf("watch error: %v", err)
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			updates := emitWatchEvent(tracker, ev)
			if rebuilder != nil {
				for _, u := range updates {
					rebuilder.handle(ctx, u)
				}
			}
		}
	}
}

func emitWatchEvent(tracker *moduletracker.Tracker, ev moduletracker.Event) []moduletracker.Update {
	batch := tracker.NewBatch()
	if err := batch.Apply(ev); err != nil {
		logger.Printf("watch: %v", err)
		return nil
	}
	updates := batch.Finish()
	for _, u := range updates {
		fmt.Printf("%s %s %s\n", green(u.Kind), u.Qualifier, describeUpdatePath(u))
	}
	return updates
}

func describeUpdatePath(u moduletracker.Update) string {
	if u.ModulePath == nil {
		return ""
	}
	return u.ModulePath.Raw.RelPath
}

// watchRebuilder drives real incremental builds off the update stream:
// each qualifying update picks a builder.Variant via builder.ChooseVariant
// and applies the corresponding construction, closing the gap where
// FastIncremental was otherwise only exercised by its own unit test.
type watchRebuilder struct {
	deps     builder.Deps
	patterns []string
	targets  []string
	buildMap buildmap.BuildMap
}

// newWatchRebuilder runs an initial full build over patterns so targets
// and buildMap start from a known-good state before any watch event
// picks a cheaper variant against them.
func newWatchRebuilder(ctx context.Context, patterns []string) (*watchRebuilder, error) {
	deps := builder.Deps{
		Querier:      buildtool.New(cfg.BuildTool.Command, cfg.LogTailLines),
		Suffix:       buildiface.SuffixV1,
		SourceRoot:   cfg.SearchRoots[0].Path,
		ArtifactRoot: cfg.ArtifactRoot,
		Opts:         buildtool.Options{Mode: cfg.BuildTool.Mode, IsolationPrefix: cfg.BuildTool.IsolationPrefix},
		Log:          func(line string) { logger.Println(line) },
	}

	oldMap := loadBuildMapState(cfg.ArtifactRoot)
	result, err := builder.FullIncremental(ctx, deps, patterns, oldMap)
	if err != nil {
		return nil, fmt.Errorf("initial watch build: %w", err)
	}
	saveBuildMapState(cfg.ArtifactRoot, result.BuildMap)
	fmt.Printf("%s initial build: %d targets tracked\n", cyan("watch"), len(result.SurvivingTargets))

	return &watchRebuilder{
		deps:     deps,
		patterns: patterns,
		targets:  result.SurvivingTargets,
		buildMap: result.BuildMap,
	}, nil
}

// handle picks a builder variant for u and applies it. A new or removed
// explicit/implicit module path can introduce or retire a target, so
// those updates re-normalize with a full build; a plain content change
// to an already-tracked module path cannot change the target set, so it
// takes the fast path, splicing only the changed source's partial
// rebuild into the existing build map.
func (r *watchRebuilder) handle(ctx context.Context, u moduletracker.Update) {
	targetSetMayChange := u.Kind != moduletracker.UpdateChanged
	variant := builder.ChooseVariant(targetSetMayChange, false)

	var result *builder.Result
	var err error
	switch variant {
	case builder.VariantFull:
		result, err = builder.FullIncremental(ctx, r.deps, r.patterns, r.buildMap)
		if err == nil {
			r.targets = result.SurvivingTargets
		}
	case builder.VariantFast:
		if u.ModulePath == nil {
			return
		}
		changed := filepath.Join(r.deps.SourceRoot, u.ModulePath.Raw.RelPath)
		result, err = builder.FastIncremental(ctx, r.deps, r.targets, r.buildMap, []string{changed}, false)
	default:
		result, err = builder.NormalizedIncremental(ctx, r.deps, r.targets, r.buildMap)
	}
	if err != nil {
		logger.Printf("watch build (%s, %s): %v", variant, u.Qualifier, err)
		return
	}

	r.buildMap = result.BuildMap
	saveBuildMapState(cfg.ArtifactRoot, r.buildMap)
	fmt.Printf("%s %s rebuild for %s: %d artifact events\n", green("build"), variant, u.Qualifier, len(result.Events))
}
