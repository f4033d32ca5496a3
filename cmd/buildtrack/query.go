package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sunholo/buildtrack/internal/buildmap"
	"github.com/sunholo/buildtrack/internal/modpath"
	"github.com/sunholo/buildtrack/internal/moduletracker"
	"github.com/sunholo/buildtrack/internal/overlay"
	"github.com/sunholo/buildtrack/internal/shell"
)

func newQueryCmd() *cobra.Command {
	var interactive bool
	var artifact string
	var lazy bool

	cmd := &cobra.Command{
		Use:   "query [qualifier]",
		Short: "Look up a qualifier's winning module path, or launch the interactive shell",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if lazy {
				if len(args) != 1 {
					return fmt.Errorf("query --lazy requires a qualifier argument")
				}
				return runLazyQuery(args[0])
			}

			tracker, idx, err := buildTrackerAndIndex()
			if err != nil {
				return err
			}

			if interactive {
				excludes, err := cfg.CompiledExcludes()
				if err != nil {
					return err
				}
				ov := overlay.New(tracker, cfg.SearchRoots, excludes)
				sh := shell.New(ov, idx, cfg.SearchRoots[0].Path, cfg.ArtifactRoot)
				sh.Overlay = ov
				return sh.Run()
			}

			if artifact != "" {
				sh := shell.New(tracker, idx, cfg.SearchRoots[0].Path, cfg.ArtifactRoot)
				sh.Handle("lookup_artifact " + artifact)
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("query requires a qualifier argument, --artifact, or --interactive")
			}
			printLookup(tracker, args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "launch the interactive query shell")
	cmd.Flags().StringVar(&artifact, "artifact", "", "resolve an absolute source path to its artifact path instead of a qualifier lookup")
	cmd.Flags().BoolVar(&lazy, "lazy", false, "discover the qualifier on demand via the lazy finder instead of eagerly scanning every search root first")
	return cmd
}

// qualifierLookup is the subset of *moduletracker.Tracker and
// *moduletracker.LazyTracker printLookup needs.
type qualifierLookup interface {
	LookUpQualifier(q string) moduletracker.LookupResult
	ModuleNotTracked(q string) error
}

func printLookup(tracker qualifierLookup, qualifier string) {
	res := tracker.LookUpQualifier(qualifier)
	switch res.Kind {
	case moduletracker.LookupExplicit:
		fmt.Printf("%s %s -> %s\n", green("explicit"), qualifier, res.Explicit.Raw.RelPath)
	case moduletracker.LookupImplicit:
		fmt.Printf("%s %s (namespace package)\n", green("implicit"), qualifier)
	default:
		err := tracker.ModuleNotTracked(qualifier)
		fmt.Printf("%s %v\n", red("not found"), err)
	}
}

// runLazyQuery builds a fresh LazyTracker over a LazyFinder and looks up
// qualifier by discovering it on demand, rather than eagerly scanning
// every search root first (spec.md §4.6/§4.7's lazy discovery flavor).
func runLazyQuery(qualifier string) error {
	excludes, err := cfg.CompiledExcludes()
	if err != nil {
		return err
	}
	finder := modpath.NewLazyFinder(cfg.SearchRoots, excludes)
	lt := moduletracker.NewLazy(finder)
	printLookup(lt, qualifier)
	return nil
}

// buildTrackerAndIndex populates a fresh moduletracker.Tracker by eagerly
// walking the configured search roots, and indexes the persisted build
// map for artifact/source lookups. Both are throwaway, process-lifetime
// views — spec.md §5's single-writer model means a long-lived watch
// process, not this one-shot query command, owns the tracker of record.
func buildTrackerAndIndex() (*moduletracker.Tracker, *buildmap.Indexed, error) {
	excludes, err := cfg.CompiledExcludes()
	if err != nil {
		return nil, nil, err
	}

	finder := modpath.NewEagerFinder(cfg.SearchRoots, excludes)
	paths, err := finder.FindAll()
	if err != nil {
		return nil, nil, fmt.Errorf("discovering module paths: %w", err)
	}

	tracker := moduletracker.New()
	batch := tracker.NewBatch()
	for _, mp := range paths {
		if err := batch.Apply(moduletracker.Event{Kind: moduletracker.EventNewOrChanged, Path: mp}); err != nil {
			return nil, nil, err
		}
	}
	batch.Finish()

	buildMap := loadBuildMapState(cfg.ArtifactRoot)
	return tracker, buildmap.Index(buildMap), nil
}
