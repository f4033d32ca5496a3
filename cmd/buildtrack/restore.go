package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sunholo/buildtrack/internal/buildmap"
	"github.com/sunholo/buildtrack/internal/builder"
)

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <build-map.json>",
		Short: "Materialize the artifact tree from a previously saved build map, without consulting the build tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(args[0])
		},
	}
}

func runRestore(buildMapPath string) error {
	data, err := os.ReadFile(buildMapPath)
	if err != nil {
		return fmt.Errorf("reading build map: %w", err)
	}

	m, err := buildmap.FromJSON(data, "sources", false)
	if err != nil {
		return err
	}

	result, err := builder.Restore(m, cfg.SearchRoots[0].Path, cfg.ArtifactRoot)
	if err != nil {
		return err
	}

	saveBuildMapState(cfg.ArtifactRoot, result.BuildMap)
	fmt.Printf("%s materialized %d artifacts from %s\n", green("restore"), len(result.BuildMap), buildMapPath)
	return nil
}
