package buildiface

import (
	"github.com/sunholo/buildtrack/internal/buildmap"
	"github.com/sunholo/buildtrack/internal/schema"
)

// MergedSourceDBRecord is one entry in the merged source database's
// dropped_targets field: the conflict that got a target dropped from
// the merge, per spec.md §6.
type MergedSourceDBRecord struct {
	ConflictWith        string `json:"conflict_with"`
	ArtifactPath        string `json:"artifact_path"`
	PreservedSourcePath string `json:"preserved_source_path"`
	DroppedSourcePath   string `json:"dropped_source_path"`
}

// MergedSourceDB is the external JSON shape spec.md §6 calls the
// "merged source database": the lazy/classic builder's output document.
type MergedSourceDB struct {
	BuildMap          buildmap.BuildMap               `json:"build_map"`
	BuiltTargetsCount int                              `json:"built_targets_count"`
	DroppedTargets    map[string]MergedSourceDBRecord `json:"dropped_targets"`
}

// EncodeMergedSourceDB renders a ConstructResult as the external merged
// source-database document (schema.SourceDBV1), using
// schema.MarshalDeterministic so the build map and dropped-target keys
// serialize in a stable order for golden tests and diffable CLI output.
//
// The merge resolver (buildmap.Merge) does not track which earlier
// target contributed the preserved side of a conflict, only the
// artifact key and the two candidate source paths; conflict_with
// therefore names the conflicting artifact key rather than a target
// name, a known narrowing of spec.md §6's record shape.
func EncodeMergedSourceDB(result *ConstructResult) ([]byte, error) {
	doc := MergedSourceDB{
		BuildMap:          result.BuildMap,
		BuiltTargetsCount: len(result.SurvivingTargets),
		DroppedTargets:    make(map[string]MergedSourceDBRecord, len(result.DroppedTargets)),
	}
	for _, dropped := range result.DroppedTargets {
		if len(dropped.Conflicts) == 0 {
			continue
		}
		c := dropped.Conflicts[0]
		doc.DroppedTargets[dropped.Target] = MergedSourceDBRecord{
			ConflictWith:        c.Key,
			ArtifactPath:        c.Key,
			PreservedSourcePath: c.Left,
			DroppedSourcePath:   c.Right,
		}
	}
	return schema.MarshalDeterministic(doc)
}
