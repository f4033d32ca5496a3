// Package artifacts materializes a build map as a tree of symbolic links
// on disk and keeps it in sync with incremental build-map differences.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sunholo/buildtrack/internal/buildmap"
	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

// Populate walks every (artifact, source) pair in m and creates a symbolic
// link at artifactRoot/artifact pointing to sourceRoot/source. Parent
// directories are created with permission 0777 subject to process umask.
// Ordering between entries is unspecified. Fails if either root is not a
// directory or any link creation fails.
func Populate(sourceRoot, artifactRoot string, m buildmap.BuildMap) error {
	if err := requireDir(sourceRoot); err != nil {
		return err
	}
	if err := requireDir(artifactRoot); err != nil {
		return err
	}

	for artifactRel, sourceRel := range m {
		if err := createLink(sourceRoot, artifactRoot, artifactRel, sourceRel); err != nil {
			return err
		}
	}
	return nil
}

// Update interprets each entry of a difference against an already
// materialized artifact tree: New creates a link, Deleted removes one, and
// Changed atomically replaces a link's target (remove then create). The
// operation is not transactional: on error, application stops and any
// links already applied remain in place.
func Update(sourceRoot, artifactRoot string, diff buildmap.Difference) error {
	for artifactRel, entry := range diff {
		switch entry.Tag {
		case buildmap.TagNew:
			if err := createLink(sourceRoot, artifactRoot, artifactRel, entry.Source); err != nil {
				return err
			}
		case buildmap.TagDeleted:
			if err := removeLink(artifactRoot, artifactRel); err != nil {
				return err
			}
		case buildmap.TagChanged:
			if err := removeLink(artifactRoot, artifactRel); err != nil {
				return err
			}
			if err := createLink(sourceRoot, artifactRoot, artifactRel, entry.Source); err != nil {
				return err
			}
		}
	}
	return nil
}

func requireDir(root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.ART001, fmt.Sprintf("%q is not a directory", root)))
	}
	return nil
}

func createLink(sourceRoot, artifactRoot, artifactRel, sourceRel string) error {
	linkPath := filepath.Join(artifactRoot, artifactRel)
	target := filepath.Join(sourceRoot, sourceRel)

	if err := os.MkdirAll(filepath.Dir(linkPath), 0777); err != nil {
		return buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.ART002, "failed to create parent directory for "+linkPath+": "+err.Error()).
				WithLocation(buildtrackerrors.Location{ArtifactPath: artifactRel}))
	}

	if err := os.Symlink(target, linkPath); err != nil {
		if existing, statErr := os.Lstat(linkPath); statErr == nil && existing.Mode()&os.ModeSymlink == 0 {
			return buildtrackerrors.WrapReport(
				buildtrackerrors.New(buildtrackerrors.ART005,
					fmt.Sprintf("artifact key %q collides with a non-symlink on disk", artifactRel)).
					WithLocation(buildtrackerrors.Location{ArtifactPath: artifactRel}))
		}
		return buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.ART002, "failed to create symlink "+linkPath+": "+err.Error()).
				WithLocation(buildtrackerrors.Location{ArtifactPath: artifactRel}))
	}
	return nil
}

func removeLink(artifactRoot, artifactRel string) error {
	linkPath := filepath.Join(artifactRoot, artifactRel)
	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		return buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.ART003, "failed to remove symlink "+linkPath+": "+err.Error()).
				WithLocation(buildtrackerrors.Location{ArtifactPath: artifactRel}))
	}
	return nil
}
