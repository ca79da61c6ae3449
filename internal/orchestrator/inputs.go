package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bazelbuild/remote-apis-sdks/go/pkg/digest"
	"github.com/bazelbuild/remote-apis-sdks/go/pkg/uploadinfo"
	pb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"

	"github.com/remoteexec/recc/internal/command"
	"github.com/remoteexec/recc/internal/deps"
	"github.com/remoteexec/recc/internal/fs"
	"github.com/remoteexec/recc/internal/merkle"
	"github.com/remoteexec/recc/internal/pathutil"
)

// computeInputs implements spec's step 3: DEPS_OVERRIDE wins outright,
// then DEPS_DIRECTORY_OVERRIDE ships a whole tree, and only then does
// DepsRunner actually run the dependency-discovery command.
func (o *Orchestrator) computeInputs(ctx context.Context, pc *command.ParsedCommand, cwd string) ([]string, error) {
	if o.cfg.DepsOverride != nil {
		return o.cfg.DepsOverride, nil
	}
	if o.cfg.Deps.DirectoryOverride != "" {
		return walkDirectory(o.cfg.Deps.DirectoryOverride)
	}
	env := mergeEnv(os.Environ(), o.cfg.DepsEnv)
	return o.depsRunner.Run(ctx, pc, cwd, env, 0, deps.FilterOptions{
		ProjectRoot:      o.cfg.ProjectRoot,
		WorkingDirectory: cwd,
		ExcludePaths:     o.cfg.Deps.ExcludePaths,
		Products:         pc.Products,
	})
}

func walkDirectory(root string) ([]string, error) {
	var files []string
	err := fs.WalkMode(root, func(path string, mode fs.Mode) error {
		if mode.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: walk deps directory %s: %w", root, err)
	}
	return files, nil
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := append([]string{}, base...)
	for k, v := range overrides {
		out = append(out, k+"="+v)
	}
	return out
}

// buildMerkleTree lays every discovered input path into a NestedDirectory
// rooted at o.cfg.ProjectRoot, hashing file content as it goes. Paths
// outside the project root (possible with RECC_DEPS_OVERRIDE or
// RECC_DEPS_DIRECTORY_OVERRIDE, which skip the dependency filter) are
// placed under a path mirroring
// their absolute location with the leading "/" stripped, since
// merkle.NestedDirectory rejects paths that escape its root via "..".
func (o *Orchestrator) buildMerkleTree(paths []string, cwd string) (*merkle.NestedDirectory, merkle.Blobs, error) {
	nd := merkle.New()
	blobs := merkle.Blobs{}
	seen := map[string]bool{}
	for _, p := range paths {
		rel := inputRelPath(p, cwd, o.cfg.ProjectRoot)
		if seen[rel] {
			continue
		}
		seen[rel] = true

		abs := pathutil.MakeAbsolute(p, cwd)
		info, err := os.Lstat(abs)
		if err != nil {
			return nil, nil, fmt.Errorf("stat input %s: %w", abs, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(abs)
			if err != nil {
				return nil, nil, fmt.Errorf("read symlink %s: %w", abs, err)
			}
			if err := nd.AddSymlink(rel, target); err != nil {
				return nil, nil, err
			}
			continue
		}

		dg, err := digestFile(abs, info.Size())
		if err != nil {
			return nil, nil, fmt.Errorf("digest input %s: %w", abs, err)
		}
		if err := nd.AddFile(rel, dg, info.Mode()&0111 != 0); err != nil {
			return nil, nil, err
		}
		merkle.AddBlobEntry(blobs, uploadinfo.EntryFromFile(dg, abs))
	}
	return nd, blobs, nil
}

// inputRelPath resolves an input path p to its place in the tree rooted at
// root. p is resolved against cwd first, exactly like the content-read path
// in buildMerkleTree below, since a relative DepsRunner path like
// "../include/foo.h" is relative to the invocation's working directory, not
// to the project root. Only once that resolution produces the real absolute
// path is it rebased onto root for tree placement.
func inputRelPath(p, cwd, root string) string {
	abs := pathutil.MakeAbsolute(p, cwd)
	if root != "" && pathutil.HasPathPrefix(abs, root) {
		return pathutil.MakeRelative(abs, root)
	}
	return strings.TrimPrefix(abs, "/")
}

func digestFile(path string, size int64) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return digest.Digest{}, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return digest.Digest{}, err
	}
	return digest.NewFromProtoUnvalidated(&pb.Digest{
		Hash:      hex.EncodeToString(h.Sum(nil)),
		SizeBytes: size,
	}), nil
}
