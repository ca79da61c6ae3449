package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bazelbuild/remote-apis-sdks/go/pkg/digest"
	pb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"

	"github.com/remoteexec/recc/internal/fs"
)

// materializeOutputs implements spec's step 9: write every declared output
// file to workingDir/path, and recursively walk every declared output
// directory's Tree.
func (o *Orchestrator) materializeOutputs(ctx context.Context, result *pb.ActionResult, workingDir string) error {
	for _, f := range result.OutputFiles {
		b, err := o.fetchBlob(ctx, f.Digest)
		if err != nil {
			return fmt.Errorf("fetch output %s: %w", f.Path, err)
		}
		if err := writeOutputFile(b, filepath.Join(workingDir, f.Path), f.IsExecutable); err != nil {
			return err
		}
	}
	for _, d := range result.OutputDirectories {
		if err := o.materializeOutputDirectory(ctx, d, workingDir); err != nil {
			return fmt.Errorf("materialize output directory %s: %w", d.Path, err)
		}
	}
	return nil
}

func (o *Orchestrator) materializeOutputDirectory(ctx context.Context, d *pb.OutputDirectory, workingDir string) error {
	root, children, err := o.fetchTree(ctx, d.TreeDigest)
	if err != nil {
		return err
	}
	return o.writeDirectory(ctx, root, children, filepath.Join(workingDir, d.Path))
}

func (o *Orchestrator) writeDirectory(ctx context.Context, dir *pb.Directory, children map[string]*pb.Directory, dest string) error {
	if err := os.MkdirAll(dest, fs.DirPermissions); err != nil {
		return err
	}
	for _, f := range dir.Files {
		b, err := o.fetchBlob(ctx, f.Digest)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", f.Name, err)
		}
		if err := writeOutputFile(b, filepath.Join(dest, f.Name), f.IsExecutable); err != nil {
			return err
		}
	}
	for _, s := range dir.Symlinks {
		target := filepath.Join(dest, s.Name)
		os.Remove(target)
		if err := os.Symlink(s.Target, target); err != nil {
			return err
		}
	}
	for _, sub := range dir.Directories {
		child, ok := children[sub.Digest.Hash]
		if !ok {
			return fmt.Errorf("tree is missing child directory %s", sub.Name)
		}
		if err := o.writeDirectory(ctx, child, children, filepath.Join(dest, sub.Name)); err != nil {
			return err
		}
	}
	return nil
}

func writeOutputFile(b []byte, dest string, executable bool) error {
	mode := os.FileMode(0644)
	if executable {
		mode = 0755
	}
	return fs.WriteFile(bytes.NewReader(b), dest, mode)
}

func (o *Orchestrator) fetchBlob(ctx context.Context, dg *pb.Digest) ([]byte, error) {
	var b []byte
	err := o.retry(ctx, func(ctx context.Context) error {
		var err error
		b, err = o.cas.FetchBlob(ctx, digest.NewFromProtoUnvalidated(dg))
		return err
	})
	return b, err
}

func (o *Orchestrator) fetchTree(ctx context.Context, treeDigest *pb.Digest) (*pb.Directory, map[string]*pb.Directory, error) {
	var root *pb.Directory
	var children map[string]*pb.Directory
	err := o.retry(ctx, func(ctx context.Context) error {
		var err error
		root, children, err = o.cas.FetchTree(ctx, digest.NewFromProtoUnvalidated(treeDigest))
		return err
	})
	return root, children, err
}

// forwardOutput implements spec's step 10 and the "inline stdout/stderr
// priority" design note: when the server sent both raw bytes and a
// digest, the raw bytes win and no fetch happens.
func (o *Orchestrator) forwardOutput(ctx context.Context, result *pb.ActionResult) error {
	stdout, err := o.resolveOutputBlob(ctx, result.StdoutRaw, result.StdoutDigest)
	if err != nil {
		return fmt.Errorf("stdout: %w", err)
	}
	os.Stdout.Write(stdout)

	stderr, err := o.resolveOutputBlob(ctx, result.StderrRaw, result.StderrDigest)
	if err != nil {
		return fmt.Errorf("stderr: %w", err)
	}
	os.Stderr.Write(stderr)
	return nil
}

func (o *Orchestrator) resolveOutputBlob(ctx context.Context, inline []byte, dg *pb.Digest) ([]byte, error) {
	if len(inline) > 0 {
		return inline, nil
	}
	if dg == nil || dg.SizeBytes == 0 {
		return nil, nil
	}
	return o.fetchBlob(ctx, dg)
}
