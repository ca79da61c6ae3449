// casupload builds a directory tree out of the given paths and uploads
// it to the CAS, printing the resulting root digest's hash and size. It
// shares recc's connection setup but none of its compiler-specific
// pipeline, so it's a separate binary rather than a recc subcommand.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bazelbuild/remote-apis-sdks/go/pkg/digest"
	"github.com/bazelbuild/remote-apis-sdks/go/pkg/uploadinfo"
	pb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"

	"github.com/remoteexec/recc/internal/auth"
	"github.com/remoteexec/recc/internal/cas"
	"github.com/remoteexec/recc/internal/cli"
	"github.com/remoteexec/recc/internal/fs"
	"github.com/remoteexec/recc/internal/merkle"
	"github.com/remoteexec/recc/internal/metrics"
	"github.com/remoteexec/recc/internal/pathutil"
	"github.com/remoteexec/recc/internal/reccconfig"
	"github.com/remoteexec/recc/internal/remoteclient"
)

var opts = struct {
	Usage       string
	Verbosity   cli.Verbosity `short:"v" long:"verbosity" default:"warning" description:"Verbosity of output (higher number = more output)"`
	InstallPath string        `long:"install_path" description:"Install prefix to look for etc/recc config under" default:"/usr/local"`
	Args        struct {
		Paths []string `positional-arg-name:"path" description:"Files or directories to upload"`
	} `positional-args:"true" required:"true"`
}{
	Usage: `
casupload builds a Merkle tree over the given paths and uploads it to the
CAS configured by RECC_CAS_SERVER (or RECC_SERVER). It prints the root
directory's digest as "<hash> <size>" on success, the same format CAS
digests are printed everywhere else in recc's output.
`,
}

func main() {
	cli.ParseFlagsOrDie("casupload", &opts)
	cli.InitLogging(opts.Verbosity)

	cfg, err := reccconfig.Load(opts.InstallPath)
	if err != nil {
		cli.Log.Fatalf("failed to load configuration: %s", err)
	}

	sink := metrics.New(cfg.MetricsGatewayURL)
	defer sink.Push()

	ctx := context.Background()
	sdk, err := remoteclient.Dial(ctx, cfg.Remote, auth.NullSession{}, sink)
	if err != nil {
		cli.Log.Fatalf("failed to connect to CAS: %s", err)
	}
	client := cas.New(sdk)

	nd, blobs, err := buildTree(opts.Args.Paths)
	if err != nil {
		cli.Log.Fatalf("%s", err)
	}
	root, err := merkle.ToDigest(nd, blobs)
	if err != nil {
		cli.Log.Fatalf("failed to digest input tree: %s", err)
	}

	if _, err := client.Upload(ctx, blobs); err != nil {
		cli.Log.Fatalf("upload failed: %s", err)
	}
	fmt.Printf("%s %d\n", root.Hash, root.Size)
}

// buildTree walks every given path and adds its files, directories and
// symlinks to a single NestedDirectory rooted at the current directory,
// mirroring recc's own input-tree construction in internal/orchestrator.
func buildTree(paths []string) (*merkle.NestedDirectory, merkle.Blobs, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, err
	}
	nd := merkle.New()
	blobs := merkle.Blobs{}
	for _, p := range paths {
		abs := pathutil.MakeAbsolute(p, cwd)
		rel := pathutil.MakeRelative(abs, cwd)
		err := fs.WalkMode(abs, func(path string, mode fs.Mode) error {
			if mode.IsDir() {
				return nil
			}
			entryRel := filepath.Join(rel, pathutil.MakeRelative(path, abs))
			if mode.IsSymlink() {
				target, err := os.Readlink(path)
				if err != nil {
					return err
				}
				return nd.AddSymlink(entryRel, target)
			}
			dg, err := digestFile(path)
			if err != nil {
				return err
			}
			info, err := os.Lstat(path)
			if err != nil {
				return err
			}
			if err := nd.AddFile(entryRel, dg, info.Mode()&0111 != 0); err != nil {
				return err
			}
			merkle.AddBlobEntry(blobs, uploadinfo.EntryFromFile(dg, path))
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("casupload: walk %s: %w", p, err)
		}
	}
	return nd, blobs, nil
}

func digestFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return digest.Digest{}, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return digest.Digest{}, err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return digest.Digest{}, err
	}
	return digest.NewFromProtoUnvalidated(&pb.Digest{
		Hash:      hex.EncodeToString(h.Sum(nil)),
		SizeBytes: info.Size(),
	}), nil
}
