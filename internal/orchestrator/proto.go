package orchestrator

import (
	"sort"

	"github.com/bazelbuild/remote-apis-sdks/go/pkg/digest"
	"github.com/bazelbuild/remote-apis-sdks/go/pkg/uploadinfo"
	pb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"
	"google.golang.org/protobuf/proto"

	"github.com/remoteexec/recc/internal/command"
	"github.com/remoteexec/recc/internal/pathutil"
)

// buildCommand translates a ParsedCommand plus the configured remote
// environment and platform into the Command proto that gets hashed and
// sent to the server. Grounded on please's src/remote/action.go
// buildCommand, minus the target-specific shell-wrapping: recc ships the
// rewritten argv directly, since there's no BuildTarget-level $OUT/$TMP_DIR
// convention to reproduce.
//
// WorkingDirectory is cwd's position relative to the input tree's root
// (o.cfg.ProjectRoot, the same root buildMerkleTree lays paths out under),
// so relative argv tokens like "-I../include" that command.Parse leaves
// untouched still resolve the way they would locally, against the real
// invocation directory rather than the tree root.
func (o *Orchestrator) buildCommand(pc *command.ParsedCommand, cwd string) *pb.Command {
	outputPaths := append(append([]string{}, o.outputFiles(pc)...), o.outputDirectories()...)
	sort.Strings(outputPaths)

	return &pb.Command{
		Arguments:            pc.Argv,
		EnvironmentVariables: envVars(o.cfg.RemoteEnv),
		OutputPaths:          outputPaths,
		Platform:             platform(o.cfg.RemotePlatform),
		WorkingDirectory:     treeRelativeCwd(cwd, o.cfg.ProjectRoot),
	}
}

// treeRelativeCwd returns cwd's path relative to root, or "" when they
// coincide (the tree root is itself the working directory).
func treeRelativeCwd(cwd, root string) string {
	if root == "" {
		return ""
	}
	rel := pathutil.MakeRelative(cwd, root)
	if rel == "." {
		return ""
	}
	return rel
}

func (o *Orchestrator) outputFiles(pc *command.ParsedCommand) []string {
	if o.cfg.OutputFilesOverride != nil {
		return o.cfg.OutputFilesOverride
	}
	return pc.Products
}

func (o *Orchestrator) outputDirectories() []string {
	return o.cfg.OutputDirectoriesOverride
}

func envVars(env map[string]string) []*pb.Command_EnvironmentVariable {
	names := make([]string, 0, len(env))
	for k := range env {
		names = append(names, k)
	}
	sort.Strings(names)
	vars := make([]*pb.Command_EnvironmentVariable, len(names))
	for i, name := range names {
		vars[i] = &pb.Command_EnvironmentVariable{Name: name, Value: env[name]}
	}
	return vars
}

func platform(props map[string]string) *pb.Platform {
	if len(props) == 0 {
		return nil
	}
	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	sort.Strings(names)
	p := &pb.Platform{Properties: make([]*pb.Platform_Property, len(names))}
	for i, name := range names {
		p.Properties[i] = &pb.Platform_Property{Name: name, Value: props[name]}
	}
	return p
}

// protoEntry marshals msg and wraps it as an uploadinfo.Entry, the same
// pattern please's Client.protoEntry uses to prepare the Command and
// Action blobs for upload alongside the input tree.
func protoEntry(msg proto.Message) (*uploadinfo.Entry, digest.Digest) {
	blob, _ := proto.Marshal(msg)
	entry := uploadinfo.EntryFromBlob(blob)
	return entry, entry.Digest
}
