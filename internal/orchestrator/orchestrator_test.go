package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bazelbuild/remote-apis-sdks/go/pkg/digest"
	pb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"
	"google.golang.org/protobuf/proto"

	"github.com/remoteexec/recc/internal/command"
	"github.com/remoteexec/recc/internal/deps"
	"github.com/remoteexec/recc/internal/execution"
	"github.com/remoteexec/recc/internal/merkle"
	"github.com/remoteexec/recc/internal/reccconfig"
)

type fakeLocalExecutor struct {
	called bool
	code   int
	err    error
}

func (f *fakeLocalExecutor) RunForeground(dir string, env []string, argv []string) (int, error) {
	f.called = true
	return f.code, f.err
}

type fakeDepsRunner struct {
	deps []string
	err  error
}

func (f *fakeDepsRunner) Run(ctx context.Context, pc *command.ParsedCommand, dir string, env []string, timeout time.Duration, opts deps.FilterOptions) ([]string, error) {
	return f.deps, f.err
}

type fakeCAS struct {
	blobs    map[string][]byte
	uploaded merkle.Blobs
}

func newFakeCAS() *fakeCAS { return &fakeCAS{blobs: map[string][]byte{}} }

func (f *fakeCAS) Upload(ctx context.Context, blobs merkle.Blobs) ([]digest.Digest, error) {
	f.uploaded = blobs
	return nil, nil
}

// command finds the uploaded Command blob by way of the uploaded Action
// whose CommandDigest names it, for tests that need to inspect what Run
// actually built and hashed. Directory blobs also unmarshal as a
// pb.Command without error, so the blob is located by digest rather than
// by trying each one.
func (f *fakeCAS) command(t *testing.T) *pb.Command {
	t.Helper()
	for _, entry := range f.uploaded {
		action := &pb.Action{}
		if err := proto.Unmarshal(entry.Contents, action); err != nil || action.CommandDigest == nil {
			continue
		}
		cmdEntry, ok := f.uploaded[action.CommandDigest.Hash]
		if !ok {
			continue
		}
		cmd := &pb.Command{}
		if err := proto.Unmarshal(cmdEntry.Contents, cmd); err == nil && len(cmd.Arguments) > 0 {
			return cmd
		}
	}
	t.Fatal("no Command blob found among uploaded blobs")
	return nil
}

// directoryContaining finds the uploaded Directory blob containing a file entry
// named name, or fails the test.
func (f *fakeCAS) directoryContaining(t *testing.T, name string) *pb.Directory {
	t.Helper()
	for _, entry := range f.uploaded {
		dir := &pb.Directory{}
		if err := proto.Unmarshal(entry.Contents, dir); err != nil {
			continue
		}
		for _, file := range dir.Files {
			if file.Name == name {
				return dir
			}
		}
	}
	t.Fatalf("no uploaded directory contains a file named %q", name)
	return nil
}

func (f *fakeCAS) FetchBlob(ctx context.Context, d digest.Digest) ([]byte, error) {
	return f.blobs[d.Hash], nil
}

func (f *fakeCAS) FetchMessage(ctx context.Context, d digest.Digest, msg proto.Message) error {
	return proto.Unmarshal(f.blobs[d.Hash], msg)
}

func (f *fakeCAS) FetchTree(ctx context.Context, treeDigest digest.Digest) (*pb.Directory, map[string]*pb.Directory, error) {
	return &pb.Directory{}, map[string]*pb.Directory{}, nil
}

type fakeActionCache struct {
	result *pb.ActionResult
}

func (f *fakeActionCache) Get(ctx context.Context, action digest.Digest) (*pb.ActionResult, error) {
	return f.result, nil
}

type fakeExecution struct {
	result *execution.Result
	err    error
	called bool
}

func (f *fakeExecution) Execute(ctx context.Context, action digest.Digest, skipCacheLookup bool, onProgress func(execution.Progress)) (*execution.Result, error) {
	f.called = true
	return f.result, f.err
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(oldwd) })
}

func TestRunFallsBackLocallyForUnknownCommand(t *testing.T) {
	local := &fakeLocalExecutor{code: 0}
	o := New(reccconfig.Config{}, local, &fakeDepsRunner{}, newFakeCAS(), &fakeActionCache{}, &fakeExecution{}, nil, nil)

	code, err := o.Run(context.Background(), []string{"echo", "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 || !local.called {
		t.Fatalf("expected local fallback, got code=%d called=%v", code, local.called)
	}
}

func TestRunCacheHitSkipsExecuteAndWritesOutput(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "hello.c"), []byte("int main(){}"), 0644); err != nil {
		t.Fatal(err)
	}

	content := []byte("compiled object")
	dg := digest.NewFromBlob(content)
	cas := newFakeCAS()
	cas.blobs[dg.Hash] = content

	ac := &fakeActionCache{result: &pb.ActionResult{
		ExitCode: 0,
		OutputFiles: []*pb.OutputFile{
			{Path: "hello.o", Digest: dg.ToProto()},
		},
	}}
	exec := &fakeExecution{}
	local := &fakeLocalExecutor{}

	cfg := reccconfig.Config{ProjectRoot: dir, DepsOverride: []string{"hello.c"}}
	o := New(cfg, local, &fakeDepsRunner{}, cas, ac, exec, nil, nil)

	code, err := o.Run(context.Background(), []string{"gcc", "-c", "hello.c", "-o", "hello.o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if exec.called {
		t.Fatalf("execute should not have been called on a cache hit")
	}
	if local.called {
		t.Fatalf("local fallback should not have run for a recognized compiler command")
	}
	got, err := os.ReadFile(filepath.Join(dir, "hello.o"))
	if err != nil {
		t.Fatalf("hello.o not written: %v", err)
	}
	if string(got) != "compiled object" {
		t.Fatalf("hello.o content = %q", got)
	}
}

func TestRunCacheMissExecutesRemotely(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	os.WriteFile(filepath.Join(dir, "hello.c"), []byte("int main(){}"), 0644)

	cas := newFakeCAS()
	ac := &fakeActionCache{result: nil}
	exec := &fakeExecution{result: &execution.Result{ActionResult: &pb.ActionResult{ExitCode: 0}}}
	local := &fakeLocalExecutor{}

	cfg := reccconfig.Config{ProjectRoot: dir, DepsOverride: []string{"hello.c"}, DontSaveOutput: true}
	o := New(cfg, local, &fakeDepsRunner{}, cas, ac, exec, nil, nil)

	code, err := o.Run(context.Background(), []string{"gcc", "-c", "hello.c", "-o", "hello.o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 || !exec.called {
		t.Fatalf("expected remote execution, code=%d called=%v", code, exec.called)
	}
}

// TestRunSetsWorkingDirectoryForNestedCwd covers a build invoked from a
// subdirectory of RECC_PROJECT_ROOT (/proj/src under /proj, in spec
// terms), which the other Run tests above never exercise: they all chdir
// into the same directory they set as ProjectRoot, so cwd == ProjectRoot
// and a bug that resolved paths against the wrong one of the two would
// never show up.
func TestRunSetsWorkingDirectoryForNestedCwd(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "src")
	includeDir := filepath.Join(root, "include")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(includeDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "hello.c"), []byte(`#include "foo.h"`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(includeDir, "foo.h"), []byte("// foo"), 0644); err != nil {
		t.Fatal(err)
	}
	chdir(t, srcDir)

	cas := newFakeCAS()
	ac := &fakeActionCache{result: nil}
	exec := &fakeExecution{result: &execution.Result{ActionResult: &pb.ActionResult{ExitCode: 0}}}
	local := &fakeLocalExecutor{}

	cfg := reccconfig.Config{
		ProjectRoot:    root,
		DepsOverride:   []string{"hello.c", "../include/foo.h"},
		DontSaveOutput: true,
	}
	o := New(cfg, local, &fakeDepsRunner{}, cas, ac, exec, nil, nil)

	code, err := o.Run(context.Background(), []string{"gcc", "-c", "hello.c", "-I../include", "-o", "hello.o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 || !exec.called {
		t.Fatalf("expected remote execution, code=%d called=%v", code, exec.called)
	}

	cmd := cas.command(t)
	if cmd.WorkingDirectory != "src" {
		t.Fatalf("Command.WorkingDirectory = %q, want %q", cmd.WorkingDirectory, "src")
	}

	// foo.h was reached via "../include/foo.h", relative to srcDir, not
	// to root: it must land at include/foo.h in the tree, not at
	// include/foo.h resolved the wrong way round or escaping the root.
	cas.directoryContaining(t, "foo.h")
}

func TestResolveOutputBlobPrefersInlineOverDigest(t *testing.T) {
	cas := newFakeCAS()
	cas.blobs["deadbeef"] = []byte("should not be fetched")
	o := New(reccconfig.Config{}, &fakeLocalExecutor{}, &fakeDepsRunner{}, cas, &fakeActionCache{}, &fakeExecution{}, nil, nil)

	got, err := o.resolveOutputBlob(context.Background(), []byte("inline bytes"), &pb.Digest{Hash: "deadbeef", SizeBytes: 22})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "inline bytes" {
		t.Fatalf("resolveOutputBlob = %q, want inline bytes preferred over digest fetch", got)
	}
}

func TestResolveOutputBlobFallsBackToDigest(t *testing.T) {
	cas := newFakeCAS()
	cas.blobs["deadbeef"] = []byte("fetched bytes")
	o := New(reccconfig.Config{}, &fakeLocalExecutor{}, &fakeDepsRunner{}, cas, &fakeActionCache{}, &fakeExecution{}, nil, nil)

	got, err := o.resolveOutputBlob(context.Background(), nil, &pb.Digest{Hash: "deadbeef", SizeBytes: 14})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "fetched bytes" {
		t.Fatalf("resolveOutputBlob = %q, want digest fallback", got)
	}
}

func TestRunFallsBackLocallyWhenDepsFail(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	os.WriteFile(filepath.Join(dir, "hello.c"), []byte("int main(){}"), 0644)

	local := &fakeLocalExecutor{}
	failingDeps := &fakeDepsRunner{err: &deps.ErrDepsFailed{Err: os.ErrNotExist}}
	cfg := reccconfig.Config{ProjectRoot: dir}
	o := New(cfg, local, failingDeps, newFakeCAS(), &fakeActionCache{}, &fakeExecution{}, nil, nil)

	_, err := o.Run(context.Background(), []string{"gcc", "-c", "hello.c", "-o", "hello.o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !local.called {
		t.Fatalf("expected local fallback after deps failure")
	}
}
