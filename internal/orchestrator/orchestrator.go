// Package orchestrator implements the top-level pipeline every recc binary
// drives: parse argv, discover inputs, build and upload an Action, consult
// the action cache, execute remotely on a miss, and materialize outputs.
//
// Grounded on please's src/remote/remote.go, which plays the same role for
// please's build graph (uploadAction → GetActionResult → execute →
// setOutputs). recc's version collapses that per-target loop to a single
// invocation and adds the local-execution fallback please never needs,
// since please always has a remote worker pool to fall back to instead.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bazelbuild/remote-apis-sdks/go/pkg/digest"
	pb "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"
	"google.golang.org/protobuf/proto"

	"github.com/remoteexec/recc/internal/auth"
	"github.com/remoteexec/recc/internal/cli"
	"github.com/remoteexec/recc/internal/command"
	"github.com/remoteexec/recc/internal/deps"
	"github.com/remoteexec/recc/internal/execution"
	"github.com/remoteexec/recc/internal/merkle"
	"github.com/remoteexec/recc/internal/metrics"
	"github.com/remoteexec/recc/internal/reccconfig"
	"github.com/remoteexec/recc/internal/retry"
)

// digestValue is digest.Digest, aliased for brevity in the interfaces below.
type digestValue = digest.Digest

// localExecutor runs a command attached to this process's own stdio, for
// the local-execution fallback path. Satisfied by *process.Executor.
type localExecutor interface {
	RunForeground(dir string, env []string, argv []string) (int, error)
}

// depsRunner discovers a ParsedCommand's header dependencies. Satisfied by
// *deps.Runner.
type depsRunner interface {
	Run(ctx context.Context, pc *command.ParsedCommand, dir string, env []string, timeout time.Duration, opts deps.FilterOptions) ([]string, error)
}

// casUploaderFetcher is the subset of cas.Client the orchestrator depends
// on. Satisfied by *cas.Client.
type casUploaderFetcher interface {
	Upload(ctx context.Context, blobs merkle.Blobs) ([]digestValue, error)
	FetchBlob(ctx context.Context, d digestValue) ([]byte, error)
	FetchMessage(ctx context.Context, d digestValue, msg proto.Message) error
	FetchTree(ctx context.Context, treeDigest digestValue) (*pb.Directory, map[string]*pb.Directory, error)
}

// actionCacheClient is the subset of actioncache.Client the orchestrator
// depends on. Satisfied by *actioncache.Client.
type actionCacheClient interface {
	Get(ctx context.Context, action digestValue) (*pb.ActionResult, error)
}

// executionClient is the subset of execution.Client the orchestrator
// depends on. Satisfied by *execution.Client.
type executionClient interface {
	Execute(ctx context.Context, action digestValue, skipCacheLookup bool, onProgress func(execution.Progress)) (*execution.Result, error)
}

// Orchestrator wires together every component of the pipeline.
type Orchestrator struct {
	cfg         reccconfig.Config
	localExec   localExecutor
	depsRunner  depsRunner
	cas         casUploaderFetcher
	actionCache actionCacheClient
	execution   executionClient
	session     auth.Session
	sink        metrics.Sink
	retryPolicy retry.Policy
}

// New builds an Orchestrator. The cas/actionCache/execution/deps/local
// arguments are the concrete *cas.Client, *actioncache.Client,
// *execution.Client, *deps.Runner and *process.Executor recc dials and
// constructs at startup; they're accepted here as the narrower interfaces
// above so tests can supply fakes instead.
func New(
	cfg reccconfig.Config,
	localExec localExecutor,
	depsRunner depsRunner,
	cas casUploaderFetcher,
	actionCache actionCacheClient,
	exec executionClient,
	session auth.Session,
	sink metrics.Sink,
) *Orchestrator {
	if session == nil {
		session = auth.NullSession{}
	}
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Orchestrator{
		cfg:         cfg,
		localExec:   localExec,
		depsRunner:  depsRunner,
		cas:         cas,
		actionCache: actionCache,
		execution:   exec,
		session:     session,
		sink:        sink,
		retryPolicy: retry.Policy{Limit: cfg.Retry.Limit, Base: cfg.Retry.Delay},
	}
}

// Run drives one invocation of the pipeline end to end and returns the
// exit code the calling binary should use.
func (o *Orchestrator) Run(ctx context.Context, argv []string) (int, error) {
	start := time.Now()
	defer func() { o.sink.ActionDuration(time.Since(start)) }()

	cwd, err := os.Getwd()
	if err != nil {
		return 1, fmt.Errorf("orchestrator: getwd: %w", err)
	}

	pc, err := command.Parse(argv, command.Options{
		ProjectRoot:       o.cfg.ProjectRoot,
		WorkingDirectory:  cwd,
		PrefixReplacement: o.cfg.PrefixReplacement,
		Verbose:           o.cfg.Verbose,
	})
	if err != nil {
		return 1, err
	}
	defer pc.Close()
	cli.AtExit(func() { pc.Close() })

	if pc.Suggestion != "" {
		cli.Log.Warning("%s", pc.Suggestion)
	}

	if !o.cfg.ForceRemote && !pc.IsCompilerCommand {
		return o.runLocally(cwd, argv)
	}

	inputs, err := o.computeInputs(ctx, pc, cwd)
	if err != nil {
		var depsErr *deps.ErrDepsFailed
		if errors.As(err, &depsErr) {
			cli.Log.Warning("dependency discovery failed, falling back to local execution: %s", err)
			return o.runLocally(cwd, argv)
		}
		return 1, err
	}

	nd, blobs, err := o.buildMerkleTree(inputs, cwd)
	if err != nil {
		return 1, fmt.Errorf("orchestrator: build input tree: %w", err)
	}
	inputRootDigest, err := merkle.ToDigest(nd, blobs)
	if err != nil {
		return 1, fmt.Errorf("orchestrator: digest input tree: %w", err)
	}

	cmd := o.buildCommand(pc, cwd)
	cmdEntry, cmdDigest := protoEntry(cmd)
	merkle.AddBlobEntry(blobs, cmdEntry)

	action := &pb.Action{
		CommandDigest:   cmdDigest.ToProto(),
		InputRootDigest: inputRootDigest.ToProto(),
		DoNotCache:      o.cfg.ActionUncacheable,
	}
	actionEntry, actionDigest := protoEntry(action)
	merkle.AddBlobEntry(blobs, actionEntry)

	if err := o.retry(ctx, func(ctx context.Context) error {
		_, err := o.cas.Upload(ctx, blobs)
		return err
	}); err != nil {
		return 1, fmt.Errorf("orchestrator: upload: %w", err)
	}

	result, err := o.resultFor(ctx, actionDigest)
	if err != nil {
		return 1, err
	}

	if !o.cfg.DontSaveOutput {
		if err := o.materializeOutputs(ctx, result, cwd); err != nil {
			return 1, fmt.Errorf("orchestrator: materialize outputs: %w", err)
		}
	}
	if err := o.forwardOutput(ctx, result); err != nil {
		cli.Log.Warning("failed to forward remote stdout/stderr: %s", err)
	}

	return int(result.ExitCode), nil
}

// runLocally executes argv attached to this process's own stdio, for
// commands CommandParser didn't recognize (and FORCE_REMOTE is unset) or
// whose dependency discovery failed outright.
func (o *Orchestrator) runLocally(cwd string, argv []string) (int, error) {
	code, err := o.localExec.RunForeground(cwd, os.Environ(), argv)
	if err != nil {
		return 1, fmt.Errorf("orchestrator: local execution: %w", err)
	}
	return code, nil
}

// resultFor consults the action cache unless SKIP_CACHE is set, falling
// back to remote execution on a miss.
func (o *Orchestrator) resultFor(ctx context.Context, actionDigest digestValue) (*pb.ActionResult, error) {
	if !o.cfg.SkipCache {
		var result *pb.ActionResult
		if err := o.retry(ctx, func(ctx context.Context) error {
			r, err := o.actionCache.Get(ctx, actionDigest)
			result = r
			return err
		}); err != nil {
			return nil, fmt.Errorf("orchestrator: action cache lookup: %w", err)
		}
		if result != nil {
			o.sink.CacheHit()
			return result, nil
		}
	}
	o.sink.CacheMiss()

	skipCacheLookup := o.cfg.SkipCache || o.cfg.ActionUncacheable
	var execResult *execution.Result
	if err := o.retry(ctx, func(ctx context.Context) error {
		r, err := o.execution.Execute(ctx, actionDigest, skipCacheLookup, nil)
		execResult = r
		return err
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: execute: %w", err)
	}
	if execResult.ActionResult == nil {
		return nil, fmt.Errorf("orchestrator: execute: server returned no action result")
	}
	return execResult.ActionResult, nil
}

// retry wraps fn with the configured retry policy, counting every attempt
// after the first against the ExecuteRetry metric.
func (o *Orchestrator) retry(ctx context.Context, fn func(context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, o.retryPolicy, o.session, func(ctx context.Context) error {
		if attempt > 0 {
			o.sink.ExecuteRetry()
		}
		attempt++
		return fn(ctx)
	})
}
