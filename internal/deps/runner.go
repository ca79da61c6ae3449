package deps

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/remoteexec/recc/internal/command"
	"github.com/remoteexec/recc/internal/process"
)

// ErrDepsFailed wraps any failure to run or parse the dependency-discovery
// command, signaling the orchestrator that this invocation should fall
// back to local execution entirely rather than attempt a remote one with
// an incomplete input set.
type ErrDepsFailed struct {
	Err error
}

func (e *ErrDepsFailed) Error() string { return "deps: " + e.Err.Error() }
func (e *ErrDepsFailed) Unwrap() error { return e.Err }

// Runner spawns a ParsedCommand's dependency-discovery argv and parses
// its output.
type Runner struct {
	exec *process.Executor
}

// New wraps an Executor used to spawn dependency-discovery commands.
func New(exec *process.Executor) *Runner {
	return &Runner{exec: exec}
}

// Run executes pc.DependenciesArgv, parses its output per pc's flavor,
// and applies opts' filters. dir is the working directory the command
// runs in; env is its full environment (RECC_DEPS_ENV_* already merged
// in by the caller).
func (r *Runner) Run(ctx context.Context, pc *command.ParsedCommand, dir string, env []string, timeout time.Duration, opts FilterOptions) ([]string, error) {
	if !pc.IsCompilerCommand {
		return nil, &ErrDepsFailed{Err: fmt.Errorf("not a compiler command")}
	}

	res, err := r.exec.Run(ctx, dir, env, timeout, pc.DependenciesArgv)
	if err != nil {
		return nil, &ErrDepsFailed{Err: err}
	}
	if res.ExitCode != 0 {
		return nil, &ErrDepsFailed{Err: fmt.Errorf("dependency command exited %d: %s", res.ExitCode, res.Stderr)}
	}

	output := string(res.Stdout)
	if pc.IsAIX {
		contents, err := os.ReadFile(pc.AIXDependencyFile)
		if err != nil {
			return nil, &ErrDepsFailed{Err: fmt.Errorf("read AIX dependency file: %w", err)}
		}
		output = string(contents)
	}

	var raw []string
	if pc.ProducesSunMakeRules {
		raw = ParseSunOutput(output)
	} else {
		raw = ParseMakeRules(output)
	}

	if opts.Products == nil {
		opts.Products = pc.Products
	}
	return Filter(raw, opts), nil
}
