// recc offloads a single compiler invocation to a remote execution
// cluster, falling back to running it locally when the command doesn't
// look like a compiler invocation or dependency discovery fails outright.
//
// Grounded on please's src/please.go: the same ParseFlagsFromArgsOrDie
// split between the tool's own flags and a trailing command line, the
// same InitLogging/WatchSignals startup sequence, and the same "build the
// collaborators, hand them to the thing that does the work" main().
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/remoteexec/recc/internal/actioncache"
	"github.com/remoteexec/recc/internal/auth"
	"github.com/remoteexec/recc/internal/cas"
	"github.com/remoteexec/recc/internal/cli"
	"github.com/remoteexec/recc/internal/deps"
	"github.com/remoteexec/recc/internal/execution"
	"github.com/remoteexec/recc/internal/metrics"
	"github.com/remoteexec/recc/internal/orchestrator"
	"github.com/remoteexec/recc/internal/process"
	"github.com/remoteexec/recc/internal/reccconfig"
	"github.com/remoteexec/recc/internal/remoteclient"
)

var opts = struct {
	Usage       string
	Verbosity   cli.Verbosity `short:"v" long:"verbosity" default:"warning" description:"Verbosity of output (higher number = more output)"`
	InstallPath string        `long:"install_path" description:"Install prefix to look for etc/recc config under" default:"/usr/local"`
}{
	Usage: `
recc is a client-side shim that offloads a single compiler invocation to a
Bazel Remote Execution API v2 cluster. It classifies its argv as a compiler
command, discovers header dependencies, uploads an input tree and Action,
consults the remote action cache, executes remotely on a miss, and
materializes the outputs locally.

Everything after recc's own flags is passed through as the command to run,
e.g.:

    recc gcc -c foo.c -o foo.o

Configuration beyond -v/--verbosity comes entirely from RECC_* environment
variables and the layered "etc/recc", "~/.recc", "$PWD/recc" config files.
`,
}

func main() {
	args := cli.ParseFlagsFromArgsOrDie("recc", &opts, os.Args[1:])
	cli.InitLogging(opts.Verbosity)
	cli.WatchSignals()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "recc: no command given")
		os.Exit(1)
	}

	cfg, err := reccconfig.Load(opts.InstallPath)
	if err != nil {
		cli.Log.Fatalf("failed to load configuration: %s", err)
	}

	sink := metrics.New(cfg.MetricsGatewayURL)
	defer sink.Push()

	session := buildSession(cfg)

	ctx := context.Background()
	sdk, err := remoteclient.Dial(ctx, cfg.Remote, session, sink)
	if err != nil {
		cli.Log.Fatalf("failed to connect to remote execution cluster: %s", err)
	}

	executor := process.New()
	o := orchestrator.New(
		cfg,
		executor,
		deps.New(executor),
		cas.New(sdk),
		actioncache.New(sdk),
		execution.New(sdk, cfg.Remote.InstanceName),
		session,
		sink,
	)

	code, err := o.Run(ctx, args)
	if err != nil {
		cli.Log.Errorf("%s", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func buildSession(cfg reccconfig.Config) auth.Session {
	if cfg.Remote.OAuthTokenURL == "" {
		return auth.NullSession{}
	}
	return auth.NewOAuthSession(
		context.Background(),
		cfg.Remote.OAuthClientID,
		cfg.Remote.OAuthClientSecret,
		cfg.Remote.OAuthTokenURL,
		nil,
	)
}
