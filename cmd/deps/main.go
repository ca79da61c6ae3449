// deps runs a compiler invocation's dependency-discovery command and
// prints the resulting input set, one path per line, without uploading
// or executing anything. Useful for inspecting what recc would ship as
// an action's inputs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/remoteexec/recc/internal/cli"
	"github.com/remoteexec/recc/internal/command"
	"github.com/remoteexec/recc/internal/deps"
	"github.com/remoteexec/recc/internal/process"
	"github.com/remoteexec/recc/internal/reccconfig"
)

var opts = struct {
	Usage       string
	Verbosity   cli.Verbosity `short:"v" long:"verbosity" default:"warning" description:"Verbosity of output (higher number = more output)"`
	InstallPath string        `long:"install_path" description:"Install prefix to look for etc/recc config under" default:"/usr/local"`
}{
	Usage: `
deps runs a compiler command's dependency-discovery step and prints the
resulting input paths, one per line, instead of running the pipeline
recc itself would. It honours RECC_PROJECT_ROOT, RECC_DEPS_ENV_*, and
RECC_DEPS_EXCLUDE_PATHS the same way recc does.

    deps gcc -c foo.c -o foo.o
`,
}

func main() {
	args := cli.ParseFlagsFromArgsOrDie("deps", &opts, os.Args[1:])
	cli.InitLogging(opts.Verbosity)

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "deps: no command given")
		os.Exit(1)
	}

	cfg, err := reccconfig.Load(opts.InstallPath)
	if err != nil {
		cli.Log.Fatalf("failed to load configuration: %s", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cli.Log.Fatalf("%s", err)
	}

	pc, err := command.Parse(args, command.Options{
		ProjectRoot:       cfg.ProjectRoot,
		WorkingDirectory:  cwd,
		PrefixReplacement: cfg.PrefixReplacement,
		Verbose:           cfg.Verbose,
	})
	if err != nil {
		cli.Log.Fatalf("%s", err)
	}
	defer pc.Close()

	if !pc.IsCompilerCommand {
		fmt.Fprintln(os.Stderr, "deps: not a recognized compiler command")
		os.Exit(1)
	}

	env := os.Environ()
	for k, v := range cfg.DepsEnv {
		env = append(env, k+"="+v)
	}

	runner := deps.New(process.New())
	inputs, err := runner.Run(context.Background(), pc, cwd, env, 0, deps.FilterOptions{
		ProjectRoot:      cfg.ProjectRoot,
		WorkingDirectory: cwd,
		ExcludePaths:     cfg.Deps.ExcludePaths,
		Products:         pc.Products,
	})
	if err != nil {
		cli.Log.Fatalf("%s", err)
	}

	for _, p := range inputs {
		fmt.Println(p)
	}
}
