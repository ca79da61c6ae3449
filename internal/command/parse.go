package command

import (
	"fmt"
	"os"
	"strings"

	"github.com/remoteexec/recc/internal/cli"
	"github.com/remoteexec/recc/internal/pathutil"
)

// ParsedCommand is the result of classifying and rewriting a compiler
// invocation. If IsCompilerCommand is false, every other field except
// Argv (left untouched) and Suggestion is unspecified, matching spec's
// DATA MODEL note for ParsedCommand.
type ParsedCommand struct {
	IsCompilerCommand bool
	Flavor            Flavor
	IsClang           bool
	IsAIX             bool

	// Argv is argv with absolute, under-project-root paths rewritten to
	// be relative to the working directory.
	Argv []string
	// DependenciesArgv is the command to run to discover this
	// invocation's header dependencies; empty if IsCompilerCommand is
	// false.
	DependenciesArgv []string
	// ProducesSunMakeRules is true when DependenciesArgv's stdout is
	// Sun's one-dependency-per-line format rather than Make rules.
	ProducesSunMakeRules bool
	// AIXDependencyFile is the temporary file DependenciesArgv was told
	// to write to via -MF, for flavors that can't use stdout. Call
	// Close to remove it once the dependency scan is done.
	AIXDependencyFile string

	// Products are the output paths this invocation declares, from -o,
	// Sun's -xtemp=, or the a.out fallback for a final link.
	Products []string

	// Suggestion holds a "did you mean" message when argv[0] didn't
	// match any known compiler basename and Options.Verbose was set.
	Suggestion string
}

// Close removes the AIX temporary dependency file, if one was allocated.
// Safe to call on any ParsedCommand, including ones that never allocated
// one.
func (p *ParsedCommand) Close() error {
	if p.AIXDependencyFile == "" {
		return nil
	}
	return os.Remove(p.AIXDependencyFile)
}

// Options configures path rewriting; WorkingDirectory defaults to
// ProjectRoot when empty, matching the common case of running from the
// project's root.
type Options struct {
	ProjectRoot       string
	WorkingDirectory  string
	PrefixReplacement []pathutil.PrefixMapping
	Verbose           bool
}

// Parse implements CommandParser. argv must be non-empty; an empty argv
// is a caller error, not an unrecognized command.
func Parse(argv []string, opts Options) (*ParsedCommand, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("command: empty argv")
	}
	cwd := opts.WorkingDirectory
	if cwd == "" {
		cwd = opts.ProjectRoot
	}

	flavor, ok := Classify(argv[0])
	if !ok {
		pc := &ParsedCommand{IsCompilerCommand: false, Argv: argv}
		if opts.Verbose {
			pc.Suggestion = cli.PrettyPrintSuggestion(Basename(argv[0]), KnownBasenames(), 2)
		}
		return pc, nil
	}

	rewrite := func(p string) string {
		if !strings.HasPrefix(p, "/") {
			return p
		}
		mapped := pathutil.ResolvePrefixMap(p, opts.PrefixReplacement)
		if strings.HasPrefix(mapped, "/") && opts.ProjectRoot != "" && pathutil.HasPathPrefix(mapped, opts.ProjectRoot) {
			return pathutil.MakeRelative(mapped, cwd)
		}
		return mapped
	}

	pathOpts := pathOptionsFor(flavor)
	rewritten := make([]string, len(argv))
	rewritten[0] = argv[0]
	var products []string
	isCompileOnly := false

	for i := 1; i < len(argv); i++ {
		tok := argv[i]

		switch {
		case tok == "-c":
			isCompileOnly = true
			rewritten[i] = tok
			continue
		case tok == "-o":
			rewritten[i] = tok
			if i+1 < len(argv) {
				products = append(products, argv[i+1])
				rewritten[i+1] = argv[i+1]
				i++
			}
			continue
		case strings.HasPrefix(tok, "-o") && len(tok) > len("-o"):
			products = append(products, tok[len("-o"):])
			rewritten[i] = tok
			continue
		case flavor == FlavorSunStudio && strings.HasPrefix(tok, "-xtemp="):
			products = append(products, strings.TrimPrefix(tok, "-xtemp="))
			rewritten[i] = tok
			continue
		}

		matched := false
		for _, opt := range pathOpts {
			newTok, ok := rewritePathOption(tok, opt, rewrite)
			if !ok {
				continue
			}
			rewritten[i] = newTok
			if tok == opt.flag && !opt.equal && i+1 < len(argv) {
				rewritten[i+1] = rewrite(argv[i+1])
				i++
			}
			matched = true
			break
		}
		if matched {
			continue
		}

		if strings.HasPrefix(tok, "/") {
			rewritten[i] = rewrite(tok)
			continue
		}
		rewritten[i] = tok
	}

	if len(products) == 0 && !isCompileOnly {
		products = append(products, "a.out")
	}

	pc := &ParsedCommand{
		IsCompilerCommand: true,
		Flavor:            flavor,
		IsClang:           flavor == FlavorClang,
		IsAIX:             flavor == FlavorAIX,
		Argv:              rewritten,
		Products:          products,
	}

	depsArgv := withoutCompileFlag(rewritten)
	switch flavor {
	case FlavorGCC, FlavorClang:
		depsArgv = append(depsArgv, "-M", "-MF", "-")
		if flavor == FlavorClang {
			depsArgv = append(depsArgv, "-Qunused-arguments")
		}
		pc.DependenciesArgv = depsArgv
	case FlavorSunStudio:
		depsArgv = append(depsArgv, "-xM1")
		pc.DependenciesArgv = depsArgv
		pc.ProducesSunMakeRules = true
	case FlavorAIX:
		tmp, err := os.CreateTemp("", "recc-deps-*")
		if err != nil {
			return nil, fmt.Errorf("command: allocate AIX dependency file: %w", err)
		}
		tmp.Close()
		pc.AIXDependencyFile = tmp.Name()
		depsArgv = append(depsArgv, "-E", "-M", "-MF", tmp.Name())
		pc.DependenciesArgv = depsArgv
	}

	return pc, nil
}

// withoutCompileFlag copies argv, dropping any exact "-c" token. The
// dependency-discovery invocation always wants preprocessing, not a full
// compile, so -c (and -o, which only makes sense alongside it) would
// conflict with the -M/-E flags appended afterward.
func withoutCompileFlag(argv []string) []string {
	out := make([]string, 0, len(argv))
	for i := 0; i < len(argv); i++ {
		switch {
		case argv[i] == "-c":
			continue
		case argv[i] == "-o":
			i++ // drop the paired output path too
		default:
			out = append(out, argv[i])
		}
	}
	return out
}
