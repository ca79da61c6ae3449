package cli

import (
	"fmt"
	"os"

	cliflags "github.com/peterebden/go-cli-init/v5/flags"
	"github.com/thought-machine/go-flags"
)

// ParseFlagsOrDie parses the app's flags and dies (via os.Exit) on failure
// or on an unexpected positional argument, matching please's own
// src/cli/flags.go wrapper.
func ParseFlagsOrDie(appname string, data interface{}) string {
	return cliflags.ParseFlagsOrDie(appname, data, nil)
}

// ParseFlagsFromArgsOrDie is ParseFlagsOrDie but over an explicit argv,
// used by cmd/recc to split recc's own flags from the compiler command
// line that follows "--". It returns the remaining non-flag arguments
// (the compiler command line), unlike go-cli-init's own
// ParseFlagsFromArgsOrDie, which is for please's subcommands and dies on
// any unexpected argument.
func ParseFlagsFromArgsOrDie(appname string, data interface{}, args []string) []string {
	_, extraArgs, err := cliflags.ParseFlags(appname, data, args, flags.HelpFlag|flags.PassDoubleDash, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
	return extraArgs
}

// flagsError wraps err as a flags.Error, required by the go-flags
// Unmarshaler interface.
func flagsError(err error) error {
	if err == nil {
		return nil
	}
	return &flags.Error{Type: flags.ErrMarshal, Message: err.Error()}
}
