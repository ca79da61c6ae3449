// Package cli holds the small collection of process-wide concerns every
// recc binary needs: the shared logger, SIGINT-driven cancellation,
// at-exit cleanup hooks, and Levenshtein "did you mean" suggestions.
// Adapted from please's src/cli and src/cli/logging, trimmed to what a
// short-lived, single-command client needs rather than a long-running,
// interactive build daemon (no progress console, no window-size tracking).
package cli

import (
	"os"

	clilogging "github.com/peterebden/go-cli-init/v5/logging"
	logging "gopkg.in/op/go-logging.v1"
)

// Log is the process-wide logger, shared by every package so output is
// interleaved consistently regardless of which component emits it.
var Log = logging.MustGetLogger("recc")

// Verbosity is re-exported for flag declarations, same as please's own
// cli.Verbosity alias.
type Verbosity = clilogging.Verbosity

// MinVerbosity and MaxVerbosity bound the --verbosity flag.
const (
	MinVerbosity = clilogging.MinVerbosity
	MaxVerbosity = clilogging.MaxVerbosity
)

var logFormat = logging.MustStringFormatter(
	"%{time:15:04:05.000} %{level:7s}: %{message}",
)

// InitLogging sets up the stderr logging backend at the given verbosity.
func InitLogging(verbosity Verbosity) {
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), logFormat)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(logging.Level(verbosity), "")
	logging.SetBackend(leveled)
}

// HTTPLogWrapper adapts the shared logger to retryablehttp's LeveledLogger
// interface, so token refresh requests log through the same backend as
// everything else.
type HTTPLogWrapper struct {
	Log *logging.Logger
}

func (w *HTTPLogWrapper) Error(msg string, keysAndValues ...interface{}) {
	w.Log.Errorf("%v: %v", msg, keysAndValues)
}

func (w *HTTPLogWrapper) Info(msg string, keysAndValues ...interface{}) {
	w.Log.Infof("%v: %v", msg, keysAndValues)
}

func (w *HTTPLogWrapper) Debug(msg string, keysAndValues ...interface{}) {
	w.Log.Debugf("%v: %v", msg, keysAndValues)
}

func (w *HTTPLogWrapper) Warn(msg string, keysAndValues ...interface{}) {
	w.Log.Warningf("%v: %v", msg, keysAndValues)
}
