// Package process implements subprocess management for the two places
// recc shells out locally: running the dependency-discovery command and
// falling back to local compilation entirely.
//
// Grounded on please's src/process/process.go: the same Executor shape
// (a registry of live *exec.Cmd so cli.AtExit can kill them all), the
// same SIGTERM-then-SIGKILL two-step in KillProcess, and the same
// safeBuffer for concurrent stdout/stderr capture. please's Target/
// progress-reporting machinery has no analogue here — recc runs one
// subprocess at a time in the foreground, not a build graph — so it's
// dropped.
package process

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/remoteexec/recc/internal/cli"
)

var log = logging.MustGetLogger("process")

// Executor starts and tracks subprocesses, killing any still running at
// process exit.
type Executor struct {
	processes map[*exec.Cmd]struct{}
	mutex     sync.Mutex
}

// New returns an Executor registered with cli.AtExit.
func New() *Executor {
	e := &Executor{processes: map[*exec.Cmd]struct{}{}}
	cli.AtExit(e.killAll)
	return e
}

// Result is the outcome of a captured subprocess run.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Run starts argv[0] with argv[1:], waits up to timeout (0 means no
// timeout), and captures stdout/stderr separately. A non-zero exit
// status is reported via Result.ExitCode, not as an error: only failure
// to start, a timeout, or an external cancellation return an error.
func (e *Executor) Run(ctx context.Context, dir string, env []string, timeout time.Duration, argv []string) (*Result, error) {
	cmd := e.command(argv[0], argv[1:]...)
	defer e.removeProcess(cmd)
	cmd.Dir = dir
	cmd.Env = env

	var stdout, stderr safeBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", argv[0], err)
	}

	ch := make(chan error, 1)
	go func() { ch <- cmd.Wait() }()

	var timeoutC <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timeoutC = t.C
	}

	select {
	case err := <-ch:
		return &Result{
			Stdout:   stdout.Bytes(),
			Stderr:   stderr.Bytes(),
			ExitCode: exitCode(err),
		}, nil
	case <-timeoutC:
		e.KillProcess(cmd)
		return nil, fmt.Errorf("process: %s: timeout exceeded after %s", argv[0], timeout)
	case <-ctx.Done():
		e.KillProcess(cmd)
		return nil, ctx.Err()
	}
}

// RunForeground runs argv attached directly to this process's stdio,
// for the local-execution fallback path where the user expects to see
// the compiler's own output exactly as it would run natively.
func (e *Executor) RunForeground(dir string, env []string, argv []string) (int, error) {
	cmd := e.command(argv[0], argv[1:]...)
	defer e.removeProcess(cmd)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("process: start %s: %w", argv[0], err)
	}
	err := cmd.Wait()
	return exitCode(err), nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// KillProcess sends SIGTERM, then SIGKILL a moment later if the process
// hasn't exited, matching please's two-step shutdown.
func (e *Executor) KillProcess(cmd *exec.Cmd) {
	ok := killProcess(cmd, syscall.SIGTERM, 30*time.Millisecond)
	if !killProcess(cmd, syscall.SIGKILL, time.Second) && !ok {
		log.Error("failed to kill subprocess %v", cmd.Args)
	}
	e.removeProcess(cmd)
}

func killProcess(cmd *exec.Cmd, sig syscall.Signal, timeout time.Duration) bool {
	if cmd.Process == nil {
		return false
	}
	syscall.Kill(-cmd.Process.Pid, sig)
	ch := make(chan error, 1)
	go func() { ch <- cmd.Wait() }()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (e *Executor) removeProcess(cmd *exec.Cmd) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	delete(e.processes, cmd)
}

func (e *Executor) killAll() {
	e.mutex.Lock()
	procs := make([]*exec.Cmd, 0, len(e.processes))
	for p := range e.processes {
		procs = append(procs, p)
	}
	e.mutex.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(procs))
	for _, p := range procs {
		go func(p *exec.Cmd) {
			defer wg.Done()
			e.KillProcess(p)
		}(p)
	}
	wg.Wait()
}

// safeBuffer is an io.Writer safe for concurrent use by a command's
// stdout and stderr, which os/exec only guarantees when they're the
// literal same io.Writer.
type safeBuffer struct {
	sync.Mutex
	buf bytes.Buffer
}

func (sb *safeBuffer) Write(b []byte) (int, error) {
	sb.Lock()
	defer sb.Unlock()
	return sb.buf.Write(b)
}

func (sb *safeBuffer) Bytes() []byte {
	sb.Lock()
	defer sb.Unlock()
	return sb.buf.Bytes()
}
