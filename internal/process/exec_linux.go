package process

import (
	"os/exec"
	"syscall"
)

// command builds an *exec.Cmd in its own process group with Pdeathsig set
// so a dependency-scan or fallback compile doesn't outlive recc if it's
// killed uncleanly, matching please's exec_linux.go.
func (e *Executor) command(name string, args ...string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGHUP,
		Setpgid:   true,
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.processes[cmd] = struct{}{}
	return cmd
}
