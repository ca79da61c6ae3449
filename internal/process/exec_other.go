//go:build !linux

package process

import (
	"os/exec"
	"syscall"
)

// command is exec_linux.go's counterpart for non-Linux Unixes: same
// process-group isolation, minus the Linux-only Pdeathsig.
func (e *Executor) command(name string, args ...string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.processes[cmd] = struct{}{}
	return cmd
}
