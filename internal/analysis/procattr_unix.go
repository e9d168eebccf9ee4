//go:build unix && !linux

package analysis

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// bindLifetime puts the engine in its own process group and kills the whole
// group on cancellation.
func bindLifetime(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return killGroup(cmd.Process.Pid) }
}

// killGroup kills every process in the engine's group. The group outlives its
// leader while any member is still running.
func killGroup(pid int) error {
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
