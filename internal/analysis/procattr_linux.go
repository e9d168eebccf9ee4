package analysis

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// bindLifetime puts the engine in its own process group, kills the whole
// group on cancellation, and asks the kernel to kill the engine if halidom
// itself dies.
func bindLifetime(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
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
