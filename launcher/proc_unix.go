//go:build unix

package launcher

import (
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// setProcessGroup puts the child in its own group so wrappers like npm take
// their own children down with them.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminate(cmd *exec.Cmd) error {
	pid := cmd.Process.Pid
	err := unix.Kill(-pid, unix.SIGTERM)
	if err == unix.ESRCH {
		err = unix.Kill(pid, unix.SIGTERM)
	}
	if err != nil && err != unix.ESRCH {
		return errors.Wrapf(err, "terminate pid %d", pid)
	}
	return nil
}
