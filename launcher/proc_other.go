//go:build !unix

package launcher

import (
	"os/exec"

	"github.com/pkg/errors"
)

func setProcessGroup(cmd *exec.Cmd) {}

func terminate(cmd *exec.Cmd) error {
	if err := cmd.Process.Kill(); err != nil {
		return errors.Wrapf(err, "terminate pid %d", cmd.Process.Pid)
	}
	return nil
}
