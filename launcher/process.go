package launcher

import (
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Process is a started child. It is reaped in the background, so Done closes
// as soon as the child exits for any reason.
type Process struct {
	Name string
	Cmd  *exec.Cmd

	done chan struct{}
	err  error
}

func startProcess(svc Service, stdout, stderr io.Writer) (*Process, error) {
	if len(svc.Command) == 0 {
		return nil, errors.Errorf("%s: empty command", svc.Name)
	}

	cmd := exec.Command(svc.Command[0], svc.Command[1:]...)
	cmd.Dir = svc.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(svc.Env) > 0 {
		cmd.Env = append(os.Environ(), svc.Env...)
	}
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "spawn %s", svc.Name)
	}

	p := &Process{
		Name: svc.Name,
		Cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *Process) Pid() int {
	return p.Cmd.Process.Pid
}

// Done is closed once the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Err is the exit error; only meaningful after Done is closed.
func (p *Process) Err() error {
	<-p.done
	return p.err
}

func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Terminate asks the child and everything in its process group to stop. It
// does not wait for the exit.
func (p *Process) Terminate() error {
	if p.Exited() {
		return nil
	}
	return terminate(p.Cmd)
}
