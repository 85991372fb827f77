//go:build unix

package runner

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/bednajedna/parabot/internal/job"
)

// setProcessGroup starts the child as a leader of a new process group and
// makes context cancellation kill the whole group. Test engines tend to start
// browsers and drivers, which would survive a kill of the leader alone.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}

func exitStatus(state *os.ProcessState) job.ExitStatus {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return job.ExitStatus(-int(ws.Signal()))
	}
	return job.ExitStatus(state.ExitCode())
}
