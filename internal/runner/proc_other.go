//go:build !unix

package runner

import (
	"os"
	"os/exec"

	"github.com/bednajedna/parabot/internal/job"
)

// setProcessGroup is a no-op, cancellation kills the direct child only.
func setProcessGroup(*exec.Cmd) {}

func exitStatus(state *os.ProcessState) job.ExitStatus {
	return job.ExitStatus(state.ExitCode())
}
