// Package detect classifies finished jobs.
//
// The two rules are independent on purpose: a file job is judged by its
// captured stderr, a tag job by its process exit status.
package detect

import "github.com/bednajedna/parabot/internal/job"

// File returns StatusFail iff stderr is not empty. The runner's own exit code
// is not consulted.
func File(stderr []byte) job.Status {
	if len(stderr) != 0 {
		return job.StatusFail
	}
	return job.StatusOk
}

// Tag classifies a tag job by its exit status alone.
func Tag(exit job.ExitStatus) job.Status {
	switch {
	case exit == 0:
		return job.StatusOk
	case exit.Signaled():
		return job.StatusTerminated
	default:
		return job.StatusFail
	}
}
