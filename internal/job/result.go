package job

import (
	"fmt"
	"time"
)

// Status is the classification of a finished job.
type Status int

const (
	StatusOk Status = iota
	StatusFail
	StatusTerminated // killed by a signal, see ExitStatus.Signal
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusFail:
		return "fail"
	case StatusTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Failed reports whether s counts as a job failure.
func (s Status) Failed() bool {
	return s != StatusOk
}

// ExitStatus is 0 on success, a positive exit code, or -S when the process
// was terminated by signal S.
type ExitStatus int

// ExitNotStarted is recorded for a process which could not be spawned.
const ExitNotStarted ExitStatus = 127

// Signaled reports whether the process was terminated by a signal.
func (e ExitStatus) Signaled() bool {
	return e < 0
}

// Signal returns the terminating signal number or 0.
func (e ExitStatus) Signal() int {
	if e >= 0 {
		return 0
	}
	return int(-e)
}

// Result holds the outcome of one job.
type Result struct {
	Job       Job
	Status    Status
	Exit      ExitStatus
	Stdout    []byte
	Stderr    []byte
	Truncated bool  // captured output exceeded the capture limit
	Err       error // spawn or wait error, nil for a process which ran
	Started   time.Time
	Stopped   time.Time
}

func (r Result) Duration() time.Duration {
	if r.Started.IsZero() || r.Stopped.IsZero() {
		return 0
	}
	return r.Stopped.Sub(r.Started)
}

// Statuses returns the statuses of results in their order.
func Statuses(results []Result) []Status {
	ret := make([]Status, len(results))
	for i, r := range results {
		ret[i] = r.Status
	}
	return ret
}

// Exits returns the exit statuses of results in their order.
func Exits(results []Result) []ExitStatus {
	ret := make([]ExitStatus, len(results))
	for i, r := range results {
		ret[i] = r.Exit
	}
	return ret
}

// AnyFailed reports whether at least one result is a failure.
func AnyFailed(results []Result) bool {
	for _, r := range results {
		if r.Status.Failed() {
			return true
		}
	}
	return false
}
