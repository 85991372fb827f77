// Package parallel runs jobs in isolated OS processes.
//
// It provides two pools with different contracts:
//   - Bounded: file jobs, at most Limit processes at a time, one job per
//     process, an optional batch-wide timeout. Results follow submission
//     order; a timeout yields ErrBatchTimeout and no results at all.
//   - Unbounded: tag jobs, every process is started before any is waited for,
//     then all are joined in spawn order. There is no limit and no timeout.
//
// A file job fails iff its captured stderr is not empty, a tag job fails iff
// its exit status is not zero (see package detect).
package parallel
