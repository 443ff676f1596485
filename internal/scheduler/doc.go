// Package scheduler computes trigger times and runs due jobs.
//
// The Clock is deliberately passive: Due(now) reports which jobs should run at
// now and advances them. Run wraps Due in a poll loop that executes jobs
// synchronously, one at a time, so a long job delays the next poll.
package scheduler
