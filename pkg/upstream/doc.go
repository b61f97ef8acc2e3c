// Package upstream manages the process that serves thread traffic.
//
// The Lifecycle moves through three states:
//
//	stopped --EnsureStarted--> starting --probe 2xx--> ready
//	   ^                          |                      |
//	   +------- start failed -----+---- process exit ----+
//
// Concurrent EnsureStarted calls on a cold upstream share one start
// attempt. The attempt passes an environment built from a fixed allow-list
// (see FilterEnv) to the Supervisor, then polls the health path with
// exponential backoff until it answers 2xx or the readiness deadline ends.
//
// Two supervisors are provided: ProcessSupervisor runs a child process,
// ExternalSupervisor assumes the upstream is managed elsewhere.
package upstream
