// Package health provides the liveness and readiness endpoints.
//
//   - /health: liveness, plain "ok" while the process runs
//   - /ready: readiness, runs every registered check concurrently
//   - /version: build information
//
// The proxy registers two checks:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("alias_store", health.PingCheck(store))
//	checker.RegisterCheck("upstream", lifecycle.HealthCheck)
//
// A cold upstream counts as healthy, because the first request starts it.
package health
