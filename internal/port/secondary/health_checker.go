package secondary

import "context"

// HealthChecker reports whether one external dependency of the relay
// (database, storage account, cache) is reachable.
type HealthChecker interface {
	// Name identifies the dependency in the health report.
	Name() string

	// Check returns nil when the dependency is usable.
	Check(ctx context.Context) error
}
