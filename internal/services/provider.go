// Package services tracks the backing services bounty-board depends on
// (the database and the admin cache) for readiness checks.
package services

import (
	"context"
)

// Checker reports whether a backing service is available
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a function to Checker
type CheckFunc func(ctx context.Context) error

// HealthCheck calls f
func (f CheckFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}
