// Package store selects and initializes document-store adapters.
package store

import "context"

// Adapter is the minimal lifecycle and health contract for store adapters.
type Adapter interface {
	HealthCheck(ctx context.Context) error
	Close() error
}
