// Package gather defines the data acquisition surface: processes that pull
// market data from external sources into the local stores.
package gather

import "context"

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run executes one gathering pass. It returns early if ctx is cancelled.
	Run(ctx context.Context) error
}
